package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Doer executes GraphQL operations.
type Doer interface {
	Execute(context.Context, QueryParams) QueryResponse
}

// Handler returns an http.Handler that can serve GraphQL requests.
func Handler(d Doer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params QueryParams
		var err error
		switch r.Method {
		case http.MethodGet:
			params, err = ParseGetQueryParams(r)
		case http.MethodPost:
			params, err = ParsePostQueryParams(r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to parse request: %v", err), http.StatusBadRequest)
			return
		}
		if r.Method == http.MethodGet && isMutation(params) {
			http.Error(w, "mutations require POST", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		res := d.Execute(r.Context(), params)
		if err := json.NewEncoder(w).Encode(res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// ParseGetQueryParams reads the params from the URL query string.
func ParseGetQueryParams(r *http.Request) (QueryParams, error) {
	params := QueryParams{}
	values := r.URL.Query()
	params.Query = values.Get("query")
	params.OperationName = values.Get("operationName")
	if !values.Has("variables") {
		return params, nil
	}
	err := json.Unmarshal([]byte(values.Get("variables")), &params.Variables)
	if err != nil {
		return params, err
	}
	return params, nil
}

// ParsePostQueryParams reads the params from a JSON request body.
func ParsePostQueryParams(r *http.Request) (QueryParams, error) {
	params := QueryParams{}
	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		return params, err
	}
	return params, nil
}

// isMutation reports whether the selected operation is a mutation.
//
// Unparseable documents are left to Execute to report.
func isMutation(params QueryParams) bool {
	doc, err := parser.ParseQuery(&ast.Source{Input: params.Query})
	if err != nil {
		return false
	}
	op := doc.Operations.ForName(params.OperationName)
	if params.OperationName == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	return op != nil && op.Operation == ast.Mutation
}
