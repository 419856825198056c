package graphql

import (
	"github.com/nasdf/capydoc/mutation"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// collections is implemented by both the engine and a transaction.
type collections interface {
	Collection(name string) (*mutation.Collection, error)
}

// Request is a parsed operation ready for execution.
type Request struct {
	executor  *Executor
	query     *ast.QueryDocument
	operation *ast.OperationDefinition
	params    QueryParams
}

// NewRequest parses and validates the operation described by params.
func NewRequest(x *Executor, params QueryParams) (*Request, error) {
	query, errs := gqlparser.LoadQuery(x.schema, params.Query)
	if errs != nil {
		return nil, errs
	}
	var operation *ast.OperationDefinition
	if params.OperationName != "" {
		operation = query.Operations.ForName(params.OperationName)
	} else if len(query.Operations) == 1 {
		operation = query.Operations[0]
	}
	if operation == nil {
		return nil, gqlerror.Errorf("operation is not defined")
	}
	return &Request{
		executor:  x,
		query:     query,
		operation: operation,
		params:    params,
	}, nil
}

func (r *Request) collectFields(sel ast.SelectionSet, satisfies ...string) []graphql.CollectedField {
	reqCtx := &graphql.OperationContext{
		RawQuery:  r.params.Query,
		Variables: r.params.Variables,
		Doc:       r.query,
	}
	return graphql.CollectFields(reqCtx, sel, satisfies)
}

func (r *Request) arguments(field graphql.CollectedField) map[string]any {
	return field.ArgumentMap(r.params.Variables)
}
