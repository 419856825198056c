// Package graphql executes GraphQL operations against the collections of a store.
//
// Queries read the live collections. Each mutation operation runs inside a
// transaction, so a failing root field rolls back every field before it.
package graphql

import (
	"context"

	"github.com/nasdf/capydoc/mutation"
	"github.com/nasdf/capydoc/transaction"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

// QueryParams contains all of the parameters for a query.
type QueryParams struct {
	Query         string         `json:"query" yaml:"query"`
	OperationName string         `json:"operationName" yaml:"operationName"`
	Variables     map[string]any `json:"variables" yaml:"variables"`
}

// QueryResponse contains all of the fields for a response.
type QueryResponse struct {
	Data       any            `json:"data,omitempty"`
	Errors     gqlerror.List  `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// NewQueryResponse returns a new GraphQL compliant response.
func NewQueryResponse(data any, err error) QueryResponse {
	response := QueryResponse{
		Data: data,
	}
	switch t := err.(type) {
	case nil:
		response.Errors = nil
	case gqlerror.List:
		response.Errors = t
	case *gqlerror.Error:
		response.Errors = gqlerror.List{t}
	default:
		response.Errors = gqlerror.List{toError(err, nil, nil)}
	}
	return response
}

// Executor runs GraphQL operations.
type Executor struct {
	engine  *mutation.Engine
	manager *transaction.Manager
	schema  *ast.Schema
	fields  map[string]rootField
	logger  *zap.Logger
}

// NewExecutor returns an executor over the collections of the given engine.
func NewExecutor(engine *mutation.Engine, manager *transaction.Manager) (*Executor, error) {
	generated, fields, err := GenerateSchema(engine.Schema())
	if err != nil {
		return nil, err
	}
	return &Executor{
		engine:  engine,
		manager: manager,
		schema:  generated,
		fields:  fields,
		logger:  engine.Store().Logger(),
	}, nil
}

// Schema returns the generated GraphQL schema.
func (x *Executor) Schema() *ast.Schema {
	return x.schema
}

// Execute runs the operation described by params.
func (x *Executor) Execute(ctx context.Context, params QueryParams) QueryResponse {
	req, err := NewRequest(x, params)
	if err != nil {
		return NewQueryResponse(nil, err)
	}
	switch req.operation.Operation {
	case ast.Query:
		data, errs := req.executeQuery(ctx)
		if len(errs) > 0 {
			return NewQueryResponse(data, errs)
		}
		return NewQueryResponse(data, nil)
	case ast.Mutation:
		data, err := req.executeMutation(ctx)
		if err != nil {
			x.logger.Debug("mutation failed", zap.String("operation", req.operation.Name), zap.Error(err))
			return NewQueryResponse(nil, err)
		}
		return NewQueryResponse(data, nil)
	default:
		return NewQueryResponse(nil, gqlerror.Errorf("unsupported operation %s", req.operation.Operation))
	}
}
