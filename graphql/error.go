package graphql

import (
	"errors"

	"github.com/nasdf/capydoc/core"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// toError converts an engine error into a GraphQL error.
//
// The error kind and resolution hint are reported as extensions so clients
// can branch on them without parsing messages.
func toError(err error, field *ast.Field, path ast.Path) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	out := &gqlerror.Error{
		Err:     err,
		Message: err.Error(),
		Path:    path,
	}
	if field != nil && field.Position != nil {
		out.Locations = []gqlerror.Location{{Line: field.Position.Line, Column: field.Position.Column}}
	}
	extensions := make(map[string]any)
	if kind := core.KindOf(err); kind != "" {
		extensions["kind"] = string(kind)
	}
	var hint core.HintError
	if errors.As(err, &hint) {
		extensions["hint"] = hint.Hint()
	}
	if len(extensions) > 0 {
		out.Extensions = extensions
	}
	return out
}
