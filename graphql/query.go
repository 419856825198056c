package graphql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/mutation"
	"github.com/nasdf/capydoc/query"
	"github.com/nasdf/capydoc/schema"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func (r *Request) executeQuery(ctx context.Context) (map[string]any, gqlerror.List) {
	fields := r.collectFields(r.operation.SelectionSet, "Query")
	result := make(map[string]any, len(fields))
	var errs gqlerror.List
	for _, field := range fields {
		if field.Name == "__typename" {
			result[field.Alias] = "Query"
			continue
		}
		val, err := r.queryRoot(ctx, r.executor.engine, field)
		if err != nil {
			errs = append(errs, toError(err, field.Field, ast.Path{ast.PathName(field.Alias)}))
			result[field.Alias] = nil
			continue
		}
		result[field.Alias] = val
	}
	return result, errs
}

func (r *Request) queryRoot(ctx context.Context, src collections, field graphql.CollectedField) (any, error) {
	root, ok := r.executor.fields[field.Name]
	if !ok {
		return nil, fmt.Errorf("unsupported query %s", field.Name)
	}
	c, err := src.Collection(root.collection)
	if err != nil {
		return nil, err
	}
	args := r.arguments(field)
	switch root.operation {
	case getOperationPrefix:
		id, _ := args["id"].(string)
		ent, err := c.Get(id)
		var nf *core.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return r.queryEntity(src, c, ent, field.Selections)
	case findOperationPrefix:
		opts, err := findOptions(root.collection, args)
		if err != nil {
			return nil, err
		}
		page, err := c.FindMany(opts)
		if err != nil {
			return nil, err
		}
		return r.queryPage(src, c, page, field.Selections)
	case countOperationPrefix:
		return c.Count()
	default:
		return nil, fmt.Errorf("unsupported query %s", field.Name)
	}
}

func findOptions(collection string, args map[string]any) (query.Options, error) {
	var opts query.Options
	if where, ok := args["where"]; ok && where != nil {
		m, ok := where.(map[string]any)
		if !ok {
			return opts, &core.ValidationError{Collection: collection, Field: "where", Message: "expected object"}
		}
		opts.Where = core.Selector(m)
	}
	opts.Filter, _ = args["filter"].(string)
	opts.OrderBy, _ = args["orderBy"].(string)
	opts.Desc, _ = args["desc"].(bool)
	opts.After = args["after"]
	opts.Before = args["before"]
	if limit, ok := core.Int64(args["limit"]); ok {
		opts.Limit = int(limit)
	}
	return opts, nil
}

func (r *Request) queryPage(src collections, c *mutation.Collection, page query.Page[*core.Entity, any], set ast.SelectionSet) (map[string]any, error) {
	fields := r.collectFields(set, c.Name()+"Page")
	result := make(map[string]any, len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			result[field.Alias] = c.Name() + "Page"
		case "items":
			items, err := r.queryEntities(src, c, page.Items, field.Selections)
			if err != nil {
				return nil, err
			}
			result[field.Alias] = items
		case "pageInfo":
			result[field.Alias] = r.queryObject(map[string]any{
				"startCursor":     page.PageInfo.StartCursor,
				"endCursor":       page.PageInfo.EndCursor,
				"hasNextPage":     page.PageInfo.HasNextPage,
				"hasPreviousPage": page.PageInfo.HasPreviousPage,
			}, "PageInfo", field.Selections)
		}
	}
	return result, nil
}

func (r *Request) queryEntities(src collections, c *mutation.Collection, entities []*core.Entity, set ast.SelectionSet) ([]any, error) {
	result := make([]any, 0, len(entities))
	for _, ent := range entities {
		val, err := r.queryEntity(src, c, ent, set)
		if err != nil {
			return nil, err
		}
		result = append(result, val)
	}
	return result, nil
}

func (r *Request) queryEntity(src collections, c *mutation.Collection, ent *core.Entity, set ast.SelectionSet) (map[string]any, error) {
	fields := r.collectFields(set, c.Name())
	result := make(map[string]any, len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			result[field.Alias] = c.Name()
		case core.IDFieldName:
			result[field.Alias] = ent.ID
		case core.CreatedAtFieldName:
			result[field.Alias] = ent.CreatedAt.UTC().Format(time.RFC3339Nano)
		case core.UpdatedAtFieldName:
			result[field.Alias] = ent.UpdatedAt.UTC().Format(time.RFC3339Nano)
		default:
			if rel, ok := c.Schema().Relation(field.Name); ok {
				val, err := r.queryRelation(src, c, rel, ent, field.Selections)
				if err != nil {
					return nil, err
				}
				result[field.Alias] = val
				continue
			}
			val, _ := ent.Get(field.Name)
			result[field.Alias] = r.queryValue(val, field)
		}
	}
	return result, nil
}

func (r *Request) queryRelation(src collections, c *mutation.Collection, rel *schema.Relation, owner *core.Entity, set ast.SelectionSet) (any, error) {
	target, err := src.Collection(rel.Target)
	if err != nil {
		return nil, err
	}
	related, err := c.Related(owner.ID, rel.Field)
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		// the owner was removed by this operation
		related = nil
	} else if err != nil {
		return nil, err
	}
	if rel.Kind == schema.Forward {
		if len(related) == 0 {
			return nil, nil
		}
		return r.queryEntity(src, target, related[0], set)
	}
	return r.queryEntities(src, target, related, set)
}

// queryValue projects a stored value through the selections of its field.
func (r *Request) queryValue(val any, field graphql.CollectedField) any {
	if len(field.Selections) == 0 || val == nil {
		return val
	}
	typeName := ""
	if field.Definition != nil {
		typeName = field.Definition.Type.Name()
	}
	switch v := val.(type) {
	case map[string]any:
		return r.queryObject(v, typeName, field.Selections)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			if m, ok := e.(map[string]any); ok {
				out[i] = r.queryObject(m, typeName, field.Selections)
				continue
			}
			out[i] = e
		}
		return out
	default:
		return val
	}
}

func (r *Request) queryObject(obj map[string]any, typeName string, set ast.SelectionSet) map[string]any {
	fields := r.collectFields(set, typeName)
	result := make(map[string]any, len(fields))
	for _, field := range fields {
		if field.Name == "__typename" {
			result[field.Alias] = typeName
			continue
		}
		result[field.Alias] = r.queryValue(obj[field.Name], field)
	}
	return result
}
