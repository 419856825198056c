package graphql

import (
	"context"
	"fmt"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/mutation"
	"github.com/nasdf/capydoc/transaction"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

// executeMutation runs every root field in order inside one transaction.
func (r *Request) executeMutation(ctx context.Context) (map[string]any, error) {
	fields := r.collectFields(r.operation.SelectionSet, "Mutation")
	result := make(map[string]any, len(fields))
	err := r.executor.manager.Run(ctx, func(ctx context.Context, tx *transaction.Tx) error {
		for _, field := range fields {
			if field.Name == "__typename" {
				result[field.Alias] = "Mutation"
				continue
			}
			val, err := r.mutateRoot(ctx, tx, field)
			if err != nil {
				return toError(err, field.Field, ast.Path{ast.PathName(field.Alias)})
			}
			result[field.Alias] = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Request) mutateRoot(ctx context.Context, tx *transaction.Tx, field graphql.CollectedField) (any, error) {
	root, ok := r.executor.fields[field.Name]
	if !ok {
		return nil, fmt.Errorf("unsupported mutation %s", field.Name)
	}
	c, err := tx.Collection(root.collection)
	if err != nil {
		return nil, err
	}
	args := r.arguments(field)
	id, _ := args["id"].(string)

	var ent *core.Entity
	switch root.operation {
	case createOperationPrefix:
		data, err := objectArg(c.Name(), args, "data")
		if err != nil {
			return nil, err
		}
		ent, err = c.Create(ctx, data)
		if err != nil {
			return nil, err
		}
	case createManyOperationPrefix:
		return r.createMany(ctx, tx, c, args, field)
	case updateOperationPrefix, patchOperationPrefix:
		data, err := objectArg(c.Name(), args, "data")
		if err != nil {
			return nil, err
		}
		if root.operation == updateOperationPrefix {
			ent, err = c.Update(ctx, id, data)
		} else {
			ent, err = c.Patch(ctx, id, data)
		}
		if err != nil {
			return nil, err
		}
	case upsertOperationPrefix:
		in, err := upsertInput(c.Name(), args)
		if err != nil {
			return nil, err
		}
		res, err := c.Upsert(ctx, in)
		if err != nil {
			return nil, err
		}
		return r.upsertResult(tx, c, res, field.Selections)
	case upsertManyOperationPrefix:
		return r.upsertMany(ctx, tx, c, args, field)
	case deleteOperationPrefix:
		ent, err = c.Delete(ctx, id)
		if err != nil {
			return nil, err
		}
	case deleteRelatedOperationPrefix:
		ent, err = c.DeleteRelated(ctx, id)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported mutation %s", field.Name)
	}
	return r.queryEntity(tx, c, ent, field.Selections)
}

func (r *Request) createMany(ctx context.Context, tx *transaction.Tx, c *mutation.Collection, args map[string]any, field graphql.CollectedField) (any, error) {
	list, _ := args["data"].([]any)
	inputs := make([]map[string]any, len(list))
	for i, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &core.ValidationError{Collection: c.Name(), Field: fmt.Sprintf("data[%d]", i), Message: "expected object"}
		}
		inputs[i] = m
	}
	var opts mutation.CreateManyOptions
	opts.SkipDuplicates, _ = args["skipDuplicates"].(bool)
	opts.SkipRelationshipValidation, _ = args["skipRelationshipValidation"].(bool)
	res, err := c.CreateMany(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}

	fields := r.collectFields(field.Selections, c.Name()+"CreateManyResult")
	result := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f.Name {
		case "__typename":
			result[f.Alias] = c.Name() + "CreateManyResult"
		case "created":
			created, err := r.queryEntities(tx, c, res.Created, f.Selections)
			if err != nil {
				return nil, err
			}
			result[f.Alias] = created
		case "skipped":
			skipped := make([]any, len(res.Skipped))
			for i, s := range res.Skipped {
				skipped[i] = r.queryObject(map[string]any{
					"index":   s.Index,
					"reason":  string(s.Reason),
					"message": s.Err.Error(),
				}, "SkippedInput", f.Selections)
			}
			result[f.Alias] = skipped
		}
	}
	return result, nil
}

func (r *Request) upsertMany(ctx context.Context, tx *transaction.Tx, c *mutation.Collection, args map[string]any, field graphql.CollectedField) (any, error) {
	list, _ := args["data"].([]any)
	inputs := make([]mutation.UpsertInput, len(list))
	for i, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &core.ValidationError{Collection: c.Name(), Field: fmt.Sprintf("data[%d]", i), Message: "expected object"}
		}
		in, err := upsertInput(c.Name(), m)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	results, err := c.UpsertMany(ctx, inputs)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(results))
	for i, res := range results {
		val, err := r.upsertResult(tx, c, res, field.Selections)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

func (r *Request) upsertResult(tx *transaction.Tx, c *mutation.Collection, res *mutation.UpsertResult, set ast.SelectionSet) (map[string]any, error) {
	fields := r.collectFields(set, c.Name()+"UpsertResult")
	result := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f.Name {
		case "__typename":
			result[f.Alias] = c.Name() + "UpsertResult"
		case "action":
			result[f.Alias] = string(res.Action)
		case "entity":
			val, err := r.queryEntity(tx, c, res.Entity, f.Selections)
			if err != nil {
				return nil, err
			}
			result[f.Alias] = val
		}
	}
	return result, nil
}

func upsertInput(collection string, args map[string]any) (mutation.UpsertInput, error) {
	var in mutation.UpsertInput
	where, err := objectArg(collection, args, "where")
	if err != nil {
		return in, err
	}
	in.Where = core.Selector(where)
	if in.Create, err = optionalObjectArg(collection, args, "create"); err != nil {
		return in, err
	}
	if in.Update, err = optionalObjectArg(collection, args, "update"); err != nil {
		return in, err
	}
	return in, nil
}

func objectArg(collection string, args map[string]any, name string) (map[string]any, error) {
	m, err := optionalObjectArg(collection, args, name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &core.ValidationError{Collection: collection, Field: name, Message: "value is required"}
	}
	return m, nil
}

func optionalObjectArg(collection string, args map[string]any, name string) (map[string]any, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &core.ValidationError{Collection: collection, Field: name, Message: fmt.Sprintf("expected object, got %T", v)}
	}
	return m, nil
}
