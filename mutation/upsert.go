package mutation

import (
	"context"

	"github.com/nasdf/capydoc/core"
)

// UpsertAction reports which branch an upsert took.
type UpsertAction string

const (
	UpsertCreated   UpsertAction = "created"
	UpsertUpdated   UpsertAction = "updated"
	UpsertUnchanged UpsertAction = "unchanged"
)

// UpsertInput describes a single upsert.
type UpsertInput struct {
	// Where resolves the existing entity.
	Where core.Selector `json:"where" yaml:"where"`
	// Create is merged over Where when no entity matches.
	Create map[string]any `json:"create,omitempty" yaml:"create,omitempty"`
	// Update is applied to the matching entity.
	Update map[string]any `json:"update,omitempty" yaml:"update,omitempty"`
}

// UpsertResult is the outcome of a single upsert.
type UpsertResult struct {
	Action UpsertAction
	Entity *core.Entity
}

// Upsert updates the entity matching in.Where or creates one from in.Where and in.Create.
func (c *Collection) Upsert(ctx context.Context, in UpsertInput) (*UpsertResult, error) {
	if err := c.engine.active("upsert"); err != nil {
		return nil, err
	}
	return c.upsert(ctx, in, false)
}

// UpsertMany runs each upsert in order, reporting entries whose patch would
// not change anything as unchanged without writing them.
//
// The first failing entry stops the batch; the results so far are returned
// with its error.
func (c *Collection) UpsertMany(ctx context.Context, inputs []UpsertInput) ([]*UpsertResult, error) {
	if err := c.engine.active("upsertMany"); err != nil {
		return nil, err
	}
	results := make([]*UpsertResult, 0, len(inputs))
	for _, in := range inputs {
		res, err := c.upsert(ctx, in, true)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (c *Collection) upsert(ctx context.Context, in UpsertInput, detectUnchanged bool) (*UpsertResult, error) {
	if len(in.Where) == 0 {
		return nil, &core.ValidationError{Collection: c.Name(), Field: "where", Message: "upsert requires a selector"}
	}
	if existing, ok := in.Where.Resolve(c.container.Read()); ok {
		if detectUnchanged && !c.wouldChange(existing, in.Update) {
			return &UpsertResult{Action: UpsertUnchanged, Entity: existing}, nil
		}
		updated, err := c.update(ctx, existing.ID, in.Update, true)
		if err != nil {
			return nil, err
		}
		return &UpsertResult{Action: UpsertUpdated, Entity: updated}, nil
	}
	input := core.CloneMap(in.Where)
	for k, v := range in.Create {
		input[k] = v
	}
	created, err := c.create(ctx, input)
	if err != nil {
		return nil, err
	}
	return &UpsertResult{Action: UpsertCreated, Entity: created}, nil
}

// wouldChange reports whether applying the patch would modify the entity.
//
// Operator values and relationship fields always count as changes. Patches
// that fail to apply count as changes so that the update reports the error.
func (c *Collection) wouldChange(ent *core.Entity, patch map[string]any) bool {
	if len(patch) == 0 {
		return false
	}
	for k, v := range patch {
		if k == core.IDFieldName {
			if id, ok := v.(string); ok && id == ent.ID {
				continue
			}
			return true
		}
		if _, ok := c.schema.Relation(k); ok {
			return true
		}
	}
	if hasOperators(c.schema, patch) {
		return true
	}
	plain := make(map[string]any, len(patch))
	for k, v := range patch {
		if k != core.IDFieldName {
			plain[k] = v
		}
	}
	fields, err := applyPatch(c.engine.schema, c.schema, ent.Fields, plain)
	if err != nil {
		return true
	}
	fields, err = c.engine.validator.Validate(c.Name(), fields)
	if err != nil {
		return true
	}
	return !core.Equal(ent.Fields, fields)
}
