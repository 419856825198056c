package mutation

import (
	"context"
	"errors"
	"slices"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"
)

// Collection is a handle for reading and writing one collection.
type Collection struct {
	engine    *Engine
	schema    *schema.Collection
	container *core.Container
}

// Name returns the name of the collection.
func (c *Collection) Name() string {
	return c.schema.Name
}

// Schema returns the declared shape of the collection.
func (c *Collection) Schema() *schema.Collection {
	return c.schema
}

// CreateManyOptions controls the behavior of CreateMany.
type CreateManyOptions struct {
	// SkipDuplicates classifies each invalid item as skipped instead of
	// failing the whole batch.
	SkipDuplicates bool `json:"skipDuplicates,omitempty" yaml:"skipDuplicates,omitempty"`
	// SkipRelationshipValidation disables foreign key checks for the batch.
	SkipRelationshipValidation bool `json:"skipRelationshipValidation,omitempty" yaml:"skipRelationshipValidation,omitempty"`
}

// SkipReason describes why an item of a batch create was skipped.
type SkipReason string

const (
	SkipDuplicate  SkipReason = "duplicate"
	SkipValidation SkipReason = "validation"
	SkipForeignKey SkipReason = "foreignKey"
)

// Skipped is an item of a batch create that was not written.
type Skipped struct {
	Index  int
	Reason SkipReason
	Err    error
}

// CreateManyResult reports the outcome of a batch create.
type CreateManyResult struct {
	Created []*core.Entity
	Skipped []Skipped
}

// Create inserts a new entity.
//
// Forward relationship fields may connect existing entities. Inverse
// relationship operators are rejected because they would mutate other
// collections before the insert.
func (c *Collection) Create(ctx context.Context, input map[string]any) (*core.Entity, error) {
	if err := c.engine.active("create"); err != nil {
		return nil, err
	}
	return c.create(ctx, input)
}

func (c *Collection) create(ctx context.Context, input map[string]any) (*core.Entity, error) {
	item, err := c.createItem(input)
	if err != nil {
		return nil, err
	}
	var created *core.Entity
	_, err = c.engine.swap(ctx, c.Name(), func(snap core.Snapshot) (core.Snapshot, []core.Change, error) {
		ent, err := c.prepareCreate(snap, item, true)
		if err != nil {
			return core.Snapshot{}, nil, err
		}
		created = ent
		return snap.Set(ent), []core.Change{{Collection: c.Name(), Kind: core.ChangeCreate, Entity: ent}}, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateMany inserts a batch of entities in one swap.
//
// By default the first invalid item fails the whole batch and nothing is
// written. With SkipDuplicates every item is classified on its own and all
// valid items are written together.
func (c *Collection) CreateMany(ctx context.Context, inputs []map[string]any, opts CreateManyOptions) (*CreateManyResult, error) {
	if err := c.engine.active("createMany"); err != nil {
		return nil, err
	}
	result := &CreateManyResult{}
	items := make([]*createItem, len(inputs))
	for i, input := range inputs {
		item, err := c.createItem(input)
		if err != nil {
			reason, ok := skipReason(err)
			if !opts.SkipDuplicates || !ok {
				return nil, err
			}
			result.Skipped = append(result.Skipped, Skipped{Index: i, Reason: reason, Err: err})
			continue
		}
		items[i] = item
	}
	_, err := c.engine.swap(ctx, c.Name(), func(snap core.Snapshot) (core.Snapshot, []core.Change, error) {
		var created []*core.Entity
		var skipped []Skipped
		var changes []core.Change
		for i, item := range items {
			if item == nil {
				continue
			}
			ent, err := c.prepareCreate(snap, item, !opts.SkipRelationshipValidation)
			if err != nil {
				reason, ok := skipReason(err)
				if !opts.SkipDuplicates || !ok {
					return core.Snapshot{}, nil, err
				}
				skipped = append(skipped, Skipped{Index: i, Reason: reason, Err: err})
				continue
			}
			snap = snap.Set(ent)
			created = append(created, ent)
			changes = append(changes, core.Change{Collection: c.Name(), Kind: core.ChangeCreate, Entity: ent})
		}
		result.Created = created
		result.Skipped = append(result.Skipped, skipped...)
		return snap, changes, nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(result.Skipped, func(a, b Skipped) int { return a.Index - b.Index })
	return result, nil
}

func skipReason(err error) (SkipReason, bool) {
	switch core.KindOf(err) {
	case core.KindDuplicateKey:
		return SkipDuplicate, true
	case core.KindValidation:
		return SkipValidation, true
	case core.KindForeignKey, core.KindNotFound:
		return SkipForeignKey, true
	default:
		return "", false
	}
}

// createItem is a create input with its relationship fields resolved.
type createItem struct {
	id     string
	hasID  bool
	fields map[string]any
}

func (c *Collection) createItem(input map[string]any) (*createItem, error) {
	item := &createItem{fields: make(map[string]any, len(input))}
	var relations []string
	for k, v := range input {
		switch {
		case k == core.IDFieldName:
			id, ok := v.(string)
			if !ok || id == "" {
				return nil, &core.ValidationError{Collection: c.Name(), Field: k, Message: "id must be a non-empty string"}
			}
			item.id, item.hasID = id, true
		case core.IsSystemField(k):
			return nil, &core.ValidationError{Collection: c.Name(), Field: k, Message: "field is managed by the store"}
		default:
			if _, ok := c.schema.Relation(k); ok {
				relations = append(relations, k)
				continue
			}
			item.fields[k] = v
		}
	}
	slices.Sort(relations)
	for _, k := range relations {
		rel, _ := c.schema.Relation(k)
		if rel.Kind == schema.Inverse {
			return nil, &core.ValidationError{Collection: c.Name(), Field: k, Message: "inverse relationship operators are not supported on create"}
		}
		ops, err := ParseRelationOps(c.Name(), rel, input[k])
		if err != nil {
			return nil, err
		}
		op := ops[0].(ForwardOp)
		switch op.Operator {
		case ForwardConnect:
			target, err := c.engine.resolve(rel.Target, op.Target)
			if err != nil {
				return nil, err
			}
			item.fields[rel.ForeignKey] = target.ID
		case ForwardDisconnect:
			item.fields[rel.ForeignKey] = nil
		case ForwardUpdate:
			return nil, &core.ValidationError{Collection: c.Name(), Field: k, Message: "update is not supported on create"}
		}
	}
	return item, nil
}

// prepareCreate validates the item against the given snapshot and returns the new entity.
func (c *Collection) prepareCreate(snap core.Snapshot, item *createItem, checkForeignKeys bool) (*core.Entity, error) {
	id := item.id
	if item.hasID {
		if snap.Has(id) {
			return nil, &core.DuplicateKeyError{Collection: c.Name(), ID: id}
		}
	} else {
		var err error
		if id, err = c.generateID(snap); err != nil {
			return nil, err
		}
	}
	var fields map[string]any
	var err error
	if checkForeignKeys {
		fields, err = c.engine.validate(c.schema, snap, item.fields, nil)
	} else {
		fields, err = c.engine.validator.Validate(c.Name(), item.fields)
	}
	if err != nil {
		return nil, err
	}
	now := c.engine.clock()
	return core.NewEntity(id, fields, now, now), nil
}

// generateID returns a generated id that is not present in the snapshot.
func (c *Collection) generateID(snap core.Snapshot) (string, error) {
	var last string
	for range maxIDAttempts {
		id, err := c.engine.newID()
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", errors.New("id generator returned an empty id")
		}
		if !snap.Has(id) {
			return id, nil
		}
		last = id
	}
	return "", &core.DuplicateKeyError{Collection: c.Name(), ID: last}
}
