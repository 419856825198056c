package mutation

import (
	"context"
	"fmt"

	"github.com/nasdf/capydoc/core"
)

// Delete removes the entity with the given id.
//
// Foreign keys elsewhere that reference the entity are left as they are.
func (c *Collection) Delete(ctx context.Context, id string) (*core.Entity, error) {
	if err := c.engine.active("delete"); err != nil {
		return nil, err
	}
	return c.delete(ctx, id)
}

func (c *Collection) delete(ctx context.Context, id string) (*core.Entity, error) {
	var removed *core.Entity
	_, err := c.engine.swap(ctx, c.Name(), func(snap core.Snapshot) (core.Snapshot, []core.Change, error) {
		ent, ok := snap.Get(id)
		if !ok {
			return core.Snapshot{}, nil, &core.NotFoundError{Collection: c.Name(), ID: id}
		}
		removed = ent
		return snap.Delete(id), []core.Change{{Collection: c.Name(), Kind: core.ChangeDelete, Entity: ent}}, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteRelated removes the entity with the given id and clears every foreign
// key in any collection that referenced it.
//
// If a required foreign key references the entity nothing is changed and a
// ForeignKeyError is returned. Each referencing collection is swapped on its
// own after the entity is removed.
func (c *Collection) DeleteRelated(ctx context.Context, id string) (*core.Entity, error) {
	if err := c.engine.active("deleteRelated"); err != nil {
		return nil, err
	}
	if !c.container.Read().Has(id) {
		return nil, &core.NotFoundError{Collection: c.Name(), ID: id}
	}
	refs := c.engine.schema.Referencing(c.Name())
	references := func(field string) func(*core.Entity) bool {
		return func(e *core.Entity) bool {
			return core.Equal(e.Fields[field], id)
		}
	}
	for _, ref := range refs {
		if !ref.Required {
			continue
		}
		snap, err := c.engine.read(ref.Collection)
		if err != nil {
			return nil, err
		}
		if ent, ok := snap.Find(references(ref.Field)); ok {
			return nil, &core.ForeignKeyError{
				Collection: ref.Collection,
				Field:      ref.Field,
				Target:     c.Name(),
				ID:         id,
				Reason:     fmt.Sprintf("required foreign key of %q still references %s %q", ent.ID, c.Name(), id),
			}
		}
	}
	removed, err := c.delete(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		_, err := c.engine.swap(ctx, ref.Collection, func(snap core.Snapshot) (core.Snapshot, []core.Change, error) {
			var changes []core.Change
			now := c.engine.clock()
			for _, ent := range snap.Filter(references(ref.Field)) {
				next := ent.WithField(ref.Field, nil, now)
				snap = snap.Set(next)
				changes = append(changes, core.Change{Collection: ref.Collection, Kind: core.ChangeUpdate, Entity: next})
			}
			return snap, changes, nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}
