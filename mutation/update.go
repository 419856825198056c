package mutation

import (
	"context"
	"fmt"
	"slices"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"
)

// Patch applies a plain field patch to the entity with the given id.
//
// Relationship fields are rejected; use Update to interpret them.
func (c *Collection) Patch(ctx context.Context, id string, patch map[string]any) (*core.Entity, error) {
	if err := c.engine.active("patch"); err != nil {
		return nil, err
	}
	return c.update(ctx, id, patch, false)
}

// Update applies a relationship-aware patch to the entity with the given id.
//
// Relationship operators run in a fixed order: disconnects, connects, nested
// updates, deletes, then sets. The owning entity's own fields are applied
// last. Side effects on other collections are committed as each step
// completes and are not undone if a later step fails; wrap the call in a
// transaction when that matters.
func (c *Collection) Update(ctx context.Context, id string, patch map[string]any) (*core.Entity, error) {
	if err := c.engine.active("update"); err != nil {
		return nil, err
	}
	return c.update(ctx, id, patch, true)
}

func (c *Collection) update(ctx context.Context, id string, patch map[string]any, relations bool) (*core.Entity, error) {
	if !c.container.Read().Has(id) {
		return nil, &core.NotFoundError{Collection: c.Name(), ID: id}
	}
	plain, ops, err := c.splitPatch(id, patch, relations)
	if err != nil {
		return nil, err
	}
	foreign := make(map[string]any)
	for _, op := range ops {
		switch op := op.(type) {
		case ForwardOp:
			err = c.applyForward(ctx, id, op, foreign)
		case InverseOp:
			err = c.applyInverse(ctx, id, op)
		default:
			panic(fmt.Sprintf("unknown relation op %T", op))
		}
		if err != nil {
			return nil, err
		}
	}

	changed := make(map[string]bool, len(plain)+len(foreign))
	for k := range plain {
		changed[k] = true
	}
	for k := range foreign {
		changed[k] = true
	}
	var updated *core.Entity
	_, err = c.engine.swap(ctx, c.Name(), func(snap core.Snapshot) (core.Snapshot, []core.Change, error) {
		current, ok := snap.Get(id)
		if !ok {
			return core.Snapshot{}, nil, &core.NotFoundError{Collection: c.Name(), ID: id}
		}
		fields, err := applyPatch(c.engine.schema, c.schema, current.Fields, plain)
		if err != nil {
			return core.Snapshot{}, nil, err
		}
		for k, v := range foreign {
			if v == nil {
				delete(fields, k)
			} else {
				fields[k] = v
			}
		}
		fields, err = c.engine.validate(c.schema, snap, fields, func(field string) bool { return changed[field] })
		if err != nil {
			return core.Snapshot{}, nil, err
		}
		updated = current.With(fields, c.engine.clock())
		return snap.Set(updated), []core.Change{{Collection: c.Name(), Kind: core.ChangeUpdate, Entity: updated}}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// splitPatch separates plain fields from relationship operations, returning
// the operations in execution order.
func (c *Collection) splitPatch(id string, patch map[string]any, relations bool) (map[string]any, []RelationOp, error) {
	plain := make(map[string]any, len(patch))
	var fields []string
	for k, v := range patch {
		switch {
		case k == core.IDFieldName:
			if other, ok := v.(string); !ok || other != id {
				return nil, nil, &core.ValidationError{Collection: c.Name(), Field: k, Message: "id cannot be changed"}
			}
		case core.IsSystemField(k):
			return nil, nil, &core.ValidationError{Collection: c.Name(), Field: k, Message: "field is managed by the store"}
		default:
			if _, ok := c.schema.Relation(k); ok {
				if !relations {
					return nil, nil, &core.ValidationError{Collection: c.Name(), Field: k, Message: "relationship fields require a relationship-aware update"}
				}
				fields = append(fields, k)
				continue
			}
			plain[k] = v
		}
	}
	slices.Sort(fields)
	var ops []RelationOp
	for _, k := range fields {
		rel, _ := c.schema.Relation(k)
		parsed, err := ParseRelationOps(c.Name(), rel, patch[k])
		if err != nil {
			return nil, nil, err
		}
		ops = append(ops, parsed...)
	}
	slices.SortStableFunc(ops, func(a, b RelationOp) int { return a.phase() - b.phase() })
	return plain, ops, nil
}

// applyForward interprets a forward reference operation. Connects and
// disconnects are collected into foreign and applied with the owner patch.
func (c *Collection) applyForward(ctx context.Context, id string, op ForwardOp, foreign map[string]any) error {
	rel := op.Relation
	switch op.Operator {
	case ForwardDisconnect:
		foreign[rel.ForeignKey] = nil
		return nil
	case ForwardConnect:
		target, err := c.engine.resolve(rel.Target, op.Target)
		if err != nil {
			return err
		}
		foreign[rel.ForeignKey] = target.ID
		return nil
	case ForwardUpdate:
		targetID, ok := foreign[rel.ForeignKey]
		if !ok {
			owner, ok := c.container.Read().Get(id)
			if !ok {
				return &core.NotFoundError{Collection: c.Name(), ID: id}
			}
			targetID = owner.Fields[rel.ForeignKey]
		}
		tid, ok := targetID.(string)
		if !ok || tid == "" {
			return &core.ValidationError{Collection: c.Name(), Field: rel.Field, Message: "no connected entity to update"}
		}
		target, err := c.engine.Collection(rel.Target)
		if err != nil {
			return err
		}
		_, err = target.update(ctx, tid, op.Data, true)
		return err
	default:
		panic(fmt.Sprintf("unknown forward operator %d", op.Operator))
	}
}

// applyInverse interprets an inverse collection operation against the target collection.
func (c *Collection) applyInverse(ctx context.Context, id string, op InverseOp) error {
	rel := op.Relation
	target, err := c.engine.Collection(rel.Target)
	if err != nil {
		return err
	}
	linked := func(e *core.Entity) bool {
		return core.Equal(e.Fields[rel.ForeignKey], id)
	}
	if op.Operator == InverseUpdate {
		for _, upd := range op.Updates {
			snap := target.container.Read()
			ent, ok := snap.Find(func(e *core.Entity) bool { return linked(e) && upd.Where.Matches(e) })
			if !ok {
				return &core.NotFoundError{Collection: rel.Target, ID: describeSelector(upd.Where)}
			}
			if _, err := target.update(ctx, ent.ID, upd.Data, true); err != nil {
				return err
			}
		}
		return nil
	}
	_, err = c.engine.swap(ctx, rel.Target, func(snap core.Snapshot) (core.Snapshot, []core.Change, error) {
		var changes []core.Change
		now := c.engine.clock()
		relink := func(ent *core.Entity, value any) error {
			if value == nil && rel.Required {
				return &core.ValidationError{Collection: rel.Target, Field: rel.ForeignKey, Message: "required foreign key cannot be cleared"}
			}
			fields := core.CloneMap(ent.Fields)
			if value == nil {
				delete(fields, rel.ForeignKey)
			} else {
				fields[rel.ForeignKey] = value
			}
			fields, err := c.engine.validate(target.schema, snap, fields, func(field string) bool { return field == rel.ForeignKey })
			if err != nil {
				return err
			}
			next := ent.With(fields, now)
			snap = snap.Set(next)
			changes = append(changes, core.Change{Collection: rel.Target, Kind: core.ChangeUpdate, Entity: next})
			return nil
		}
		resolve := func(sel core.Selector, match func(*core.Entity) bool) (*core.Entity, error) {
			ent, ok := sel.Resolve(snap)
			if ok && match != nil && !match(ent) {
				ok = false
			}
			if !ok && match != nil {
				if _, hasID := sel.ID(); !hasID {
					ent, ok = snap.Find(func(e *core.Entity) bool { return match(e) && sel.Matches(e) })
				}
			}
			if !ok {
				return nil, &core.NotFoundError{Collection: rel.Target, ID: describeSelector(sel)}
			}
			return ent, nil
		}

		switch op.Operator {
		case InverseConnect:
			for _, sel := range op.Targets {
				ent, err := resolve(sel, nil)
				if err != nil {
					return core.Snapshot{}, nil, err
				}
				if linked(ent) {
					continue
				}
				if err := relink(ent, id); err != nil {
					return core.Snapshot{}, nil, err
				}
			}
		case InverseDisconnect:
			for _, sel := range op.Targets {
				ent, err := resolve(sel, nil)
				if err != nil {
					return core.Snapshot{}, nil, err
				}
				if !linked(ent) {
					continue
				}
				if err := relink(ent, nil); err != nil {
					return core.Snapshot{}, nil, err
				}
			}
		case InverseDelete:
			for _, sel := range op.Targets {
				ent, err := resolve(sel, linked)
				if err != nil {
					return core.Snapshot{}, nil, err
				}
				if err := relink(ent, nil); err != nil {
					return core.Snapshot{}, nil, err
				}
			}
		case InverseSet:
			keep := make(map[string]bool, len(op.Targets))
			var add []*core.Entity
			for _, sel := range op.Targets {
				ent, err := resolve(sel, nil)
				if err != nil {
					return core.Snapshot{}, nil, err
				}
				if keep[ent.ID] {
					continue
				}
				keep[ent.ID] = true
				if !linked(ent) {
					add = append(add, ent)
				}
			}
			for _, ent := range snap.Filter(linked) {
				if keep[ent.ID] {
					continue
				}
				if err := relink(ent, nil); err != nil {
					return core.Snapshot{}, nil, err
				}
			}
			for _, ent := range add {
				if err := relink(ent, id); err != nil {
					return core.Snapshot{}, nil, err
				}
			}
		case InverseUpdate:
			panic("inverse update runs outside of a swap")
		default:
			panic(fmt.Sprintf("unknown inverse operator %d", op.Operator))
		}
		return snap, changes, nil
	})
	return err
}

// relatedEntities returns the entities of the target collection whose foreign key references id.
func relatedEntities(snap core.Snapshot, rel *schema.Relation, id string) []*core.Entity {
	return snap.Filter(func(e *core.Entity) bool {
		return core.Equal(e.Fields[rel.ForeignKey], id)
	})
}
