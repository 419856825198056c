package mutation

import (
	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/query"
	"github.com/nasdf/capydoc/schema"
)

// Get returns the entity with the given id.
func (c *Collection) Get(id string) (*core.Entity, error) {
	if err := c.engine.active("get"); err != nil {
		return nil, err
	}
	ent, ok := c.container.Read().Get(id)
	if !ok {
		return nil, &core.NotFoundError{Collection: c.Name(), ID: id}
	}
	return ent, nil
}

// FindFirst returns the first entity in id order matching the selector.
func (c *Collection) FindFirst(where core.Selector) (*core.Entity, error) {
	if err := c.engine.active("findFirst"); err != nil {
		return nil, err
	}
	ent, ok := where.Resolve(c.container.Read())
	if !ok {
		return nil, &core.NotFoundError{Collection: c.Name(), ID: describeSelector(where)}
	}
	return ent, nil
}

// Find returns all entities matching the options in order.
func (c *Collection) Find(opts query.Options) ([]*core.Entity, error) {
	if err := c.engine.active("find"); err != nil {
		return nil, err
	}
	return query.Find(c.Name(), c.container.Read().Entities(), opts)
}

// FindMany returns one page of the entities matching the options.
func (c *Collection) FindMany(opts query.Options) (query.Page[*core.Entity, any], error) {
	if err := c.engine.active("findMany"); err != nil {
		return query.Page[*core.Entity, any]{}, err
	}
	return query.FindPage(c.Name(), c.container.Read().Entities(), opts, c.engine.defaultLimit)
}

// Related materializes a relationship field of the entity with the given id.
//
// Forward references return the connected entity, if any. Inverse
// collections return every entity whose foreign key references the entity.
func (c *Collection) Related(id, field string) ([]*core.Entity, error) {
	if err := c.engine.active("related"); err != nil {
		return nil, err
	}
	rel, ok := c.schema.Relation(field)
	if !ok {
		return nil, &core.ValidationError{Collection: c.Name(), Field: field, Message: "not a relationship field"}
	}
	owner, ok := c.container.Read().Get(id)
	if !ok {
		return nil, &core.NotFoundError{Collection: c.Name(), ID: id}
	}
	snap, err := c.engine.read(rel.Target)
	if err != nil {
		return nil, err
	}
	switch rel.Kind {
	case schema.Forward:
		tid, ok := owner.Fields[rel.ForeignKey].(string)
		if !ok {
			return nil, nil
		}
		target, ok := snap.Get(tid)
		if !ok {
			return nil, nil
		}
		return []*core.Entity{target}, nil
	case schema.Inverse:
		return relatedEntities(snap, rel, id), nil
	default:
		return nil, &core.ValidationError{Collection: c.Name(), Field: field, Message: "unknown relation kind " + rel.Kind.String()}
	}
}

// Count returns the number of entities in the collection.
func (c *Collection) Count() (int, error) {
	if err := c.engine.active("count"); err != nil {
		return 0, err
	}
	return c.container.Read().Len(), nil
}

// Snapshot returns the current snapshot of the collection.
func (c *Collection) Snapshot() core.Snapshot {
	return c.container.Read()
}
