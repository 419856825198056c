package core

import (
	"sort"
	"time"
)

const (
	// IDFieldName is the name of the system id field.
	IDFieldName = "id"
	// CreatedAtFieldName is the name of the system creation timestamp field.
	CreatedAtFieldName = "createdAt"
	// UpdatedAtFieldName is the name of the system modification timestamp field.
	UpdatedAtFieldName = "updatedAt"
)

// IsSystemField returns true if the field name is reserved for the engine.
func IsSystemField(name string) bool {
	switch name {
	case IDFieldName, CreatedAtFieldName, UpdatedAtFieldName:
		return true
	default:
		return false
	}
}

// Entity is a single identity-bearing record within a collection.
//
// Entities are immutable values. Every change produces a new Entity that
// replaces the old one in its container; the Fields map must never be
// modified after the entity is constructed.
type Entity struct {
	// ID is unique within the owning collection.
	ID string
	// Fields contains the declared field values, excluding system fields.
	Fields map[string]any
	// CreatedAt is set once by the engine when the entity is created.
	CreatedAt time.Time
	// UpdatedAt is set by the engine on every change.
	UpdatedAt time.Time
}

// NewEntity returns a new entity with a private copy of the given fields.
func NewEntity(id string, fields map[string]any, createdAt, updatedAt time.Time) *Entity {
	return &Entity{
		ID:        id,
		Fields:    CloneMap(fields),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// Get returns the value of the named field, including system fields.
func (e *Entity) Get(name string) (any, bool) {
	switch name {
	case IDFieldName:
		return e.ID, true
	case CreatedAtFieldName:
		return e.CreatedAt, true
	case UpdatedAtFieldName:
		return e.UpdatedAt, true
	}
	v, ok := e.Fields[name]
	return v, ok
}

// With returns a copy of the entity with the given fields and modification time.
func (e *Entity) With(fields map[string]any, updatedAt time.Time) *Entity {
	return NewEntity(e.ID, fields, e.CreatedAt, updatedAt)
}

// WithField returns a copy of the entity with a single field replaced.
// A nil value removes the field.
func (e *Entity) WithField(name string, value any, updatedAt time.Time) *Entity {
	fields := CloneMap(e.Fields)
	if value == nil {
		delete(fields, name)
	} else {
		fields[name] = value
	}
	return e.With(fields, updatedAt)
}

// Value returns a flattened copy of the entity with system fields at the root level.
func (e *Entity) Value() map[string]any {
	out := CloneMap(e.Fields)
	out[IDFieldName] = e.ID
	out[CreatedAtFieldName] = e.CreatedAt
	out[UpdatedAtFieldName] = e.UpdatedAt
	return out
}

// FieldNames returns the names of the declared fields in sorted order.
func (e *Entity) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
