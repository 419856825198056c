// Package mutation implements the create, update, upsert, and delete
// operations over collection containers, including the interpretation of
// relationship operators and foreign key enforcement.
package mutation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/query"
	"github.com/nasdf/capydoc/schema"

	"go.uber.org/zap"
)

// maxIDAttempts is the number of generated ids tried before giving up on a create.
const maxIDAttempts = 8

// Scope restricts an engine to the lifetime of a unit of work.
type Scope interface {
	// Active returns an error if operations are no longer allowed.
	Active(op string) error
	// Touch records that the named collection was written.
	Touch(collection string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator sets the validator used for entity shapes. Defaults to the schema.
func WithValidator(v schema.Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithClock sets the clock used for timestamps.
func WithClock(clock core.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator sets the generator used for new entity ids.
func WithIDGenerator(gen core.IDGenerator) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithDefaultLimit sets the page size used when a read gives no limit.
func WithDefaultLimit(limit int) Option {
	return func(e *Engine) { e.defaultLimit = limit }
}

// Engine executes mutations against the containers of a store.
type Engine struct {
	store        *core.Store
	schema       *schema.Schema
	validator    schema.Validator
	clock        core.Clock
	newID        core.IDGenerator
	defaultLimit int
	logger       *zap.Logger
	scope        Scope
}

// NewEngine returns an engine for the given store and schema.
func NewEngine(store *core.Store, s *schema.Schema, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		schema:       s,
		validator:    s,
		clock:        core.Now,
		newID:        core.NewID,
		defaultLimit: query.DefaultLimit,
		logger:       store.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithScope returns a copy of the engine bound to the given scope.
func (e *Engine) WithScope(scope Scope) *Engine {
	c := *e
	c.scope = scope
	return &c
}

// Schema returns the schema of the engine.
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Store returns the store of the engine.
func (e *Engine) Store() *core.Store {
	return e.store
}

// Collection returns a handle for the named collection.
func (e *Engine) Collection(name string) (*Collection, error) {
	c, ok := e.schema.Collection(name)
	if !ok {
		return nil, &core.NotFoundError{Collection: name}
	}
	container, err := e.store.Container(name)
	if err != nil {
		return nil, err
	}
	return &Collection{engine: e, schema: c, container: container}, nil
}

// active checks that the engine scope still allows operations.
func (e *Engine) active(op string) error {
	if e.scope == nil {
		return nil
	}
	return e.scope.Active(op)
}

// commit records swapped changes and notifies observers.
func (e *Engine) commit(ctx context.Context, changes ...core.Change) {
	for _, change := range changes {
		if e.scope != nil {
			e.scope.Touch(change.Collection)
		}
		id := ""
		if change.Entity != nil {
			id = change.Entity.ID
		}
		e.logger.Debug("entity changed",
			zap.String("collection", change.Collection),
			zap.String("kind", string(change.Kind)),
			zap.String("id", id))
	}
	e.store.Notify(ctx, changes...)
}

// swap applies fn to the named collection's container, checks every proposed
// change with the before-hooks, and commits the changes on success.
func (e *Engine) swap(ctx context.Context, collection string, fn func(core.Snapshot) (core.Snapshot, []core.Change, error)) ([]core.Change, error) {
	container, err := e.store.Container(collection)
	if err != nil {
		return nil, err
	}
	var changes []core.Change
	_, err = container.Swap(func(snap core.Snapshot) (core.Snapshot, error) {
		next, proposed, err := fn(snap)
		if err != nil {
			return core.Snapshot{}, err
		}
		for _, change := range proposed {
			if err := e.store.Check(ctx, change); err != nil {
				return core.Snapshot{}, err
			}
		}
		changes = proposed
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		e.commit(ctx, changes...)
	}
	return changes, nil
}

// read returns the current snapshot of the named collection.
func (e *Engine) read(collection string) (core.Snapshot, error) {
	container, err := e.store.Container(collection)
	if err != nil {
		return core.Snapshot{}, err
	}
	return container.Read(), nil
}

// resolve returns the first entity in the target collection matching the selector.
func (e *Engine) resolve(target string, sel core.Selector) (*core.Entity, error) {
	snap, err := e.read(target)
	if err != nil {
		return nil, err
	}
	ent, ok := sel.Resolve(snap)
	if !ok {
		return nil, &core.NotFoundError{Collection: target, ID: describeSelector(sel)}
	}
	return ent, nil
}

// checkForeignKeys validates the given foreign key fields against the current
// snapshots of their target collections.
//
// Keys targeting the owning collection are checked against own, which holds
// the in-progress snapshot of the owner.
func (e *Engine) checkForeignKeys(c *schema.Collection, own core.Snapshot, fields map[string]any, only func(string) bool) error {
	for _, fk := range c.ForeignKeys() {
		if only != nil && !only(fk.Field) {
			continue
		}
		v, ok := fields[fk.Field]
		if !ok || v == nil {
			continue
		}
		id, ok := v.(string)
		if !ok {
			return &core.ValidationError{Collection: c.Name, Field: fk.Field, Message: fmt.Sprintf("foreign key must be a string, got %T", v)}
		}
		snap := own
		if fk.Target != c.Name {
			var err error
			if snap, err = e.read(fk.Target); err != nil {
				return &core.ForeignKeyError{Collection: c.Name, Field: fk.Field, Target: fk.Target}
			}
		}
		if !snap.Has(id) {
			return &core.ForeignKeyError{Collection: c.Name, Field: fk.Field, Target: fk.Target, ID: id}
		}
	}
	return nil
}

// validate runs the validator and checks foreign keys of the normalized fields.
func (e *Engine) validate(c *schema.Collection, own core.Snapshot, fields map[string]any, only func(string) bool) (map[string]any, error) {
	normalized, err := e.validator.Validate(c.Name, fields)
	if err != nil {
		return nil, err
	}
	if err := e.checkForeignKeys(c, own, normalized, only); err != nil {
		return nil, err
	}
	return normalized, nil
}

func describeSelector(sel core.Selector) string {
	if id, ok := sel.ID(); ok {
		return id
	}
	keys := make([]string, 0, len(sel))
	for k := range sel {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, sel[k])
	}
	return strings.Join(parts, ",")
}
