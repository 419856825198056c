// Package capydoc is an embedded, schema-validated document store.
//
// Collections are declared with GraphQL SDL, mutated through collection
// handles or GraphQL operations, and grouped into transactions that either
// commit together or roll back to the state captured when they began.
package capydoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nasdf/capydoc/config"
	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/graphql"
	"github.com/nasdf/capydoc/link"
	"github.com/nasdf/capydoc/mutation"
	"github.com/nasdf/capydoc/schema"
	"github.com/nasdf/capydoc/storage"
	"github.com/nasdf/capydoc/transaction"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
)

// ErrPersistenceDisabled is returned by persistence operations of a DB
// opened without storage.
var ErrPersistenceDisabled = errors.New("persistence is not enabled")

// DB is an open document store.
type DB struct {
	schema   *schema.Schema
	store    *core.Store
	engine   *mutation.Engine
	manager  *transaction.Manager
	executor *graphql.Executor
	recorder *link.Recorder
	logger   *zap.Logger
}

// Option configures a DB.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	engine    []mutation.Option
	observers []core.Observer
	hooks     []core.BeforeHook
	storage   storage.Storage
}

// WithLogger sets the logger of every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithValidator replaces the schema validator.
func WithValidator(v schema.Validator) Option {
	return func(o *options) { o.engine = append(o.engine, mutation.WithValidator(v)) }
}

// WithClock sets the clock used for entity timestamps.
func WithClock(clock core.Clock) Option {
	return func(o *options) { o.engine = append(o.engine, mutation.WithClock(clock)) }
}

// WithIDGenerator sets the generator used for entities created without an id.
func WithIDGenerator(gen core.IDGenerator) Option {
	return func(o *options) { o.engine = append(o.engine, mutation.WithIDGenerator(gen)) }
}

// WithDefaultLimit sets the page size used when a read does not give one.
func WithDefaultLimit(limit int) Option {
	return func(o *options) { o.engine = append(o.engine, mutation.WithDefaultLimit(limit)) }
}

// WithObserver registers an observer notified after every change.
func WithObserver(obs core.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithBeforeHook registers a hook that may veto changes before they are applied.
func WithBeforeHook(h core.BeforeHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

// WithPersistence mirrors every committed entity into the given storage.
func WithPersistence(s storage.Storage) Option {
	return func(o *options) { o.storage = s }
}

// Open creates a DB for the given GraphQL SDL.
func Open(ctx context.Context, source string, opts ...Option) (*DB, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := schema.Load(source)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	store := core.NewStore(o.logger, s.Names()...)
	engine := mutation.NewEngine(store, s, o.engine...)
	manager := transaction.NewManager(engine, o.logger)
	executor, err := graphql.NewExecutor(engine, manager)
	if err != nil {
		return nil, err
	}
	db := &DB{
		schema:   s,
		store:    store,
		engine:   engine,
		manager:  manager,
		executor: executor,
		logger:   o.logger,
	}
	if o.storage != nil {
		db.recorder, err = link.NewRecorder(link.NewStore(o.storage), s, o.logger)
		if err != nil {
			return nil, err
		}
		store.Observe(db.recorder)
	}
	for _, obs := range o.observers {
		store.Observe(obs)
	}
	for _, h := range o.hooks {
		store.Before(h)
	}
	o.logger.Info("store opened", zap.Strings("collections", s.Names()), zap.Bool("persistence", db.recorder != nil))
	return db, nil
}

// OpenConfig creates a DB from a configuration.
func OpenConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	source, err := cfg.SchemaSource()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		return nil, err
	}
	base := []Option{WithLogger(logger)}
	if cfg.Validation == config.ValidationJSONSchema {
		docs, err := cfg.JSONSchemaDocuments()
		if err != nil {
			return nil, err
		}
		v, err := schema.NewJSONSchemaValidator(docs)
		if err != nil {
			return nil, err
		}
		base = append(base, WithValidator(v))
	}
	if cfg.Pagination.DefaultLimit > 0 {
		base = append(base, WithDefaultLimit(cfg.Pagination.DefaultLimit))
	}
	if cfg.Persistence.Enabled {
		s, err := storage.Open(cfg.Path(cfg.Persistence.Dir))
		if err != nil {
			return nil, err
		}
		base = append(base, WithPersistence(s))
	}
	return Open(ctx, source, append(base, opts...)...)
}

// Schema returns the schema of the store.
func (db *DB) Schema() *schema.Schema {
	return db.schema
}

// Logger returns the logger of the store.
func (db *DB) Logger() *zap.Logger {
	return db.logger
}

// Collection returns a handle for the named collection outside of any transaction.
func (db *DB) Collection(name string) (*mutation.Collection, error) {
	return db.engine.Collection(name)
}

// Observe registers an observer notified after every change.
func (db *DB) Observe(o core.Observer) {
	db.store.Observe(o)
}

// Before registers a hook that may veto changes before they are applied.
func (db *DB) Before(h core.BeforeHook) {
	db.store.Before(h)
}

// Begin starts a transaction.
func (db *DB) Begin(ctx context.Context) (*transaction.Tx, error) {
	return db.manager.Begin(ctx)
}

// Transaction runs fn inside a transaction that commits when fn returns nil.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context, tx *transaction.Tx) error) error {
	return db.manager.Run(ctx, fn)
}

// Do runs fn inside a transaction of db and returns its value on commit.
func Do[T any](ctx context.Context, db *DB, fn func(ctx context.Context, tx *transaction.Tx) (T, error)) (T, error) {
	return transaction.Do(ctx, db.manager, fn)
}

// Execute runs a GraphQL operation.
func (db *DB) Execute(ctx context.Context, params graphql.QueryParams) graphql.QueryResponse {
	return db.executor.Execute(ctx, params)
}

// GraphQLSchema returns the generated GraphQL schema served by Execute.
func (db *DB) GraphQLSchema() *ast.Schema {
	return db.executor.Schema()
}

// Handler returns an http.Handler serving GraphQL operations.
func (db *DB) Handler() http.Handler {
	return graphql.Handler(db.executor)
}

// Flush persists the current state and returns its root link.
func (db *DB) Flush(ctx context.Context) (datamodel.Link, error) {
	if db.recorder == nil {
		return nil, ErrPersistenceDisabled
	}
	return db.recorder.Flush(ctx)
}

// Export flushes the current state and writes it as a CAR archive.
func (db *DB) Export(ctx context.Context, w io.Writer) (datamodel.Link, error) {
	root, err := db.Flush(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.recorder.Store().Export(ctx, root, w); err != nil {
		return nil, err
	}
	return root, nil
}

// Import reads a CAR archive written by Export and loads its root.
func (db *DB) Import(ctx context.Context, r io.Reader) (datamodel.Link, error) {
	if db.recorder == nil {
		return nil, ErrPersistenceDisabled
	}
	root, err := db.recorder.Store().Import(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := db.Load(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// Load replaces the contents of every collection with the state persisted under root.
//
// Collections missing from the root are emptied. Observers receive a restore
// change for each collection.
func (db *DB) Load(ctx context.Context, root datamodel.Link) error {
	if db.recorder == nil {
		return ErrPersistenceDisabled
	}
	if db.manager.Active() {
		return &core.TransactionError{Operation: "load", Reason: "transaction in progress"}
	}
	collections, err := db.recorder.Load(ctx, root)
	if err != nil {
		return err
	}
	snapshots := make(map[string]core.Snapshot, len(collections))
	for _, name := range db.store.Names() {
		snapshots[name] = core.EmptySnapshot()
	}
	for name, entities := range collections {
		snap, ok := snapshots[name]
		if !ok {
			return &core.NotFoundError{Collection: name}
		}
		for _, e := range entities {
			snap = snap.Set(e)
		}
		snapshots[name] = snap
	}
	db.store.Restore(snapshots)

	changes := make([]core.Change, 0, len(snapshots))
	for _, name := range db.store.Names() {
		changes = append(changes, core.Change{Collection: name, Kind: core.ChangeRestore, Snapshot: snapshots[name]})
	}
	db.store.Notify(ctx, changes...)
	db.logger.Info("store loaded", zap.String("root", root.String()))
	return nil
}

// Close flushes persisted state and the logger.
func (db *DB) Close(ctx context.Context) error {
	if db.recorder != nil {
		if _, err := db.recorder.Flush(ctx); err != nil {
			return err
		}
	}
	_ = db.logger.Sync()
	return nil
}
