// Package transaction groups mutations across collections into units of work
// that either commit together or are rolled back to the state captured when
// they began.
package transaction

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/mutation"

	"go.uber.org/zap"
)

// Manager hands out transactions over the containers of one store.
//
// Only one transaction may be active at a time. A second Begin is rejected
// immediately rather than queued.
type Manager struct {
	engine *mutation.Engine
	logger *zap.Logger
	active atomic.Bool
}

// NewManager returns a manager for the store of the given engine.
func NewManager(engine *mutation.Engine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{engine: engine, logger: logger}
}

// Active returns true while a transaction is open.
func (m *Manager) Active() bool {
	return m.active.Load()
}

// Begin captures a snapshot of every collection and returns a new transaction.
func (m *Manager) Begin(ctx context.Context) (*Tx, error) {
	if !m.active.CompareAndSwap(false, true) {
		return nil, &core.TransactionError{Operation: "begin", Reason: "nested transactions not supported"}
	}
	tx := &Tx{
		manager:   m,
		snapshots: m.engine.Store().Snapshot(),
		state:     Active,
		touched:   make(map[string]struct{}),
	}
	tx.engine = m.engine.WithScope(tx)
	m.logger.Debug("transaction started")
	return tx, nil
}

func (m *Manager) release() {
	m.active.Store(false)
}

// Run executes fn inside a new transaction.
//
// If fn returns an error or panics the transaction is rolled back and the
// original error is returned, or the panic resumed. A body that rolled back
// on its own without an error yields core.ErrRolledBack. Otherwise the
// transaction is committed.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx.State() == Active {
				_ = tx.Rollback(ctx)
			}
			panic(r)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		if tx.State() == Active {
			if rerr := tx.Rollback(ctx); !errors.Is(rerr, core.ErrRolledBack) {
				m.logger.Error("rollback failed", zap.Error(rerr))
			}
		}
		return err
	}
	switch tx.State() {
	case RolledBack:
		return core.ErrRolledBack
	case Committed:
		return nil
	default:
		return tx.Commit(ctx)
	}
}

// Do is like Run but returns the value produced by fn on commit.
func Do[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var out T
	err := m.Run(ctx, func(ctx context.Context, tx *Tx) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
