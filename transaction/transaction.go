package transaction

import (
	"context"
	"slices"
	"sync"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/mutation"

	"go.uber.org/zap"
)

// State is the lifecycle state of a transaction.
type State int

const (
	Active State = iota
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// Tx is a unit of work over all collections.
//
// Writes made through a transaction's collection handles go straight to the
// live containers, so they are visible to later reads in the transaction and
// to any other reader. Rollback reinstalls the snapshots captured when the
// transaction began.
type Tx struct {
	manager   *Manager
	engine    *mutation.Engine
	snapshots map[string]core.Snapshot

	mu      sync.Mutex
	state   State
	touched map[string]struct{}
}

// Collection returns a handle for the named collection bound to this transaction.
func (tx *Tx) Collection(name string) (*mutation.Collection, error) {
	if err := tx.Active("collection"); err != nil {
		return nil, err
	}
	return tx.engine.Collection(name)
}

// Active implements mutation.Scope.
func (tx *Tx) Active(op string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != Active {
		return &core.TransactionError{Operation: op, Reason: "transaction is " + tx.state.String()}
	}
	return nil
}

// Touch implements mutation.Scope.
func (tx *Tx) Touch(collection string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.touched[collection] = struct{}{}
}

// Touched returns the sorted names of the collections written by this transaction.
func (tx *Tx) Touched() []string {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	names := make([]string, 0, len(tx.touched))
	for name := range tx.touched {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// State returns the current lifecycle state.
func (tx *Tx) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.state
}

// Snapshot returns the snapshot of the named collection captured when the transaction began.
func (tx *Tx) Snapshot(collection string) (core.Snapshot, bool) {
	snap, ok := tx.snapshots[collection]
	return snap, ok
}

// terminate moves an active transaction into the given state.
func (tx *Tx) terminate(op string, state State) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != Active {
		return &core.TransactionError{Operation: op, Reason: "transaction already " + tx.state.String()}
	}
	tx.state = state
	return nil
}

// Commit ends the transaction, leaving every container as written.
func (tx *Tx) Commit(ctx context.Context) error {
	if err := tx.terminate("commit", Committed); err != nil {
		return err
	}
	tx.manager.release()
	tx.manager.logger.Info("transaction committed", zap.Strings("touched", tx.Touched()))
	return nil
}

// Rollback restores every container to its snapshot and ends the transaction.
//
// A successful rollback returns core.ErrRolledBack so that callers observe
// that nothing was committed. Observers receive a restore change for each
// touched collection.
func (tx *Tx) Rollback(ctx context.Context) error {
	if err := tx.terminate("rollback", RolledBack); err != nil {
		return err
	}
	store := tx.engine.Store()
	store.Restore(tx.snapshots)
	tx.manager.release()

	touched := tx.Touched()
	tx.manager.logger.Warn("transaction rolled back", zap.Strings("touched", touched))
	changes := make([]core.Change, len(touched))
	for i, name := range touched {
		changes[i] = core.Change{Collection: name, Kind: core.ChangeRestore, Snapshot: tx.snapshots[name]}
	}
	store.Notify(ctx, changes...)
	return core.ErrRolledBack
}
