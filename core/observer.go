package core

import "context"

// ChangeKind describes what happened to an entity.
type ChangeKind string

const (
	ChangeCreate  ChangeKind = "create"
	ChangeUpdate  ChangeKind = "update"
	ChangeDelete  ChangeKind = "delete"
	ChangeRestore ChangeKind = "restore"
)

// Change is a single committed (or proposed, for before-hooks) container change.
type Change struct {
	Collection string
	Kind       ChangeKind
	// Entity is the new entity for create and update, the removed entity for
	// delete, and nil for restore.
	Entity *Entity
	// Snapshot is the restored mapping for restore changes.
	Snapshot Snapshot
}

// Observer is notified after every successful container swap.
//
// Returned errors are logged and never affect the operation that caused the change.
type Observer interface {
	Observe(ctx context.Context, change Change) error
}

// ObserverFunc is an adapter to allow plain functions as observers.
type ObserverFunc func(ctx context.Context, change Change) error

// Observe calls f(ctx, change).
func (f ObserverFunc) Observe(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// BeforeHook is invoked with a proposed change before it is swapped in.
// Returning an error vetoes the change.
type BeforeHook func(ctx context.Context, change Change) error
