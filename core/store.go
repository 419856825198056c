package core

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Store is the registry of all collection containers along with the
// observers and before-hooks attached to them.
type Store struct {
	logger     *zap.Logger
	containers map[string]*Container
	names      []string

	mu        sync.RWMutex
	observers []Observer
	hooks     []BeforeHook
}

// NewStore returns a store with an empty container for each of the named collections.
func NewStore(logger *zap.Logger, names ...string) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		logger:     logger,
		containers: make(map[string]*Container, len(names)),
	}
	for _, name := range names {
		if _, ok := s.containers[name]; ok {
			continue
		}
		s.containers[name] = NewContainer(name)
		s.names = append(s.names, name)
	}
	slices.Sort(s.names)
	return s
}

// Logger returns the logger of the store.
func (s *Store) Logger() *zap.Logger {
	return s.logger
}

// Names returns the sorted names of all collections.
func (s *Store) Names() []string {
	return slices.Clone(s.names)
}

// Container returns the container for the named collection.
func (s *Store) Container(name string) (*Container, error) {
	c, ok := s.containers[name]
	if !ok {
		return nil, &NotFoundError{Collection: name}
	}
	return c, nil
}

// Snapshot captures the current mapping of every container.
func (s *Store) Snapshot() map[string]Snapshot {
	out := make(map[string]Snapshot, len(s.containers))
	for name, c := range s.containers {
		out[name] = c.Read()
	}
	return out
}

// Restore installs the given snapshots into their containers.
//
// Collections missing from the map are left untouched.
func (s *Store) Restore(snapshots map[string]Snapshot) {
	for name, snap := range snapshots {
		if c, ok := s.containers[name]; ok {
			c.Restore(snap)
		}
	}
}

// Observe registers an observer for all collections.
func (s *Store) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, o)
}

// Before registers a before-hook for all collections.
func (s *Store) Before(h BeforeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, h)
}

// Check runs all before-hooks against the proposed change and returns a
// HookError for the first veto.
func (s *Store) Check(ctx context.Context, change Change) error {
	s.mu.RLock()
	hooks := slices.Clone(s.hooks)
	s.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, change); err != nil {
			return &HookError{Collection: change.Collection, Operation: string(change.Kind), Err: err}
		}
	}
	return nil
}

// Notify delivers the changes to every observer.
//
// Observer errors and panics are logged and dropped.
func (s *Store) Notify(ctx context.Context, changes ...Change) {
	s.mu.RLock()
	observers := slices.Clone(s.observers)
	s.mu.RUnlock()

	for _, change := range changes {
		for _, o := range observers {
			s.observe(ctx, o, change)
		}
	}
}

func (s *Store) observe(ctx context.Context, o Observer, change Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("observer panicked",
				zap.String("collection", change.Collection),
				zap.String("kind", string(change.Kind)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := o.Observe(ctx, change); err != nil {
		s.logger.Warn("observer failed",
			zap.String("collection", change.Collection),
			zap.String("kind", string(change.Kind)),
			zap.Error(err))
	}
}
