package core

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
)

type idComparer struct{}

func (idComparer) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Snapshot is an immutable id to entity mapping.
//
// Snapshots share structure with each other, so taking one is just keeping a
// reference and deriving a new one with Set or Delete never copies the whole
// mapping.
type Snapshot struct {
	m *immutable.SortedMap[string, *Entity]
}

// EmptySnapshot returns a snapshot containing no entities.
func EmptySnapshot() Snapshot {
	return Snapshot{m: immutable.NewSortedMap[string, *Entity](idComparer{})}
}

// Len returns the number of entities in the snapshot.
func (s Snapshot) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Get returns the entity with the given id.
func (s Snapshot) Get(id string) (*Entity, bool) {
	if s.m == nil {
		return nil, false
	}
	return s.m.Get(id)
}

// Has returns true if an entity with the given id exists.
func (s Snapshot) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Set returns a new snapshot containing the given entity.
func (s Snapshot) Set(e *Entity) Snapshot {
	if s.m == nil {
		s = EmptySnapshot()
	}
	return Snapshot{m: s.m.Set(e.ID, e)}
}

// Delete returns a new snapshot without the entity with the given id.
func (s Snapshot) Delete(id string) Snapshot {
	if s.m == nil {
		return s
	}
	return Snapshot{m: s.m.Delete(id)}
}

// Entities returns all entities in ascending id order.
func (s Snapshot) Entities() []*Entity {
	out := make([]*Entity, 0, s.Len())
	for iter := s.Iterator(); !iter.Done(); {
		out = append(out, iter.Next())
	}
	return out
}

// Find returns the first entity in id order matching the given function.
func (s Snapshot) Find(fn func(*Entity) bool) (*Entity, bool) {
	for iter := s.Iterator(); !iter.Done(); {
		e := iter.Next()
		if fn(e) {
			return e, true
		}
	}
	return nil, false
}

// Filter returns all entities in id order matching the given function.
func (s Snapshot) Filter(fn func(*Entity) bool) []*Entity {
	var out []*Entity
	for iter := s.Iterator(); !iter.Done(); {
		e := iter.Next()
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}

// Container is the atomic holder of one collection's current mapping.
//
// Reads never block. Swaps on the same container are serialized so that no
// update is lost; swaps on different containers are independent.
type Container struct {
	name string
	mu   sync.Mutex
	root atomic.Pointer[immutable.SortedMap[string, *Entity]]
}

// NewContainer returns an empty container for the named collection.
func NewContainer(name string) *Container {
	c := &Container{name: name}
	c.root.Store(EmptySnapshot().m)
	return c
}

// Name returns the collection name of the container.
func (c *Container) Name() string {
	return c.name
}

// Read returns the current snapshot.
func (c *Container) Read() Snapshot {
	return Snapshot{m: c.root.Load()}
}

// Swap applies fn to the latest snapshot and installs the result.
//
// If fn returns an error the container is left untouched and the error is
// returned. The installed snapshot is returned on success.
func (c *Container) Swap(fn func(Snapshot) (Snapshot, error)) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(c.Read())
	if err != nil {
		return Snapshot{}, err
	}
	if next.m == nil {
		next = EmptySnapshot()
	}
	c.root.Store(next.m)
	return next, nil
}

// Restore installs the given snapshot unconditionally.
func (c *Container) Restore(s Snapshot) {
	if s.m == nil {
		s = EmptySnapshot()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.root.Store(s.m)
}
