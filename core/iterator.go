package core

import "github.com/benbjohnson/immutable"

// SnapshotIterator iterates over all entities in a snapshot in id order.
type SnapshotIterator struct {
	it *immutable.SortedMapIterator[string, *Entity]
}

// Iterator returns a new iterator positioned at the first entity.
func (s Snapshot) Iterator() *SnapshotIterator {
	if s.m == nil {
		return &SnapshotIterator{}
	}
	return &SnapshotIterator{it: s.m.Iterator()}
}

// Done returns true if the iterator has no items left.
func (i *SnapshotIterator) Done() bool {
	return i.it == nil || i.it.Done()
}

// Seek moves the iterator to the first entity with an id greater than or equal to the given id.
func (i *SnapshotIterator) Seek(id string) {
	if i.it != nil {
		i.it.Seek(id)
	}
}

// Next returns the next entity from the iterator.
func (i *SnapshotIterator) Next() *Entity {
	_, e, _ := i.it.Next()
	return e
}
