package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntity(id string, fields map[string]any) *Entity {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewEntity(id, fields, now, now)
}

func TestSnapshotSharesStructure(t *testing.T) {
	a := EmptySnapshot().Set(testEntity("1", nil))
	b := a.Set(testEntity("2", nil))
	c := b.Delete("1")

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, c.Len())
	assert.True(t, a.Has("1"))
	assert.False(t, a.Has("2"))
	assert.False(t, c.Has("1"))
}

func TestSnapshotOrder(t *testing.T) {
	snap := EmptySnapshot()
	for _, id := range []string{"c", "a", "b"} {
		snap = snap.Set(testEntity(id, nil))
	}
	var ids []string
	for _, e := range snap.Entities() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	iter := snap.Iterator()
	iter.Seek("b")
	require.False(t, iter.Done())
	assert.Equal(t, "b", iter.Next().ID)
}

func TestZeroSnapshot(t *testing.T) {
	var snap Snapshot
	assert.Equal(t, 0, snap.Len())
	assert.False(t, snap.Has("1"))
	assert.True(t, snap.Iterator().Done())
	assert.Empty(t, snap.Entities())
	assert.Equal(t, 1, snap.Set(testEntity("1", nil)).Len())
}

func TestContainerSwapError(t *testing.T) {
	c := NewContainer("User")
	_, err := c.Swap(func(s Snapshot) (Snapshot, error) {
		return s.Set(testEntity("1", nil)), nil
	})
	require.NoError(t, err)

	before := c.Read()
	fail := errors.New("fail")
	_, err = c.Swap(func(s Snapshot) (Snapshot, error) {
		return s.Set(testEntity("2", nil)), fail
	})
	require.ErrorIs(t, err, fail)
	assert.Equal(t, before, c.Read())
	assert.False(t, c.Read().Has("2"))
}

func TestContainerConcurrentSwaps(t *testing.T) {
	c := NewContainer("User")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Swap(func(s Snapshot) (Snapshot, error) {
				return s.Set(testEntity(fmt.Sprintf("%03d", i), nil)), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Read().Len())
}

func TestContainerRestore(t *testing.T) {
	c := NewContainer("User")
	snap := c.Read()
	_, err := c.Swap(func(s Snapshot) (Snapshot, error) {
		return s.Set(testEntity("1", nil)), nil
	})
	require.NoError(t, err)

	c.Restore(snap)
	assert.Equal(t, 0, c.Read().Len())
}

func TestEntityIsolation(t *testing.T) {
	fields := map[string]any{"tags": []any{"a"}, "meta": map[string]any{"k": "v"}}
	e := testEntity("1", fields)
	fields["tags"].([]any)[0] = "changed"
	fields["meta"].(map[string]any)["k"] = "changed"

	assert.Equal(t, []any{"a"}, e.Fields["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, e.Fields["meta"])

	later := e.CreatedAt.Add(time.Hour)
	next := e.WithField("name", "Bob", later)
	assert.NotContains(t, e.Fields, "name")
	assert.Equal(t, e.CreatedAt, next.CreatedAt)
	assert.Equal(t, later, next.UpdatedAt)

	value := next.Value()
	assert.Equal(t, "1", value[IDFieldName])
	assert.Equal(t, []string{"meta", "name", "tags"}, next.FieldNames())

	cleared := next.WithField("meta", nil, later)
	assert.NotContains(t, cleared.Fields, "meta")
	assert.Contains(t, next.Fields, "meta")
}
