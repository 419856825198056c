package link

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"
	"github.com/nasdf/capydoc/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testTime = time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)

const testSchema = `
type User {
  name: String!
  age: Int
  score: Float
  tags: [String!]
  settings: JSON
}

type Post {
  title: String!
}
`

func testUser(id string) *core.Entity {
	return core.NewEntity(id, map[string]any{
		"name":     "Bob",
		"age":      int64(30),
		"score":    1.5,
		"tags":     []any{"a", "b"},
		"settings": map[string]any{"theme": "dark", "flags": []any{true, nil}},
	}, testTime, testTime.Add(time.Minute))
}

func TestEncodeDecode(t *testing.T) {
	e := testUser("u1")
	n, err := Encode(e)
	require.NoError(t, err)

	out, err := Decode(n)
	require.NoError(t, err)
	assert.Equal(t, e.ID, out.ID)
	assert.Equal(t, e.Fields, out.Fields)
	assert.True(t, e.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, e.UpdatedAt.Equal(out.UpdatedAt))
}

func TestStoreLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemory())

	n, err := Encode(testUser("u1"))
	require.NoError(t, err)
	lnk, err := store.Store(ctx, n)
	require.NoError(t, err)

	parsed, err := Parse(lnk.String())
	require.NoError(t, err)
	assert.Equal(t, lnk, parsed)

	_, err = Parse("not a cid")
	assert.Error(t, err)
}

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	r, err := NewRecorder(NewStore(storage.NewMemory()), schema.MustLoad(testSchema), zaptest.NewLogger(t))
	require.NoError(t, err)
	return r
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t)
	assert.Nil(t, r.Root())

	require.NoError(t, r.Observe(ctx, core.Change{Collection: "User", Kind: core.ChangeCreate, Entity: testUser("u1")}))
	require.NoError(t, r.Observe(ctx, core.Change{Collection: "User", Kind: core.ChangeCreate, Entity: testUser("u2")}))
	require.NoError(t, r.Observe(ctx, core.Change{Collection: "User", Kind: core.ChangeDelete, Entity: testUser("u2")}))
	assert.Error(t, r.Observe(ctx, core.Change{Collection: "Missing", Kind: core.ChangeCreate, Entity: testUser("u3")}))

	root, err := r.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, r.Root())

	collections, err := r.Load(ctx, root)
	require.NoError(t, err)
	require.Len(t, collections["User"], 1)
	assert.Equal(t, "u1", collections["User"][0].ID)
	assert.Empty(t, collections["Post"])

	ent, err := r.Get(ctx, root, "User", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", ent.Fields["name"])

	_, err = r.Get(ctx, root, "User", "u2")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestRecorderRestore(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t)

	require.NoError(t, r.Observe(ctx, core.Change{Collection: "User", Kind: core.ChangeCreate, Entity: testUser("u1")}))
	snap := core.EmptySnapshot().Set(testUser("u2")).Set(testUser("u3"))
	require.NoError(t, r.Observe(ctx, core.Change{Collection: "User", Kind: core.ChangeRestore, Snapshot: snap}))

	root, err := r.Flush(ctx)
	require.NoError(t, err)
	collections, err := r.Load(ctx, root)
	require.NoError(t, err)

	var ids []string
	for _, e := range collections["User"] {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"u2", "u3"}, ids)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t)
	require.NoError(t, r.Observe(ctx, core.Change{Collection: "User", Kind: core.ChangeCreate, Entity: testUser("u1")}))
	root, err := r.Flush(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Store().Export(ctx, root, &buf))

	other := newTestRecorder(t)
	imported, err := other.Store().Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, root.String(), imported.String())

	collections, err := other.Load(ctx, imported)
	require.NoError(t, err)
	require.Len(t, collections["User"], 1)
	assert.Equal(t, testUser("u1").Fields, collections["User"][0].Fields)
}
