package capydoc

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nasdf/capydoc/config"
	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/graphql"
	"github.com/nasdf/capydoc/storage"
	"github.com/nasdf/capydoc/transaction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSchema = `
type User {
  name: String!
  age: Int
  posts: [Post]
}

type Post {
  title: String!
  author: User
}
`

type recordingObserver struct {
	kinds []core.ChangeKind
}

func (o *recordingObserver) Observe(ctx context.Context, c core.Change) error {
	o.kinds = append(o.kinds, c.Kind)
	return nil
}

func open(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Open(context.Background(), testSchema, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close(context.Background())) })
	return db
}

func TestOpen(t *testing.T) {
	db := open(t)
	assert.Equal(t, []string{"Post", "User"}, db.Schema().Names())
	assert.NotNil(t, db.GraphQLSchema().Query.Fields.ForName("getUser"))

	_, err := db.Collection("Comment")
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = Open(context.Background(), `type User { name: Missing }`)
	assert.Error(t, err)
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	db := open(t)

	name, err := Do(ctx, db, func(ctx context.Context, tx *transaction.Tx) (string, error) {
		users, err := tx.Collection("User")
		if err != nil {
			return "", err
		}
		ent, err := users.Create(ctx, map[string]any{"id": "u1", "name": "Alice"})
		if err != nil {
			return "", err
		}
		val, _ := ent.Get("name")
		return val.(string), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	err = db.Transaction(ctx, func(ctx context.Context, tx *transaction.Tx) error {
		users, err := tx.Collection("User")
		if err != nil {
			return err
		}
		if _, err := users.Create(ctx, map[string]any{"id": "u2", "name": "Bob"}); err != nil {
			return err
		}
		_, err = users.Create(ctx, map[string]any{"id": "u1", "name": "Carol"})
		return err
	})
	var dup *core.DuplicateKeyError
	require.ErrorAs(t, err, &dup)

	users, err := db.Collection("User")
	require.NoError(t, err)
	count, err := users.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestObserversAndHooks(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	db := open(t, WithObserver(obs), WithBeforeHook(func(ctx context.Context, c core.Change) error {
		if c.Kind == core.ChangeDelete {
			return assert.AnError
		}
		return nil
	}))

	users, err := db.Collection("User")
	require.NoError(t, err)
	_, err = users.Create(ctx, map[string]any{"id": "u1", "name": "Alice"})
	require.NoError(t, err)
	_, err = users.Delete(ctx, "u1")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []core.ChangeKind{core.ChangeCreate}, obs.kinds)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	db := open(t)

	res := db.Execute(ctx, graphql.QueryParams{Query: `mutation {
		createUser(data: {id: "u1", name: "Alice", age: 30}) { id }
	}`})
	require.Empty(t, res.Errors)

	res = db.Execute(ctx, graphql.QueryParams{Query: `{ getUser(id: "u1") { name age } }`})
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"getUser": map[string]any{"name": "Alice", "age": int64(30)}}, res.Data)
}

func TestPersistenceDisabled(t *testing.T) {
	ctx := context.Background()
	db := open(t)

	_, err := db.Flush(ctx)
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
	_, err = db.Export(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
	_, err = db.Import(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	db := open(t, WithPersistence(storage.NewMemory()))

	users, err := db.Collection("User")
	require.NoError(t, err)
	_, err = users.Create(ctx, map[string]any{"id": "u1", "name": "Alice"})
	require.NoError(t, err)
	_, err = users.Create(ctx, map[string]any{"id": "u2", "name": "Bob"})
	require.NoError(t, err)

	root, err := db.Flush(ctx)
	require.NoError(t, err)

	_, err = users.Delete(ctx, "u2")
	require.NoError(t, err)
	require.NoError(t, db.Load(ctx, root))
	count, err := users.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var archive bytes.Buffer
	exported, err := db.Export(ctx, &archive)
	require.NoError(t, err)

	obs := &recordingObserver{}
	other := open(t, WithPersistence(storage.NewMemory()), WithObserver(obs))
	imported, err := other.Import(ctx, &archive)
	require.NoError(t, err)
	assert.Equal(t, exported.String(), imported.String())
	assert.Equal(t, []core.ChangeKind{core.ChangeRestore, core.ChangeRestore}, obs.kinds)

	otherUsers, err := other.Collection("User")
	require.NoError(t, err)
	ent, err := otherUsers.Get("u2")
	require.NoError(t, err)
	name, _ := ent.Get("name")
	assert.Equal(t, "Bob", name)
}

func TestLoadDuringTransaction(t *testing.T) {
	ctx := context.Background()
	db := open(t, WithPersistence(storage.NewMemory()))
	root, err := db.Flush(ctx)
	require.NoError(t, err)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Commit(ctx)

	var txErr *core.TransactionError
	assert.ErrorAs(t, db.Load(ctx, root), &txErr)
}

func TestOpenConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte(`type Note { text: String! }`), 0o644))

	cfg := config.Default()
	cfg.SchemaFile = filepath.Join(dir, "schema.graphql")
	cfg.Validation = config.ValidationJSONSchema
	note := `{"type": "object", "properties": {"text": {"type": "string", "minLength": 3}}, "required": ["text"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.json"), []byte(note), 0o644))
	cfg.JSONSchemas = map[string]string{"Note": filepath.Join(dir, "note.json")}
	cfg.Persistence.Enabled = true
	cfg.Persistence.Dir = filepath.Join(dir, "data")

	db, err := OpenConfig(ctx, cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	notes, err := db.Collection("Note")
	require.NoError(t, err)
	_, err = notes.Create(ctx, map[string]any{"text": "hi"})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
	_, err = notes.Create(ctx, map[string]any{"id": "n1", "text": "hello"})
	require.NoError(t, err)

	root, err := db.Flush(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close(ctx))

	reopened, err := OpenConfig(ctx, cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, reopened.Load(ctx, root))
	notes, err = reopened.Collection("Note")
	require.NoError(t, err)
	ent, err := notes.Get("n1")
	require.NoError(t, err)
	text, _ := ent.Get("text")
	assert.Equal(t, "hello", text)
	require.NoError(t, reopened.Close(ctx))
}
