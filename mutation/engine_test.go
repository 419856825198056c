package mutation

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSchema = `
type User {
  name: String!
  age: Int
  tags: [String!]
  posts: [Post]
}

type Post {
  title: String!
  author: User @relation(field: "authorId")
}

type Badge {
  label: String!
  owner: User!
}
`

var testTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type testClock struct {
	ticks atomic.Int64
}

func (c *testClock) now() time.Time {
	return testTime.Add(time.Duration(c.ticks.Add(1)) * time.Second)
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	s, err := schema.Load(testSchema)
	require.NoError(t, err)

	var ids atomic.Int64
	clock := &testClock{}
	base := []Option{
		WithClock(clock.now),
		WithIDGenerator(func() (string, error) {
			return fmt.Sprintf("gen-%d", ids.Add(1)), nil
		}),
	}
	store := core.NewStore(zaptest.NewLogger(t), s.Names()...)
	return NewEngine(store, s, append(base, opts...)...)
}

func collection(t *testing.T, e *Engine, name string) *Collection {
	t.Helper()

	c, err := e.Collection(name)
	require.NoError(t, err)
	return c
}

func create(t *testing.T, c *Collection, input map[string]any) *core.Entity {
	t.Helper()

	ent, err := c.Create(context.Background(), input)
	require.NoError(t, err)
	return ent
}
