package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	now := time.Now()
	cases := []struct {
		a, b any
		want bool
	}{
		{int(1), int64(1), true},
		{int64(2), float64(2), true},
		{float64(2.5), float64(2.5), true},
		{json.Number("3"), int64(3), true},
		{int64(1), "1", false},
		{nil, nil, true},
		{nil, int64(0), false},
		{now, now.UTC(), true},
		{map[string]any{"a": int(1)}, map[string]any{"a": int64(1)}, true},
		{map[string]any{"a": 1}, map[string]any{"b": 1}, false},
		{[]any{1, "x"}, []any{int64(1), "x"}, true},
		{[]any{1}, []any{1, 2}, false},
		{"a", "a", true},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%v=%v", c.a, c.b), func(t *testing.T) {
			assert.Equal(t, c.want, Equal(c.a, c.b))
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(nil, int64(1)))
	assert.Equal(t, 1, Compare(int64(1), nil))
	assert.Equal(t, 0, Compare(int(2), float64(2)))
	assert.Equal(t, -1, Compare(int64(2), float64(2.5)))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, -1, Compare(false, true))
	now := time.Now()
	assert.Equal(t, -1, Compare(now, now.Add(time.Second)))
}

func TestInt64(t *testing.T) {
	i, ok := Int64(float64(3))
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)

	_, ok = Int64(float64(3.5))
	assert.False(t, ok)

	_, ok = Int64("3")
	assert.False(t, ok)

	_, ok = Float64(true)
	assert.False(t, ok)
}

func TestCloneValue(t *testing.T) {
	in := map[string]any{"list": []any{map[string]any{"a": 1}}}
	out := CloneValue(in).(map[string]any)
	out["list"].([]any)[0].(map[string]any)["a"] = 2
	assert.Equal(t, 1, in["list"].([]any)[0].(map[string]any)["a"])
}

func TestSelector(t *testing.T) {
	bob := testEntity("1", map[string]any{"name": "Bob", "age": int64(30)})
	ann := testEntity("2", map[string]any{"name": "Ann"})
	snap := EmptySnapshot().Set(bob).Set(ann)

	e, ok := Selector{"id": "2"}.Resolve(snap)
	assert.True(t, ok)
	assert.Equal(t, ann, e)

	e, ok = Selector{"name": "Bob", "age": 30}.Resolve(snap)
	assert.True(t, ok)
	assert.Equal(t, bob, e)

	_, ok = Selector{"id": "3"}.Resolve(snap)
	assert.False(t, ok)

	assert.True(t, Selector{"age": nil}.Matches(ann))
	assert.False(t, Selector{"id": 1}.Matches(bob))
}

func TestKindOf(t *testing.T) {
	cases := map[ErrorKind]error{
		KindValidation:   &ValidationError{Collection: "User"},
		KindForeignKey:   &ForeignKeyError{Collection: "Post", Field: "authorId", Target: "User", ID: "1"},
		KindNotFound:     fmt.Errorf("wrapped: %w", &NotFoundError{Collection: "User", ID: "1"}),
		KindDuplicateKey: &DuplicateKeyError{Collection: "User", ID: "1"},
		KindTransaction:  &TransactionError{Operation: "commit", Reason: "already committed"},
		KindHook:         &HookError{Collection: "User", Operation: "create", Err: &ValidationError{Collection: "User"}},
		KindRolledBack:   ErrRolledBack,
		"":               errors.New("other"),
	}
	for kind, err := range cases {
		assert.Equal(t, kind, KindOf(err), "%v", err)
	}
	assert.Equal(t, ErrorKind(""), KindOf(nil))

	var hint HintError = &NotFoundError{Collection: "User"}
	assert.Contains(t, hint.Hint(), "not declared")
}
