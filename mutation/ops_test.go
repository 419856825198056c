package mutation

import (
	"testing"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelationOps(t *testing.T) {
	forward := &schema.Relation{Kind: schema.Forward, Field: "author", Target: "User", ForeignKey: "authorId"}
	inverse := &schema.Relation{Kind: schema.Inverse, Field: "posts", Target: "Post", ForeignKey: "authorId"}

	ops, err := ParseRelationOps("Post", forward, nil)
	require.NoError(t, err)
	assert.Equal(t, ForwardDisconnect, ops[0].(ForwardOp).Operator)

	ops, err = ParseRelationOps("Post", forward, map[string]any{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, ForwardConnect, ops[0].(ForwardOp).Operator)
	assert.Equal(t, core.Selector{"id": "u1"}, ops[0].(ForwardOp).Target)

	ops, err = ParseRelationOps("Post", forward, map[string]any{"connect": "u1"})
	require.NoError(t, err)
	assert.Equal(t, core.Selector{"id": "u1"}, ops[0].(ForwardOp).Target)

	_, err = ParseRelationOps("Post", forward, "u1")
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	ops, err = ParseRelationOps("User", inverse, map[string]any{
		"set":     []any{"p1"},
		"connect": []any{"p2"},
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, InverseSet, ops[0].(InverseOp).Operator)

	ops, err = ParseRelationOps("User", inverse, map[string]any{
		"delete":     "p1",
		"connect":    []any{"p2", map[string]any{"title": "x"}},
		"disconnect": "p3",
	})
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, InverseConnect, ops[0].(InverseOp).Operator)
	assert.Len(t, ops[0].(InverseOp).Targets, 2)
	assert.Equal(t, InverseDelete, ops[1].(InverseOp).Operator)
	assert.Equal(t, InverseDisconnect, ops[2].(InverseOp).Operator)

	ops, err = ParseRelationOps("User", inverse, map[string]any{
		"update": []any{map[string]any{"where": "p1", "data": map[string]any{"title": "x"}}},
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, InverseUpdate, ops[0].(InverseOp).Operator)
	assert.Equal(t, []InverseUpdateItem{{Where: core.Selector{"id": "p1"}, Data: map[string]any{"title": "x"}}}, ops[0].(InverseOp).Updates)

	_, err = ParseRelationOps("User", inverse, map[string]any{"attach": "p1"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = ParseRelationOps("User", inverse, map[string]any{"connect": map[string]any{}})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestRelationOpPhases(t *testing.T) {
	ops := []RelationOp{
		InverseOp{Operator: InverseSet},
		InverseOp{Operator: InverseDelete},
		ForwardOp{Operator: ForwardUpdate},
		InverseOp{Operator: InverseConnect},
		ForwardOp{Operator: ForwardDisconnect},
	}
	var phases []int
	for _, op := range ops {
		phases = append(phases, op.phase())
	}
	assert.Equal(t, []int{4, 3, 2, 1, 0}, phases)
}
