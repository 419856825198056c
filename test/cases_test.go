package test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nasdf/capydoc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testTime is the first timestamp of each case. The clock ticks one second per call.
var testTime = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

func (tc TestCase) Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var next, ticks int
	db, err := capydoc.Open(ctx, tc.Schema,
		capydoc.WithLogger(zaptest.NewLogger(t)),
		capydoc.WithClock(func() time.Time {
			now := testTime.Add(time.Duration(ticks) * time.Second)
			ticks++
			return now
		}),
		capydoc.WithIDGenerator(func() (string, error) {
			next++
			return fmt.Sprintf("gen-%d", next), nil
		}),
	)
	require.NoError(t, err, "failed to open db")

	for i, op := range tc.Operations {
		res := db.Execute(ctx, op.Params)

		kinds := make([]string, len(res.Errors))
		for j, e := range res.Errors {
			kinds[j], _ = e.Extensions["kind"].(string)
		}
		expectedKinds := make([]string, len(op.Response.Errors))
		for j, e := range op.Response.Errors {
			expectedKinds[j] = e.Kind
			if e.Message != "" && j < len(res.Errors) {
				assert.Equal(t, e.Message, res.Errors[j].Message, "operation %d error %d", i, j)
			}
		}
		require.Equal(t, expectedKinds, kinds, "operation %d errors: %v", i, res.Errors)

		if op.Response.Data == nil {
			continue
		}
		expected, err := json.Marshal(op.Response.Data)
		require.NoError(t, err)

		actual, err := json.Marshal(res.Data)
		require.NoError(t, err)

		assert.JSONEq(t, string(expected), string(actual), "operation %d", i)
	}
}

func TestCases(t *testing.T) {
	paths, err := TestCasePaths()
	require.NoError(t, err, "failed to walk test cases dir")
	require.NotEmpty(t, paths)

	for _, path := range paths {
		testCase, err := LoadTestCase(path)
		require.NoError(t, err, "failed to load test case %s", path)

		t.Logf("Running test cases: %s", path)
		t.Run(testCase.Description, testCase.Run)
	}
}
