package autoflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContext_SeedAndValue(t *testing.T) {
	ctx := NewExecutionContext(map[string]any{"lead_id": "L-42"})

	v, ok := ctx.Value("lead_id")
	require.True(t, ok)
	assert.Equal(t, "L-42", v)

	_, ok = ctx.Value("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, ctx.Len())
}

func TestExecutionContext_MergeLastWriteWins(t *testing.T) {
	ctx := NewExecutionContext(map[string]any{"score": 10})

	ctx.Merge(map[string]any{"score": 20, "stage": "qualified"})
	ctx.Merge(map[string]any{"score": 30})

	v, _ := ctx.Value("score")
	assert.Equal(t, 30, v)
	v, _ = ctx.Value("stage")
	assert.Equal(t, "qualified", v)
}

func TestExecutionContext_SnapshotIsolation(t *testing.T) {
	ctx := NewExecutionContext(map[string]any{"a": 1})

	snap := ctx.Snapshot()
	snap["a"] = 99
	snap["b"] = 2

	v, _ := ctx.Value("a")
	assert.Equal(t, 1, v)
	_, ok := ctx.Value("b")
	assert.False(t, ok)
}

func TestExecutionContext_SeedCopied(t *testing.T) {
	seed := map[string]any{"a": 1}
	ctx := NewExecutionContext(seed)

	seed["a"] = 99

	v, _ := ctx.Value("a")
	assert.Equal(t, 1, v)
}
