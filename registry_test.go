package autoflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	registry := NewRegistry()

	called := false
	registry.Register(StepTypeNotification, StepExecutorFunc(
		func(ctx context.Context, config StepConfig, input map[string]any) (map[string]any, error) {
			called = true
			return map[string]any{"sent": true}, nil
		}))

	executor, err := registry.Resolve(StepTypeNotification)
	require.NoError(t, err)

	out, err := executor.Execute(context.Background(), &NotificationConfig{}, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, true, out["sent"])
}

func TestRegistry_ResolveUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Resolve(StepTypeAPICall)
	assert.Error(t, err)
	assert.False(t, registry.Supports(StepTypeAPICall))
}

func TestRegistry_Types(t *testing.T) {
	registry := NewRegistry()
	noop := StepExecutorFunc(func(ctx context.Context, config StepConfig, input map[string]any) (map[string]any, error) {
		return nil, nil
	})

	registry.Register(StepTypeAIAnalysis, noop)
	registry.Register(StepTypeAPICall, noop)

	types := registry.Types()
	assert.ElementsMatch(t, []StepType{StepTypeAIAnalysis, StepTypeAPICall}, types)
	assert.True(t, registry.Supports(StepTypeAIAnalysis))
}
