package autoflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("workflow wf-1: %w", ErrNotFound)))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestFatal(t *testing.T) {
	cause := errors.New("bad config")
	err := Fatal(cause)

	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Fatal(nil))

	// wrapping keeps the fatal mark visible
	wrapped := fmt.Errorf("step failed: %w", err)
	assert.True(t, IsFatal(wrapped))

	assert.False(t, IsFatal(errors.New("transient")))
	assert.False(t, IsFatal(nil))
}

func TestIsFatal_NonRetryableStepError(t *testing.T) {
	se := &StepError{Message: "bad input", Code: ErrCodeValidation, Retryable: false}
	assert.True(t, IsFatal(se))

	retryable := NewStepError(ErrCodeExecutionFailed, "flaky", 1)
	assert.False(t, IsFatal(retryable))
}

func TestIsTimeoutError(t *testing.T) {
	assert.True(t, IsTimeoutError(context.DeadlineExceeded))
	assert.True(t, IsTimeoutError(&StepError{Code: ErrCodeTimeout}))
	assert.False(t, IsTimeoutError(&StepError{Code: ErrCodeExecutionFailed}))
	assert.False(t, IsTimeoutError(nil))
}

func TestToStepError(t *testing.T) {
	t.Run("passes through existing step errors", func(t *testing.T) {
		se := NewStepError(ErrCodeTimeout, "took too long", 2)
		got := ToStepError(fmt.Errorf("attempt failed: %w", se), 3)
		assert.Same(t, se, got)
	})

	t.Run("normalizes plain errors", func(t *testing.T) {
		got := ToStepError(errors.New("boom"), 2)
		require.NotNil(t, got)
		assert.Equal(t, ErrCodeExecutionFailed, got.Code)
		assert.Equal(t, 2, got.Attempt)
		assert.True(t, got.Retryable)
	})

	t.Run("fatal errors are not retryable", func(t *testing.T) {
		got := ToStepError(Fatal(errors.New("boom")), 1)
		require.NotNil(t, got)
		assert.False(t, got.Retryable)
	})

	t.Run("deadline maps to timeout code", func(t *testing.T) {
		got := ToStepError(context.DeadlineExceeded, 1)
		require.NotNil(t, got)
		assert.Equal(t, ErrCodeTimeout, got.Code)
	})

	assert.Nil(t, ToStepError(nil, 1))
}

func TestToExecutionError(t *testing.T) {
	ee := NewExecutionError(ErrCodeCancelled, "cancelled by user")
	got := ToExecutionError(fmt.Errorf("run: %w", ee))
	assert.Same(t, ee, got)

	got = ToExecutionError(errors.New("boom"))
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeExecutionFailed, got.Code)

	assert.Nil(t, ToExecutionError(nil))
}

func TestExecutionError_WithStep(t *testing.T) {
	err := NewExecutionError(ErrCodeExecutionFailed, "step blew up").WithStep("score")
	assert.Contains(t, err.Error(), "score")
	assert.Contains(t, err.Error(), ErrCodeExecutionFailed)
}
