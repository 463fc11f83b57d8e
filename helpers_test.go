package autoflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name         string
		baseDelayMs  int
		attemptsMade int
		strategy     BackoffStrategy
		want         time.Duration
	}{
		{"no attempts yet", 1000, 0, BackoffFixed, 0},
		{"zero base delay", 0, 2, BackoffExponential, 0},
		{"fixed first", 500, 1, BackoffFixed, 500 * time.Millisecond},
		{"fixed third", 500, 3, BackoffFixed, 500 * time.Millisecond},
		{"linear first", 200, 1, BackoffLinear, 200 * time.Millisecond},
		{"linear third", 200, 3, BackoffLinear, 600 * time.Millisecond},
		{"exponential first", 1000, 1, BackoffExponential, 1 * time.Second},
		{"exponential second", 1000, 2, BackoffExponential, 2 * time.Second},
		{"exponential fourth", 1000, 4, BackoffExponential, 8 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateBackoff(tt.baseDelayMs, tt.attemptsMade, tt.strategy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToPtr(t *testing.T) {
	s := ToPtr(ExecutionStatusRunning)
	assert.Equal(t, ExecutionStatusRunning, *s)

	n := ToPtr(42)
	assert.Equal(t, 42, *n)
}
