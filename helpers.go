package autoflow

import "time"

// ToPtr returns a pointer to the given value.
func ToPtr[T any](v T) *T {
	return &v
}

// CalculateBackoff returns the delay to wait before the next attempt, given
// the number of attempts already made (1-based):
//   - FIXED: baseDelay
//   - LINEAR: baseDelay * attemptsMade
//   - EXPONENTIAL: baseDelay * 2^(attemptsMade-1)
//
// Returns 0 when no attempt has been made yet.
func CalculateBackoff(baseDelayMs int, attemptsMade int, strategy BackoffStrategy) time.Duration {
	if attemptsMade <= 0 || baseDelayMs <= 0 {
		return 0
	}

	baseDelay := time.Duration(baseDelayMs) * time.Millisecond

	switch strategy {
	case BackoffFixed:
		return baseDelay
	case BackoffLinear:
		return baseDelay * time.Duration(attemptsMade)
	case BackoffExponential:
		multiplier := 1 << (attemptsMade - 1) // 2^(attemptsMade-1)
		return baseDelay * time.Duration(multiplier)
	default:
		return baseDelay
	}
}
