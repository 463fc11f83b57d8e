package autoflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeExecutionFailed  = "EXECUTION_FAILED"
	ErrCodeDependencyFailed = "DEPENDENCY_FAILED"
	ErrCodeCancelled        = "CANCELLED"
	ErrCodePanic            = "PANIC"
	ErrCodeTrigger          = "TRIGGER_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ErrNotFound is wrapped by stores when a record does not exist
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err indicates a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ExecutionError is the top-level error attached to a failed execution
type ExecutionError struct {
	Message   string    `json:"message" dynamodbav:"message"`
	Code      string    `json:"code" dynamodbav:"code"`
	StepID    string    `json:"stepId,omitempty" dynamodbav:"step_id,omitempty"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] %s (step: %s)", e.Code, e.Message, e.StepID)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewExecutionError creates a new execution error
func NewExecutionError(code, message string) *ExecutionError {
	return &ExecutionError{
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// WithStep attaches the failing step id
func (e *ExecutionError) WithStep(stepID string) *ExecutionError {
	e.StepID = stepID
	return e
}

// StepError is the error recorded on a failed step execution.
// Retryable controls whether the retry executor may attempt the step again;
// timeouts are retryable, validation/config errors from executors are not.
type StepError struct {
	Message   string    `json:"message" dynamodbav:"message"`
	Code      string    `json:"code" dynamodbav:"code"`
	Attempt   int       `json:"attempt" dynamodbav:"attempt"`
	Retryable bool      `json:"retryable" dynamodbav:"retryable"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Error implements the error interface
func (e *StepError) Error() string {
	return fmt.Sprintf("[%s] %s (attempt: %d)", e.Code, e.Message, e.Attempt)
}

// NewStepError creates a new retryable step error
func NewStepError(code, message string, attempt int) *StepError {
	return &StepError{
		Message:   message,
		Code:      code,
		Attempt:   attempt,
		Retryable: true,
		Timestamp: time.Now(),
	}
}

// fatalError marks an error as non-retryable without losing the cause
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal wraps an executor error so the retry executor aborts the step
// immediately instead of consuming remaining attempts.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err must not be retried
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *fatalError
	if errors.As(err, &fe) {
		return true
	}
	var se *StepError
	if errors.As(err, &se) {
		return !se.Retryable
	}
	return false
}

// IsTimeoutError reports whether err came from an attempt deadline
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Code == ErrCodeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "context deadline exceeded")
}

// ToStepError normalizes an arbitrary error into a StepError for persistence
func ToStepError(err error, attempt int) *StepError {
	if err == nil {
		return nil
	}

	var se *StepError
	if errors.As(err, &se) {
		return se
	}

	code := ErrCodeExecutionFailed
	if IsTimeoutError(err) {
		code = ErrCodeTimeout
	}

	return &StepError{
		Message:   err.Error(),
		Code:      code,
		Attempt:   attempt,
		Retryable: !IsFatal(err),
		Timestamp: time.Now(),
	}
}

// ToExecutionError normalizes an arbitrary error into an ExecutionError
func ToExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}

	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}

	return &ExecutionError{
		Message:   err.Error(),
		Code:      ErrCodeExecutionFailed,
		Timestamp: time.Now(),
	}
}
