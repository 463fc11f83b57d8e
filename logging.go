package autoflow

import (
	"time"

	"github.com/rs/zerolog"
)

// Log event names
const (
	// Execution-level events
	EventExecutionQueued    = "execution_queued"
	EventExecutionStarted   = "execution_started"
	EventExecutionProgress  = "execution_progress"
	EventExecutionCompleted = "execution_completed"
	EventExecutionFailed    = "execution_failed"
	EventExecutionCancelled = "execution_cancelled"

	// Step-level events
	EventStepStarted   = "step_started"
	EventStepRetrying  = "step_retrying"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"
	EventStepCancelled = "step_cancelled"

	// Trigger events
	EventTriggerMatched = "trigger_matched"
	EventTriggerError   = "trigger_error"

	// Persistence events
	EventPersistenceError = "persistence_error"
)

// ExecutionLogger creates a logger enriched with execution context
func ExecutionLogger(base zerolog.Logger, executionID, workflowID string) zerolog.Logger {
	return base.With().
		Str("execution_id", executionID).
		Str("workflow_id", workflowID).
		Logger()
}

// StepLogger creates a logger enriched with step context
func StepLogger(executionLogger zerolog.Logger, stepID string, stepType StepType) zerolog.Logger {
	return executionLogger.With().
		Str("step_id", stepID).
		Str("step_type", stepType.String()).
		Logger()
}

// LogExecutionStarted logs when an execution begins running
func LogExecutionStarted(logger zerolog.Logger, executionID, workflowID string) {
	logger.Info().
		Str("event", EventExecutionStarted).
		Str("execution_id", executionID).
		Str("workflow_id", workflowID).
		Msg("Execution started")
}

// LogExecutionCompleted logs successful completion
func LogExecutionCompleted(logger zerolog.Logger, executionID string, duration time.Duration) {
	logger.Info().
		Str("event", EventExecutionCompleted).
		Str("execution_id", executionID).
		Dur("duration", duration).
		Msg("Execution completed")
}

// LogExecutionFailed logs execution failure
func LogExecutionFailed(logger zerolog.Logger, executionID string, err error) {
	logger.Error().
		Str("event", EventExecutionFailed).
		Str("execution_id", executionID).
		Err(err).
		Msg("Execution failed")
}

// LogExecutionCancelled logs execution cancellation
func LogExecutionCancelled(logger zerolog.Logger, executionID string) {
	logger.Warn().
		Str("event", EventExecutionCancelled).
		Str("execution_id", executionID).
		Msg("Execution cancelled")
}

// LogStepRetrying logs when a step attempt is about to be retried
func LogStepRetrying(logger zerolog.Logger, stepID string, attempt int, delay time.Duration) {
	logger.Warn().
		Str("event", EventStepRetrying).
		Str("step_id", stepID).
		Int("attempt", attempt).
		Dur("backoff", delay).
		Msg("Step retrying")
}

// LogStepSkipped logs a cascading skip
func LogStepSkipped(logger zerolog.Logger, stepID, reason string) {
	logger.Info().
		Str("event", EventStepSkipped).
		Str("step_id", stepID).
		Str("reason", reason).
		Msg("Step skipped")
}

// LogTriggerError logs a trigger that could not be evaluated; the trigger
// is treated as non-matching, never fatal to the definition.
func LogTriggerError(logger zerolog.Logger, workflowID string, err error) {
	logger.Warn().
		Str("event", EventTriggerError).
		Str("workflow_id", workflowID).
		Err(err).
		Msg("Trigger evaluation error")
}

// LogPersistenceError logs errors during persistence operations
func LogPersistenceError(logger zerolog.Logger, executionID, operation string, err error) {
	logger.Error().
		Str("event", EventPersistenceError).
		Str("execution_id", executionID).
		Str("operation", operation).
		Err(err).
		Msg("Persistence error")
}
