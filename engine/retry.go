package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nuvio/autoflow"
)

// runStep executes one step to a terminal state: each attempt runs under a
// hard timeout, failures are classified retryable or fatal, and retries wait
// out the configured backoff. Every attempt is recorded on the step's audit
// trail. Called from a worker goroutine; it mutates only its own
// StepExecution record.
func (e *Engine) runStep(
	ctx context.Context,
	execLogger zerolog.Logger,
	step *autoflow.StepDefinition,
	se *autoflow.StepExecution,
	input map[string]any,
) stepResult {
	stepLogger := autoflow.StepLogger(execLogger, step.ID, step.Type)
	persistCtx := context.Background()

	executor, err := e.registry.Resolve(step.Type)
	if err != nil {
		// Definitions are validated against the registry, so this indicates
		// an executor was unregistered after activation.
		return e.failStep(persistCtx, stepLogger, step, se, autoflow.Fatal(err))
	}

	se.Input = input
	timeout := time.Duration(step.TimeoutSeconds) * time.Second

	maxAttempts := step.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := autoflow.CalculateBackoff(step.Retry.DelayMs, attempt-1, step.Retry.Backoff)
			autoflow.LogStepRetrying(stepLogger, step.ID, attempt, delay)
			if delay > 0 {
				select {
				case <-e.clock.After(delay):
				case <-ctx.Done():
					return e.cancelStep(persistCtx, stepLogger, se)
				}
			}
		}

		now := e.clock.Now()
		se.Status = autoflow.StepStatusRunning
		se.Attempt = attempt
		if se.StartedAt == nil {
			se.StartedAt = &now
		}
		se.UpdatedAt = now
		if err := e.store.UpdateStepExecution(persistCtx, se); err != nil {
			autoflow.LogPersistenceError(stepLogger, se.ExecutionID, "update_step_execution", err)
		}

		stepLogger.Info().
			Str("event", autoflow.EventStepStarted).
			Int("attempt", attempt).
			Msg("Step started")

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		started := e.clock.Now()
		delta, execErr := safeExecute(attemptCtx, executor, step.Config, input)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()
		finished := e.clock.Now()

		record := autoflow.AttemptRecord{
			Attempt:     attempt,
			StartedAt:   started,
			CompletedAt: finished,
		}
		if execErr != nil {
			record.Error = execErr.Error()
		}
		se.Attempts = append(se.Attempts, record)
		se.DurationMs += finished.Sub(started).Milliseconds()

		if execErr == nil {
			se.Status = autoflow.StepStatusCompleted
			se.Output = delta
			se.CompletedAt = &finished
			se.UpdatedAt = finished
			if err := e.store.UpdateStepExecution(persistCtx, se); err != nil {
				autoflow.LogPersistenceError(stepLogger, se.ExecutionID, "update_step_execution", err)
			}

			stepLogger.Info().
				Str("event", autoflow.EventStepCompleted).
				Int("attempts", attempt).
				Int64("duration_ms", se.DurationMs).
				Msg("Step completed")

			return stepResult{stepID: step.ID, status: autoflow.StepStatusCompleted, delta: delta}
		}

		if ctx.Err() != nil && !timedOut {
			// The whole execution was cancelled, not just this attempt
			return e.cancelStep(persistCtx, stepLogger, se)
		}

		if timedOut {
			execErr = &autoflow.StepError{
				Code:      autoflow.ErrCodeTimeout,
				Message:   fmt.Sprintf("step timed out after %ds", step.TimeoutSeconds),
				Attempt:   attempt,
				Retryable: true,
				Timestamp: finished,
			}
		}

		lastErr = execErr
		stepLogger.Error().
			Str("event", autoflow.EventStepFailed).
			Err(execErr).
			Int("attempt", attempt).
			Msg("Step attempt failed")

		if autoflow.IsFatal(execErr) {
			// Fatal errors abort immediately without consuming remaining attempts
			break
		}
	}

	return e.failStep(persistCtx, stepLogger, step, se, lastErr)
}

// failStep records a terminal failure on the step execution
func (e *Engine) failStep(
	ctx context.Context,
	logger zerolog.Logger,
	step *autoflow.StepDefinition,
	se *autoflow.StepExecution,
	cause error,
) stepResult {
	now := e.clock.Now()
	se.Status = autoflow.StepStatusFailed
	se.Error = autoflow.ToStepError(cause, se.Attempt)
	se.CompletedAt = &now
	se.UpdatedAt = now
	if err := e.store.UpdateStepExecution(ctx, se); err != nil {
		autoflow.LogPersistenceError(logger, se.ExecutionID, "update_step_execution", err)
	}

	logger.Error().
		Str("event", autoflow.EventStepFailed).
		Err(cause).
		Int("attempts_made", se.Attempt).
		Int("max_attempts", step.Retry.MaxAttempts).
		Msg("Step failed")

	return stepResult{stepID: step.ID, status: autoflow.StepStatusFailed, err: cause}
}

// cancelStep records cancellation on the step execution
func (e *Engine) cancelStep(ctx context.Context, logger zerolog.Logger, se *autoflow.StepExecution) stepResult {
	now := e.clock.Now()
	se.Status = autoflow.StepStatusCancelled
	se.UpdatedAt = now
	if err := e.store.UpdateStepExecution(ctx, se); err != nil {
		autoflow.LogPersistenceError(logger, se.ExecutionID, "update_step_execution", err)
	}

	logger.Warn().
		Str("event", autoflow.EventStepCancelled).
		Msg("Step cancelled")

	return stepResult{stepID: se.StepID, status: autoflow.StepStatusCancelled}
}

// safeExecute invokes the executor with panic recovery; a panicking executor
// becomes a fatal step error instead of taking down the worker.
func safeExecute(
	ctx context.Context,
	executor autoflow.StepExecutor,
	config autoflow.StepConfig,
	input map[string]any,
) (delta map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = autoflow.Fatal(fmt.Errorf("step panicked: %v", r))
		}
	}()

	return executor.Execute(ctx, config, input)
}
