package engine

import (
	"context"
	"time"

	"github.com/nuvio/autoflow"
)

// stepResult is reported by a step worker back to the run loop
type stepResult struct {
	stepID string
	status autoflow.StepStatus
	delta  map[string]any
	err    error
}

// runExecution drives one workflow execution to a terminal state. It is the
// single writer for the execution context and all step status bookkeeping;
// workers only touch their own StepExecution record and report back over the
// results channel, so concurrent completions merge serially here.
func (e *Engine) runExecution(
	ctx context.Context,
	def *autoflow.WorkflowDefinition,
	exec *autoflow.WorkflowExecution,
	steps map[string]*autoflow.StepExecution,
) {
	logger := autoflow.ExecutionLogger(e.logger, exec.ID, exec.WorkflowID)

	// Persistence outlives the run context so terminal states are recorded
	// even after cancellation.
	persistCtx := context.Background()

	startedAt := e.clock.Now()
	exec.Status = autoflow.ExecutionStatusRunning
	exec.StartedAt = &startedAt
	exec.UpdatedAt = startedAt
	if err := e.store.UpdateExecution(persistCtx, exec); err != nil {
		autoflow.LogPersistenceError(logger, exec.ID, "update_execution", err)
	}
	autoflow.LogExecutionStarted(logger, exec.ID, exec.WorkflowID)

	execCtx := autoflow.NewExecutionContext(exec.TriggerPayload)

	status := make(map[string]autoflow.StepStatus, len(steps))
	for id, se := range steps {
		status[id] = se.Status
	}

	total := len(def.Steps)
	// Buffered so late workers never block after the loop stops receiving
	results := make(chan stepResult, total)
	inflight := 0
	cancelled := false
	var graceExpiry <-chan time.Time
	var blockingErr *autoflow.ExecutionError

	markSkipped := func(id, code, reason string) {
		status[id] = autoflow.StepStatusSkipped
		se := steps[id]
		now := e.clock.Now()
		se.Status = autoflow.StepStatusSkipped
		se.Error = &autoflow.StepError{
			Code:      code,
			Message:   reason,
			Timestamp: now,
		}
		se.UpdatedAt = now
		if err := e.store.UpdateStepExecution(persistCtx, se); err != nil {
			autoflow.LogPersistenceError(logger, exec.ID, "update_step_execution", err)
		}
		autoflow.LogStepSkipped(logger, id, reason)
	}

	// Cascading skip to a fixpoint: dependents of a terminal non-completed
	// step become Skipped, which may unblock further skips.
	applyCascade := func() {
		for {
			skippable := skippableSteps(def, status)
			if len(skippable) == 0 {
				return
			}
			for _, id := range skippable {
				markSkipped(id, autoflow.ErrCodeDependencyFailed, "dependency did not complete")
			}
		}
	}

	persistProgress := func() {
		terminal := 0
		for _, s := range status {
			if s.IsTerminal() {
				terminal++
			}
		}
		exec.Progress = float64(terminal) / float64(total)
		exec.Context = execCtx.Snapshot()
		exec.UpdatedAt = e.clock.Now()
		if err := e.store.UpdateExecution(persistCtx, exec); err != nil {
			autoflow.LogPersistenceError(logger, exec.ID, "update_execution", err)
		}
	}

	for {
		if cancelled || blockingErr != nil {
			// Stop dispatching. Dependents of the failed step keep the
			// cascade code; pending steps abandoned for any other reason
			// record why the run stopped.
			applyCascade()
			code := autoflow.ErrCodeExecutionFailed
			reason := "execution failed"
			if cancelled {
				code = autoflow.ErrCodeCancelled
				reason = "execution cancelled"
			}
			for i := range def.Steps {
				if status[def.Steps[i].ID] == autoflow.StepStatusPending {
					markSkipped(def.Steps[i].ID, code, reason)
				}
			}
		} else {
			applyCascade()
			for _, id := range readySteps(def, status) {
				if inflight >= e.config.MaxConcurrentSteps {
					break
				}
				step, _ := def.Step(id)
				se := steps[id]
				status[id] = autoflow.StepStatusRunning
				inflight++

				input := execCtx.Snapshot()
				go func(step *autoflow.StepDefinition, se *autoflow.StepExecution, input map[string]any) {
					results <- e.runStep(ctx, logger, step, se, input)
				}(step, se, input)
			}
		}

		if inflight == 0 {
			break
		}

		if cancelled {
			select {
			case res := <-results:
				inflight--
				status[res.stepID] = res.status
				persistProgress()
			case <-graceExpiry:
				// Workers did not wind down in time; record what we know
				for id, s := range status {
					if s == autoflow.StepStatusRunning {
						status[id] = autoflow.StepStatusCancelled
						se := steps[id]
						now := e.clock.Now()
						se.Status = autoflow.StepStatusCancelled
						se.UpdatedAt = now
						if err := e.store.UpdateStepExecution(persistCtx, se); err != nil {
							autoflow.LogPersistenceError(logger, exec.ID, "update_step_execution", err)
						}
					}
				}
				inflight = 0
			}
			continue
		}

		select {
		case res := <-results:
			inflight--
			status[res.stepID] = res.status

			switch res.status {
			case autoflow.StepStatusCompleted:
				// Single-writer merge: only this goroutine touches the context
				execCtx.Merge(res.delta)
			case autoflow.StepStatusFailed:
				step, _ := def.Step(res.stepID)
				if step != nil && !step.ContinueOnError && blockingErr == nil {
					blockingErr = autoflow.ToExecutionError(res.err).WithStep(res.stepID)
				}
			}
			persistProgress()

		case <-ctx.Done():
			cancelled = true
			graceExpiry = e.clock.After(e.config.CancelGracePeriod)
		}
	}

	// Finalize
	completedAt := e.clock.Now()
	exec.Context = execCtx.Snapshot()
	exec.CompletedAt = &completedAt
	exec.UpdatedAt = completedAt

	switch {
	case cancelled:
		exec.Status = autoflow.ExecutionStatusCancelled
		autoflow.LogExecutionCancelled(logger, exec.ID)
	case blockingErr != nil:
		exec.Status = autoflow.ExecutionStatusFailed
		exec.Error = blockingErr
		autoflow.LogExecutionFailed(logger, exec.ID, blockingErr)
	default:
		exec.Status = autoflow.ExecutionStatusCompleted
		exec.Progress = 1.0
		autoflow.LogExecutionCompleted(logger, exec.ID, completedAt.Sub(startedAt))
	}

	if err := e.store.UpdateExecution(persistCtx, exec); err != nil {
		autoflow.LogPersistenceError(logger, exec.ID, "update_execution", err)
	}
}
