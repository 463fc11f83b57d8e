package autoflow

import (
	"time"
)

// ExecutionStatus represents the current state of a workflow execution
type ExecutionStatus string

const (
	ExecutionStatusQueued    ExecutionStatus = "QUEUED"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal returns true if the status is a final state
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// String returns the string representation
func (s ExecutionStatus) String() string {
	return string(s)
}

// StepStatus represents the current state of a step execution
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
	StepStatusSkipped   StepStatus = "SKIPPED"
	StepStatusCancelled StepStatus = "CANCELLED"
)

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s StepStatus) String() string {
	return string(s)
}

// WorkflowExecution represents a single run of a workflow definition.
// It is created when a trigger fires or on a manual execute call, mutated
// only by the engine, and retained as an immutable audit record afterwards.
type WorkflowExecution struct {
	// Identity
	ID              string `json:"id" dynamodbav:"execution_id"`
	WorkflowID      string `json:"workflowId" dynamodbav:"workflow_id"`
	WorkflowVersion int    `json:"workflowVersion" dynamodbav:"workflow_version"`

	// Status
	Status   ExecutionStatus `json:"status" dynamodbav:"status"`
	Progress float64         `json:"progress" dynamodbav:"progress"` // fraction of terminal steps, 0.0 to 1.0

	// Timing
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty" dynamodbav:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`

	// Trigger payload that started this execution
	TriggerPayload map[string]any `json:"triggerPayload,omitempty" dynamodbav:"trigger_payload,omitempty"`
	TriggerKind    TriggerKind    `json:"triggerKind,omitempty" dynamodbav:"trigger_kind,omitempty"`

	// Shared execution context, populated by step output deltas
	// (last-write-wins per key, merged only by the engine)
	Context map[string]any `json:"context,omitempty" dynamodbav:"context,omitempty"`

	// Top-level error if the execution failed
	Error *ExecutionError `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// StepExecution tracks one step's execution within a workflow run.
// Transitions are owned exclusively by the engine's retry executor.
type StepExecution struct {
	// Identity
	ExecutionID string `json:"executionId" dynamodbav:"execution_id"`
	StepID      string `json:"stepId" dynamodbav:"step_id"`

	// Status
	Status  StepStatus `json:"status" dynamodbav:"status"`
	Attempt int        `json:"attempt" dynamodbav:"attempt"` // attempts made so far, 1-based

	// Input snapshot (context at dispatch time) and output delta
	Input  map[string]any `json:"input,omitempty" dynamodbav:"input,omitempty"`
	Output map[string]any `json:"output,omitempty" dynamodbav:"output,omitempty"`

	// Error handling
	Error *StepError `json:"error,omitempty" dynamodbav:"error,omitempty"`

	// Per-attempt audit trail
	Attempts []AttemptRecord `json:"attempts,omitempty" dynamodbav:"attempts,omitempty"`

	// Timing
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty" dynamodbav:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
	DurationMs  int64      `json:"durationMs" dynamodbav:"duration_ms"`
}

// AttemptRecord captures the timing and outcome of a single attempt
type AttemptRecord struct {
	Attempt     int       `json:"attempt" dynamodbav:"attempt"`
	StartedAt   time.Time `json:"startedAt" dynamodbav:"started_at"`
	CompletedAt time.Time `json:"completedAt" dynamodbav:"completed_at"`
	Error       string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// ExecutionSnapshot is a point-in-time view of an execution with its step records
type ExecutionSnapshot struct {
	Execution *WorkflowExecution `json:"execution"`
	Steps     []*StepExecution   `json:"steps"`
}
