package autoflow

import "context"

// Store defines the persistence collaborator for workflow definitions and
// execution records. The engine treats it as transactional-enough to avoid
// lost writes; implementations must be safe for concurrent use.
type Store interface {
	// Workflow definitions
	CreateWorkflow(ctx context.Context, def *WorkflowDefinition) error
	GetWorkflow(ctx context.Context, id string) (*WorkflowDefinition, error)
	UpdateWorkflow(ctx context.Context, def *WorkflowDefinition) error
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*WorkflowDefinition, error)

	// Workflow executions
	CreateExecution(ctx context.Context, exec *WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*WorkflowExecution, error)
	UpdateExecution(ctx context.Context, exec *WorkflowExecution) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*WorkflowExecution, error)

	// Step executions
	CreateStepExecution(ctx context.Context, exec *StepExecution) error
	GetStepExecution(ctx context.Context, executionID, stepID string) (*StepExecution, error)
	UpdateStepExecution(ctx context.Context, exec *StepExecution) error
	ListStepExecutions(ctx context.Context, executionID string) ([]*StepExecution, error)
}

// WorkflowFilter defines filtering criteria for workflow definitions
type WorkflowFilter struct {
	Status   *WorkflowStatus
	Category string
	Limit    int
}

// ExecutionFilter defines filtering criteria for workflow executions
type ExecutionFilter struct {
	WorkflowID string
	Status     *ExecutionStatus
	Limit      int
}
