package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nuvio/autoflow"
)

// Config holds engine-level configuration
type Config struct {
	// Maximum number of steps of one execution running at the same time
	MaxConcurrentSteps int

	// Applied to steps that leave their timeout unset
	DefaultStepTimeoutSeconds int

	// How long cancellation waits for in-flight steps to wind down
	CancelGracePeriod time.Duration
}

// DefaultConfig provides sensible defaults
var DefaultConfig = Config{
	MaxConcurrentSteps:        4,
	DefaultStepTimeoutSeconds: 30,
	CancelGracePeriod:         10 * time.Second,
}

// withDefaults fills non-positive fields from DefaultConfig so a partial
// Config can never stall dispatch or hand out zero timeouts.
func (c Config) withDefaults() Config {
	if c.MaxConcurrentSteps <= 0 {
		c.MaxConcurrentSteps = DefaultConfig.MaxConcurrentSteps
	}
	if c.DefaultStepTimeoutSeconds <= 0 {
		c.DefaultStepTimeoutSeconds = DefaultConfig.DefaultStepTimeoutSeconds
	}
	if c.CancelGracePeriod <= 0 {
		c.CancelGracePeriod = DefaultConfig.CancelGracePeriod
	}
	return c
}

// Engine orchestrates workflow executions: it evaluates triggers, schedules
// steps by their dependency graph, wraps each step with retry and timeout
// handling, and maintains the execution audit trail. All collaborators are
// injected; there is no package-level state.
type Engine struct {
	store    autoflow.Store
	registry *autoflow.Registry
	clock    autoflow.Clock
	logger   zerolog.Logger
	config   Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the engine
type Option func(*Engine)

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig sets a custom configuration
func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithClock sets a custom time source
func WithClock(clock autoflow.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// New creates a workflow engine backed by the given store and executor
// registry. Without options it logs to stdout at Info level and uses
// DefaultConfig and the system clock.
func New(store autoflow.Store, registry *autoflow.Registry, opts ...Option) *Engine {
	defaultLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)

	e := &Engine{
		store:    store,
		registry: registry,
		clock:    autoflow.SystemClock(),
		logger:   defaultLogger,
		config:   DefaultConfig,
		cancels:  make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(e)
	}
	e.config = e.config.withDefaults()

	return e
}

// CreateWorkflow validates and persists a new workflow definition.
// Definitions start in DRAFT status unless one is given explicitly.
func (e *Engine) CreateWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) (*autoflow.WorkflowDefinition, error) {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.Status == "" {
		def.Status = autoflow.WorkflowStatusDraft
	}
	e.applyStepDefaults(def)

	if err := e.validateDefinition(def); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	def.Version = 1
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := e.store.CreateWorkflow(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	e.logger.Info().
		Str("workflow_id", def.ID).
		Str("name", def.Name).
		Int("steps", len(def.Steps)).
		Msg("Workflow created")

	return def, nil
}

// UpdateWorkflow replaces a draft or inactive definition in place and bumps
// its version. Active definitions are immutable; deactivate first.
func (e *Engine) UpdateWorkflow(ctx context.Context, id string, def *autoflow.WorkflowDefinition) (*autoflow.WorkflowDefinition, error) {
	existing, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	if existing.Status == autoflow.WorkflowStatusActive {
		return nil, fmt.Errorf("workflow %s is active and cannot be updated", id)
	}

	def.ID = id
	if def.Status == "" {
		def.Status = existing.Status
	}
	e.applyStepDefaults(def)

	if err := e.validateDefinition(def); err != nil {
		return nil, err
	}

	def.Version = existing.Version + 1
	def.CreatedAt = existing.CreatedAt
	def.CreatedBy = existing.CreatedBy
	def.UpdatedAt = e.clock.Now()

	if err := e.store.UpdateWorkflow(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return def, nil
}

// DeleteWorkflow removes a draft or inactive definition. Active definitions
// cannot be deleted; deactivate first. Past execution records are retained as
// audit history.
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	def, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	if def.Status == autoflow.WorkflowStatusActive {
		return fmt.Errorf("workflow %s is active and cannot be deleted", id)
	}

	if err := e.store.DeleteWorkflow(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	e.logger.Info().Str("workflow_id", id).Msg("Workflow deleted")
	return nil
}

// ActivateWorkflow transitions a definition to ACTIVE
func (e *Engine) ActivateWorkflow(ctx context.Context, id string) error {
	return e.setWorkflowStatus(ctx, id, autoflow.WorkflowStatusActive)
}

// DeactivateWorkflow transitions a definition to INACTIVE
func (e *Engine) DeactivateWorkflow(ctx context.Context, id string) error {
	return e.setWorkflowStatus(ctx, id, autoflow.WorkflowStatusInactive)
}

func (e *Engine) setWorkflowStatus(ctx context.Context, id string, status autoflow.WorkflowStatus) error {
	def, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	def.Status = status
	def.UpdatedAt = e.clock.Now()

	if err := e.store.UpdateWorkflow(ctx, def); err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
	}
	return nil
}

// GetWorkflow loads a workflow definition
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*autoflow.WorkflowDefinition, error) {
	return e.store.GetWorkflow(ctx, id)
}

// ListWorkflows lists workflow definitions with filtering
func (e *Engine) ListWorkflows(ctx context.Context, filter autoflow.WorkflowFilter) ([]*autoflow.WorkflowDefinition, error) {
	return e.store.ListWorkflows(ctx, filter)
}

// Execute starts an asynchronous execution of a workflow against the given
// trigger payload and returns the execution id immediately. Inactive
// workflows cannot be executed.
func (e *Engine) Execute(ctx context.Context, workflowID string, payload map[string]any) (string, error) {
	def, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if def.Status == autoflow.WorkflowStatusInactive {
		return "", fmt.Errorf("workflow %s is inactive", workflowID)
	}

	now := e.clock.Now()
	exec := &autoflow.WorkflowExecution{
		ID:              uuid.New().String(),
		WorkflowID:      def.ID,
		WorkflowVersion: def.Version,
		Status:          autoflow.ExecutionStatusQueued,
		TriggerPayload:  payload,
		TriggerKind:     def.Trigger.Kind,
		Context:         map[string]any{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return "", fmt.Errorf("failed to create execution: %w", err)
	}

	// Pending step records are created up front so GetExecution snapshots
	// always cover the full step set.
	steps := make(map[string]*autoflow.StepExecution, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		se := &autoflow.StepExecution{
			ExecutionID: exec.ID,
			StepID:      step.ID,
			Status:      autoflow.StepStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.store.CreateStepExecution(ctx, se); err != nil {
			return "", fmt.Errorf("failed to create step execution for %s: %w", step.ID, err)
		}
		steps[step.ID] = se
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[exec.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.cancels, exec.ID)
			e.mu.Unlock()
			cancel()
		}()
		e.runExecution(runCtx, def, exec, steps)
	}()

	return exec.ID, nil
}

// HandleEvent evaluates the triggers of every active workflow against an
// inbound payload and starts an execution for each match. Trigger
// evaluation errors fail closed and are logged.
func (e *Engine) HandleEvent(ctx context.Context, payload map[string]any) ([]string, error) {
	active := autoflow.WorkflowStatusActive
	defs, err := e.store.ListWorkflows(ctx, autoflow.WorkflowFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}

	var started []string
	for _, def := range defs {
		switch def.Trigger.Kind {
		case autoflow.TriggerKindManual, autoflow.TriggerKindSchedule:
			continue
		}
		if !def.Trigger.Matches(payload) {
			continue
		}

		e.logger.Info().
			Str("event", autoflow.EventTriggerMatched).
			Str("workflow_id", def.ID).
			Str("trigger_kind", def.Trigger.Kind.String()).
			Msg("Trigger matched")

		execID, err := e.Execute(ctx, def.ID, payload)
		if err != nil {
			e.logger.Error().Err(err).Str("workflow_id", def.ID).Msg("Failed to start execution for matched trigger")
			continue
		}
		started = append(started, execID)
	}

	return started, nil
}

// DueSchedules returns the workflow ids whose schedule trigger fires in the
// window (after, until]. Intended to be driven by an external scheduler tick.
func (e *Engine) DueSchedules(ctx context.Context, after, until time.Time) ([]string, error) {
	active := autoflow.WorkflowStatusActive
	defs, err := e.store.ListWorkflows(ctx, autoflow.WorkflowFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}

	var due []string
	for _, def := range defs {
		if def.Trigger.Kind != autoflow.TriggerKindSchedule {
			continue
		}
		next, err := def.Trigger.NextFire(after)
		if err != nil {
			autoflow.LogTriggerError(e.logger, def.ID, err)
			continue
		}
		if !next.After(until) {
			due = append(due, def.ID)
		}
	}
	return due, nil
}

// GetExecution returns a point-in-time snapshot of an execution, safe to poll
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*autoflow.WorkflowExecution, error) {
	return e.store.GetExecution(ctx, executionID)
}

// GetExecutionSnapshot returns the execution together with its step records
func (e *Engine) GetExecutionSnapshot(ctx context.Context, executionID string) (*autoflow.ExecutionSnapshot, error) {
	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	steps, err := e.store.ListStepExecutions(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return &autoflow.ExecutionSnapshot{Execution: exec, Steps: steps}, nil
}

// ListExecutions lists executions with filtering
func (e *Engine) ListExecutions(ctx context.Context, filter autoflow.ExecutionFilter) ([]*autoflow.WorkflowExecution, error) {
	return e.store.ListExecutions(ctx, filter)
}

// CancelExecution requests cancellation of a running execution. In-flight
// steps receive a context cancellation; pending steps are skipped. The run
// loop finalizes the execution within the configured grace period.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) error {
	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	if exec.Status.IsTerminal() {
		return fmt.Errorf("cannot cancel execution in %s state", exec.Status)
	}

	e.mu.Lock()
	cancel, running := e.cancels[executionID]
	e.mu.Unlock()

	if running {
		cancel()
		return nil
	}

	// No run loop owns this execution (e.g. queued record from a previous
	// process); finalize it directly.
	return e.finalizeDetached(ctx, exec)
}

// Shutdown waits for all in-flight executions to finish or ctx to expire
func (e *Engine) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// validateDefinition runs the structural validation plus the registry check:
// a step type without a registered executor fails at definition time, never
// at execution time.
func (e *Engine) validateDefinition(def *autoflow.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	var missing []string
	for i := range def.Steps {
		if !e.registry.Supports(def.Steps[i].Type) {
			missing = append(missing, fmt.Sprintf("step %q: no executor registered for type %s", def.Steps[i].ID, def.Steps[i].Type))
		}
	}
	if len(missing) > 0 {
		return &autoflow.ValidationError{WorkflowID: def.ID, Issues: missing}
	}
	return nil
}

func (e *Engine) applyStepDefaults(def *autoflow.WorkflowDefinition) {
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.TimeoutSeconds == 0 {
			step.TimeoutSeconds = e.config.DefaultStepTimeoutSeconds
		}
		if step.Retry == (autoflow.RetryPolicy{}) {
			step.Retry = autoflow.DefaultRetryPolicy
		}
	}
}

// finalizeDetached cancels an execution that has no running goroutine
func (e *Engine) finalizeDetached(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	now := e.clock.Now()
	steps, err := e.store.ListStepExecutions(ctx, exec.ID)
	if err != nil {
		return fmt.Errorf("failed to list step executions: %w", err)
	}

	for _, se := range steps {
		if se.Status.IsTerminal() {
			continue
		}
		if se.Status == autoflow.StepStatusRunning {
			se.Status = autoflow.StepStatusCancelled
		} else {
			se.Status = autoflow.StepStatusSkipped
		}
		se.UpdatedAt = now
		if err := e.store.UpdateStepExecution(ctx, se); err != nil {
			autoflow.LogPersistenceError(e.logger, exec.ID, "update_step_execution", err)
		}
	}

	exec.Status = autoflow.ExecutionStatusCancelled
	exec.CompletedAt = &now
	exec.UpdatedAt = now
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return fmt.Errorf("failed to update execution on cancellation: %w", err)
	}

	autoflow.LogExecutionCancelled(e.logger, exec.ID)
	return nil
}
