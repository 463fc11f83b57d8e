package builder

import (
	"fmt"

	"github.com/nuvio/autoflow"
)

// WorkflowBuilder provides a fluent API for assembling workflow definitions
type WorkflowBuilder struct {
	def         *autoflow.WorkflowDefinition
	lastStepIDs []string
}

// StepOption configures a single step added through the builder
type StepOption func(*autoflow.StepDefinition)

// WithName sets a human-readable step name
func WithName(name string) StepOption {
	return func(s *autoflow.StepDefinition) {
		s.Name = name
	}
}

// DependsOn declares explicit dependencies, replacing the implicit chain
func DependsOn(stepIDs ...string) StepOption {
	return func(s *autoflow.StepDefinition) {
		s.DependsOn = stepIDs
	}
}

// WithTimeout sets the per-attempt timeout in seconds
func WithTimeout(seconds int) StepOption {
	return func(s *autoflow.StepDefinition) {
		s.TimeoutSeconds = seconds
	}
}

// WithRetry sets the retry policy for the step
func WithRetry(policy autoflow.RetryPolicy) StepOption {
	return func(s *autoflow.StepDefinition) {
		s.Retry = policy
	}
}

// WithContinueOnError lets the run proceed when this step fails terminally
func WithContinueOnError() StepOption {
	return func(s *autoflow.StepDefinition) {
		s.ContinueOnError = true
	}
}

// New creates a new workflow definition builder
func New(id, name string) *WorkflowBuilder {
	return &WorkflowBuilder{
		def: &autoflow.WorkflowDefinition{
			ID:     id,
			Name:   name,
			Status: autoflow.WorkflowStatusDraft,
		},
	}
}

// WithDescription sets the workflow description
func (b *WorkflowBuilder) WithDescription(description string) *WorkflowBuilder {
	b.def.Description = description
	return b
}

// WithTrigger sets the trigger specification
func (b *WorkflowBuilder) WithTrigger(trigger autoflow.TriggerSpec) *WorkflowBuilder {
	b.def.Trigger = trigger
	return b
}

// WithTags sets workflow tags
func (b *WorkflowBuilder) WithTags(tags ...string) *WorkflowBuilder {
	b.def.Tags = tags
	return b
}

// WithCategory sets the workflow category
func (b *WorkflowBuilder) WithCategory(category string) *WorkflowBuilder {
	b.def.Category = category
	return b
}

// Step appends a step. Without a DependsOn option it chains after the step(s)
// added by the previous call, so sequential workflows read top to bottom.
func (b *WorkflowBuilder) Step(id string, config autoflow.StepConfig, opts ...StepOption) *WorkflowBuilder {
	step := autoflow.StepDefinition{
		ID:     id,
		Config: config,
	}
	if config != nil {
		step.Type = config.StepType()
	}
	for _, opt := range opts {
		opt(&step)
	}
	if step.DependsOn == nil {
		step.DependsOn = append([]string{}, b.lastStepIDs...)
	}

	b.def.Steps = append(b.def.Steps, step)
	b.lastStepIDs = []string{id}
	return b
}

// Parallel appends several steps that all depend on the previous step(s)
// and collectively become the dependency set for the next call.
func (b *WorkflowBuilder) Parallel(steps ...autoflow.StepDefinition) *WorkflowBuilder {
	var newLastIDs []string
	for _, step := range steps {
		if step.Type == "" && step.Config != nil {
			step.Type = step.Config.StepType()
		}
		if step.DependsOn == nil {
			step.DependsOn = append([]string{}, b.lastStepIDs...)
		}
		b.def.Steps = append(b.def.Steps, step)
		newLastIDs = append(newLastIDs, step.ID)
	}
	b.lastStepIDs = newLastIDs
	return b
}

// defaultTimeoutSeconds is applied to steps built without WithTimeout
const defaultTimeoutSeconds = 30

// Build finalizes and validates the workflow definition. Steps without an
// explicit timeout or retry policy get the defaults.
func (b *WorkflowBuilder) Build() (*autoflow.WorkflowDefinition, error) {
	for i := range b.def.Steps {
		step := &b.def.Steps[i]
		if step.TimeoutSeconds == 0 {
			step.TimeoutSeconds = defaultTimeoutSeconds
		}
		if step.Retry == (autoflow.RetryPolicy{}) {
			step.Retry = autoflow.DefaultRetryPolicy
		}
	}
	if err := b.def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}
	return b.def, nil
}

// MustBuild finalizes and validates the workflow definition, panics on error
func (b *WorkflowBuilder) MustBuild() *autoflow.WorkflowDefinition {
	def, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build workflow: %v", err))
	}
	return def
}
