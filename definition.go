package autoflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowStatus is the lifecycle state of a workflow definition
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "DRAFT"
	WorkflowStatusActive   WorkflowStatus = "ACTIVE"
	WorkflowStatusInactive WorkflowStatus = "INACTIVE"
)

// String returns the string representation
func (s WorkflowStatus) String() string {
	return string(s)
}

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "FIXED"
	BackoffLinear      BackoffStrategy = "LINEAR"
	BackoffExponential BackoffStrategy = "EXPONENTIAL"
)

// RetryPolicy controls how a failed step attempt is retried
type RetryPolicy struct {
	MaxAttempts int             `json:"maxAttempts"` // total attempt budget, minimum 1
	Backoff     BackoffStrategy `json:"backoff"`
	DelayMs     int             `json:"delayMs"` // base delay between attempts
}

// DefaultRetryPolicy is applied to steps that leave the policy unset
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Backoff:     BackoffExponential,
	DelayMs:     1000,
}

// Validate checks the policy invariants
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy requires maxAttempts >= 1, got %d", p.MaxAttempts)
	}
	if p.DelayMs < 0 {
		return fmt.Errorf("retry policy requires a non-negative delay, got %dms", p.DelayMs)
	}
	switch p.Backoff {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		return nil
	default:
		return fmt.Errorf("unknown backoff strategy %q", p.Backoff)
	}
}

// StepDefinition declares one step of a workflow DAG
type StepDefinition struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	Type StepType `json:"type"`

	// Typed config variant; must match Type
	Config StepConfig `json:"config"`

	// IDs of sibling steps that must complete before this step runs
	DependsOn []string `json:"dependsOn,omitempty"`

	TimeoutSeconds int         `json:"timeoutSeconds"`
	Retry          RetryPolicy `json:"retry"`

	// ContinueOnError marks the step non-blocking: a terminal failure still
	// cascades Skipped to its dependents, but does not fail the execution.
	ContinueOnError bool `json:"continueOnError,omitempty"`
}

// stepDefinitionWire is the serialized form; config is a tagged union
// keyed by the step type so it round-trips with type information intact.
type stepDefinitionWire struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	Type            StepType        `json:"type"`
	Config          json.RawMessage `json:"config"`
	DependsOn       []string        `json:"dependsOn,omitempty"`
	TimeoutSeconds  int             `json:"timeoutSeconds"`
	Retry           RetryPolicy     `json:"retry"`
	ContinueOnError bool            `json:"continueOnError,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (s StepDefinition) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if s.Config != nil {
		data, err := json.Marshal(s.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config for step %s: %w", s.ID, err)
		}
		raw = data
	}

	return json.Marshal(stepDefinitionWire{
		ID:              s.ID,
		Name:            s.Name,
		Type:            s.Type,
		Config:          raw,
		DependsOn:       s.DependsOn,
		TimeoutSeconds:  s.TimeoutSeconds,
		Retry:           s.Retry,
		ContinueOnError: s.ContinueOnError,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *StepDefinition) UnmarshalJSON(data []byte) error {
	var wire stepDefinitionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	cfg, err := decodeStepConfig(wire.Type, wire.Config)
	if err != nil {
		return fmt.Errorf("step %s: %w", wire.ID, err)
	}

	s.ID = wire.ID
	s.Name = wire.Name
	s.Type = wire.Type
	s.Config = cfg
	s.DependsOn = wire.DependsOn
	s.TimeoutSeconds = wire.TimeoutSeconds
	s.Retry = wire.Retry
	s.ContinueOnError = wire.ContinueOnError
	return nil
}

// WorkflowDefinition is the immutable blueprint of a workflow: a trigger
// plus a directed acyclic graph of typed steps.
type WorkflowDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     int    `json:"version"`

	Status  WorkflowStatus   `json:"status"`
	Trigger TriggerSpec      `json:"trigger"`
	Steps   []StepDefinition `json:"steps"`

	Tags     []string `json:"tags,omitempty"`
	Category string   `json:"category,omitempty"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Step returns the step definition with the given id
func (d *WorkflowDefinition) Step(id string) (*StepDefinition, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// StepIDs returns the step ids in declaration order
func (d *WorkflowDefinition) StepIDs() []string {
	ids := make([]string, 0, len(d.Steps))
	for i := range d.Steps {
		ids = append(ids, d.Steps[i].ID)
	}
	return ids
}
