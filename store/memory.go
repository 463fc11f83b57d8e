package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/nuvio/autoflow"
)

// MemoryStore implements autoflow.Store using in-memory storage (for tests
// and local development)
type MemoryStore struct {
	workflows      map[string][]byte // id -> JSON-encoded definition
	executions     map[string]*autoflow.WorkflowExecution
	stepExecutions map[string]map[string]*autoflow.StepExecution // executionID -> stepID -> record
	mu             sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:      make(map[string][]byte),
		executions:     make(map[string]*autoflow.WorkflowExecution),
		stepExecutions: make(map[string]map[string]*autoflow.StepExecution),
	}
}

// Workflow definition operations
// Definitions are stored JSON-encoded so the tagged config union round-trips
// and callers never share mutable state with the store.

func (s *MemoryStore) CreateWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[def.ID]; exists {
		return fmt.Errorf("workflow %s already exists", def.ID)
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", def.ID, err)
	}
	s.workflows[def.ID] = data
	return nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, id string) (*autoflow.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.workflows[id]
	if !exists {
		return nil, fmt.Errorf("workflow %s: %w", id, autoflow.ErrNotFound)
	}

	var def autoflow.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}
	return &def, nil
}

func (s *MemoryStore) UpdateWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[def.ID]; !exists {
		return fmt.Errorf("workflow %s: %w", def.ID, autoflow.ErrNotFound)
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", def.ID, err)
	}
	s.workflows[def.ID] = data
	return nil
}

func (s *MemoryStore) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[id]; !exists {
		return fmt.Errorf("workflow %s: %w", id, autoflow.ErrNotFound)
	}
	delete(s.workflows, id)
	return nil
}

func (s *MemoryStore) ListWorkflows(ctx context.Context, filter autoflow.WorkflowFilter) ([]*autoflow.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.workflows))
	for id := range s.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var defs []*autoflow.WorkflowDefinition
	for _, id := range ids {
		var def autoflow.WorkflowDefinition
		if err := json.Unmarshal(s.workflows[id], &def); err != nil {
			return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
		}

		if filter.Status != nil && def.Status != *filter.Status {
			continue
		}
		if filter.Category != "" && def.Category != filter.Category {
			continue
		}

		defs = append(defs, &def)
		if filter.Limit > 0 && len(defs) >= filter.Limit {
			break
		}
	}

	return defs, nil
}

// Workflow execution operations

func (s *MemoryStore) CreateExecution(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[exec.ID]; exists {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}

	s.executions[exec.ID] = copyExecution(exec)
	s.stepExecutions[exec.ID] = make(map[string]*autoflow.StepExecution)
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, id string) (*autoflow.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, exists := s.executions[id]
	if !exists {
		return nil, fmt.Errorf("execution %s: %w", id, autoflow.ErrNotFound)
	}
	return copyExecution(exec), nil
}

func (s *MemoryStore) UpdateExecution(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[exec.ID]; !exists {
		return fmt.Errorf("execution %s: %w", exec.ID, autoflow.ErrNotFound)
	}

	s.executions[exec.ID] = copyExecution(exec)
	return nil
}

func (s *MemoryStore) ListExecutions(ctx context.Context, filter autoflow.ExecutionFilter) ([]*autoflow.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*autoflow.WorkflowExecution, 0, len(s.executions))
	for _, exec := range s.executions {
		all = append(all, exec)
	}
	// Newest first, matching the query indexes of the durable stores
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	var execs []*autoflow.WorkflowExecution
	for _, exec := range all {
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != nil && exec.Status != *filter.Status {
			continue
		}

		execs = append(execs, copyExecution(exec))
		if filter.Limit > 0 && len(execs) >= filter.Limit {
			break
		}
	}

	return execs, nil
}

// Step execution operations

func (s *MemoryStore) CreateStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stepExecutions[exec.ExecutionID]; !exists {
		s.stepExecutions[exec.ExecutionID] = make(map[string]*autoflow.StepExecution)
	}

	s.stepExecutions[exec.ExecutionID][exec.StepID] = copyStepExecution(exec)
	return nil
}

func (s *MemoryStore) GetStepExecution(ctx context.Context, executionID, stepID string) (*autoflow.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, exists := s.stepExecutions[executionID]
	if !exists {
		return nil, fmt.Errorf("execution %s: %w", executionID, autoflow.ErrNotFound)
	}

	exec, exists := records[stepID]
	if !exists {
		return nil, fmt.Errorf("step execution %s/%s: %w", executionID, stepID, autoflow.ErrNotFound)
	}
	return copyStepExecution(exec), nil
}

func (s *MemoryStore) UpdateStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stepExecutions[exec.ExecutionID]; !exists {
		return fmt.Errorf("execution %s: %w", exec.ExecutionID, autoflow.ErrNotFound)
	}

	s.stepExecutions[exec.ExecutionID][exec.StepID] = copyStepExecution(exec)
	return nil
}

func (s *MemoryStore) ListStepExecutions(ctx context.Context, executionID string) ([]*autoflow.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, exists := s.stepExecutions[executionID]
	if !exists {
		return []*autoflow.StepExecution{}, nil
	}

	executions := make([]*autoflow.StepExecution, 0, len(records))
	for _, exec := range records {
		executions = append(executions, copyStepExecution(exec))
	}
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StepID < executions[j].StepID
	})

	return executions, nil
}

func copyExecution(exec *autoflow.WorkflowExecution) *autoflow.WorkflowExecution {
	cp := *exec
	cp.TriggerPayload = copyMap(exec.TriggerPayload)
	cp.Context = copyMap(exec.Context)
	return &cp
}

func copyStepExecution(exec *autoflow.StepExecution) *autoflow.StepExecution {
	cp := *exec
	cp.Input = copyMap(exec.Input)
	cp.Output = copyMap(exec.Output)
	cp.Attempts = append([]autoflow.AttemptRecord{}, exec.Attempts...)
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
