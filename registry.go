package autoflow

import (
	"context"
	"fmt"
	"sync"
)

// StepExecutor is the capability implementing one step type's domain logic.
// The engine treats all step types polymorphically through this interface;
// it never implements domain logic itself.
//
// Execute receives the step's typed config and an immutable snapshot of the
// execution context, and returns a context delta. It must honor ctx
// cancellation. Returning an error wrapped with Fatal (or a StepError with
// Retryable=false) aborts the step without consuming remaining attempts.
type StepExecutor interface {
	Execute(ctx context.Context, config StepConfig, input map[string]any) (map[string]any, error)
}

// StepExecutorFunc adapts a function to the StepExecutor interface
type StepExecutorFunc func(ctx context.Context, config StepConfig, input map[string]any) (map[string]any, error)

// Execute implements StepExecutor
func (f StepExecutorFunc) Execute(ctx context.Context, config StepConfig, input map[string]any) (map[string]any, error) {
	return f(ctx, config, input)
}

// Registry maps step types to their executor implementations.
// It is the sole extension point for domain logic.
type Registry struct {
	mu        sync.RWMutex
	executors map[StepType]StepExecutor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[StepType]StepExecutor),
	}
}

// Register binds an executor to a step type, replacing any previous binding
func (r *Registry) Register(t StepType, executor StepExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[t] = executor
}

// Resolve returns the executor for the given step type
func (r *Registry) Resolve(t StepType) (StepExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[t]
	if !ok {
		return nil, fmt.Errorf("no executor registered for step type %q", t)
	}
	return executor, nil
}

// Supports reports whether an executor is registered for the step type
func (r *Registry) Supports(t StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[t]
	return ok
}

// Types returns the registered step types
func (r *Registry) Types() []StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]StepType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}
