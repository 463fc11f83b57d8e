package autoflow

// ExecutionContext is the key-value store accumulated across a run.
// Step executors never see it directly: each dispatch hands the executor an
// immutable snapshot, and the executor returns a delta that the engine merges
// back inside a single-writer critical section (the run loop goroutine).
type ExecutionContext struct {
	values map[string]any
}

// NewExecutionContext creates a context seeded with the given values
func NewExecutionContext(seed map[string]any) *ExecutionContext {
	values := make(map[string]any, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &ExecutionContext{values: values}
}

// Value returns the value stored under key
func (c *ExecutionContext) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of keys
func (c *ExecutionContext) Len() int {
	return len(c.values)
}

// Snapshot returns a copy of the current state, safe to hand to a
// concurrently running step executor.
func (c *ExecutionContext) Snapshot() map[string]any {
	snap := make(map[string]any, len(c.values))
	for k, v := range c.values {
		snap[k] = v
	}
	return snap
}

// Merge applies a step's output delta with last-write-wins semantics per key.
// Merging the same delta twice is a no-op beyond the first merge.
func (c *ExecutionContext) Merge(delta map[string]any) {
	for k, v := range delta {
		c.values[k] = v
	}
}
