package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nuvio/autoflow"
)

// dagDefinition builds a definition with bare steps and the given edges;
// only ids and dependencies matter to the scheduler.
func dagDefinition(deps map[string][]string, order ...string) *autoflow.WorkflowDefinition {
	def := &autoflow.WorkflowDefinition{ID: "wf-dag", Name: "dag"}
	for _, id := range order {
		def.Steps = append(def.Steps, autoflow.StepDefinition{
			ID:        id,
			DependsOn: deps[id],
		})
	}
	return def
}

func TestReadySteps(t *testing.T) {
	def := dagDefinition(map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}, "a", "b", "c", "d")

	t.Run("roots are ready first", func(t *testing.T) {
		status := map[string]autoflow.StepStatus{
			"a": autoflow.StepStatusPending,
			"b": autoflow.StepStatusPending,
			"c": autoflow.StepStatusPending,
			"d": autoflow.StepStatusPending,
		}
		assert.Equal(t, []string{"a"}, readySteps(def, status))
	})

	t.Run("siblings unblock together", func(t *testing.T) {
		status := map[string]autoflow.StepStatus{
			"a": autoflow.StepStatusCompleted,
			"b": autoflow.StepStatusPending,
			"c": autoflow.StepStatusPending,
			"d": autoflow.StepStatusPending,
		}
		assert.Equal(t, []string{"b", "c"}, readySteps(def, status))
	})

	t.Run("join waits for every dependency", func(t *testing.T) {
		status := map[string]autoflow.StepStatus{
			"a": autoflow.StepStatusCompleted,
			"b": autoflow.StepStatusCompleted,
			"c": autoflow.StepStatusRunning,
			"d": autoflow.StepStatusPending,
		}
		assert.Empty(t, readySteps(def, status))

		status["c"] = autoflow.StepStatusCompleted
		assert.Equal(t, []string{"d"}, readySteps(def, status))
	})

	t.Run("running and terminal steps are not re-dispatched", func(t *testing.T) {
		status := map[string]autoflow.StepStatus{
			"a": autoflow.StepStatusCompleted,
			"b": autoflow.StepStatusRunning,
			"c": autoflow.StepStatusFailed,
			"d": autoflow.StepStatusPending,
		}
		assert.Empty(t, readySteps(def, status))
	})
}

func TestSkippableSteps(t *testing.T) {
	def := dagDefinition(map[string][]string{
		"b": {"a"},
		"c": {"b"},
	}, "a", "b", "c")

	t.Run("dependent of failed step is skippable", func(t *testing.T) {
		status := map[string]autoflow.StepStatus{
			"a": autoflow.StepStatusFailed,
			"b": autoflow.StepStatusPending,
			"c": autoflow.StepStatusPending,
		}
		// one pass looks at direct dependencies only
		assert.Equal(t, []string{"b"}, skippableSteps(def, status))

		// marking b skipped unblocks the next pass, cascading to c
		status["b"] = autoflow.StepStatusSkipped
		assert.Equal(t, []string{"c"}, skippableSteps(def, status))

		status["c"] = autoflow.StepStatusSkipped
		assert.Empty(t, skippableSteps(def, status))
	})

	t.Run("completed dependency does not skip", func(t *testing.T) {
		status := map[string]autoflow.StepStatus{
			"a": autoflow.StepStatusCompleted,
			"b": autoflow.StepStatusPending,
			"c": autoflow.StepStatusPending,
		}
		assert.Empty(t, skippableSteps(def, status))
	})

	t.Run("cancelled dependency skips dependents", func(t *testing.T) {
		status := map[string]autoflow.StepStatus{
			"a": autoflow.StepStatusCancelled,
			"b": autoflow.StepStatusPending,
			"c": autoflow.StepStatusPending,
		}
		assert.Equal(t, []string{"b"}, skippableSteps(def, status))
	})
}
