package engine

import (
	"github.com/nuvio/autoflow"
)

// The dependency scheduler computes, from the declared DAG and the current
// step statuses, which steps may dispatch next. Execution order is a
// function of the dependency graph, not of step declaration order.

// readySteps returns the ids of steps that are Pending with every
// dependency Completed, in declaration order for determinism.
func readySteps(def *autoflow.WorkflowDefinition, status map[string]autoflow.StepStatus) []string {
	var ready []string
	for i := range def.Steps {
		step := &def.Steps[i]
		if status[step.ID] != autoflow.StepStatusPending {
			continue
		}

		ok := true
		for _, dep := range step.DependsOn {
			if status[dep] != autoflow.StepStatusCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step.ID)
		}
	}
	return ready
}

// skippableSteps returns Pending steps that can no longer run because some
// dependency is terminal without completing. One pass only considers direct
// dependencies; callers iterate to a fixpoint so skips cascade transitively.
func skippableSteps(def *autoflow.WorkflowDefinition, status map[string]autoflow.StepStatus) []string {
	var skippable []string
	for i := range def.Steps {
		step := &def.Steps[i]
		if status[step.ID] != autoflow.StepStatusPending {
			continue
		}

		for _, dep := range step.DependsOn {
			s := status[dep]
			if s.IsTerminal() && s != autoflow.StepStatusCompleted {
				skippable = append(skippable, step.ID)
				break
			}
		}
	}
	return skippable
}
