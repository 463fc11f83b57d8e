package autoflow

import (
	"fmt"
	"strings"
)

// ValidationError reports everything wrong with a workflow definition at once.
// Validation failure is fatal at create/update time and never reaches execution.
type ValidationError struct {
	WorkflowID string
	Issues     []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s is invalid: %s", e.WorkflowID, strings.Join(e.Issues, "; "))
}

// Validate checks the structural invariants of a workflow definition:
// unique step ids, closed and acyclic dependency references, a config
// variant matching each step's declared type, and a well-formed trigger.
func (d *WorkflowDefinition) Validate() error {
	var issues []string

	if d.Name == "" {
		issues = append(issues, "name is required")
	}
	if len(d.Steps) == 0 {
		issues = append(issues, "at least one step is required")
	}

	if err := d.Trigger.Validate(); err != nil {
		issues = append(issues, err.Error())
	}

	seen := make(map[string]bool, len(d.Steps))
	for i := range d.Steps {
		step := &d.Steps[i]
		if step.ID == "" {
			issues = append(issues, fmt.Sprintf("step %d has no id", i))
			continue
		}
		if seen[step.ID] {
			issues = append(issues, fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = true
	}

	for i := range d.Steps {
		step := &d.Steps[i]
		if step.ID == "" {
			continue
		}

		for _, dep := range step.DependsOn {
			if dep == step.ID {
				issues = append(issues, fmt.Sprintf("step %q depends on itself", step.ID))
			} else if !seen[dep] {
				issues = append(issues, fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep))
			}
		}

		if step.Config == nil {
			issues = append(issues, fmt.Sprintf("step %q has no config", step.ID))
		} else if step.Config.StepType() != step.Type {
			issues = append(issues, fmt.Sprintf(
				"step %q declares type %s but carries a %s config",
				step.ID, step.Type, step.Config.StepType()))
		} else if err := step.Config.Validate(); err != nil {
			issues = append(issues, fmt.Sprintf("step %q: %v", step.ID, err))
		}

		if step.TimeoutSeconds <= 0 {
			issues = append(issues, fmt.Sprintf("step %q requires a positive timeout", step.ID))
		}
		if err := step.Retry.Validate(); err != nil {
			issues = append(issues, fmt.Sprintf("step %q: %v", step.ID, err))
		}
	}

	if cycle := findCycle(d.Steps); len(cycle) > 0 {
		issues = append(issues, fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")))
	}

	if len(issues) > 0 {
		return &ValidationError{WorkflowID: d.ID, Issues: issues}
	}
	return nil
}

// findCycle runs DFS coloring over the dependency edges and returns one
// cycle path if any exists. Unknown dependency ids are skipped here; they
// are reported separately.
func findCycle(steps []StepDefinition) []string {
	deps := make(map[string][]string, len(steps))
	for i := range steps {
		deps[steps[i].ID] = steps[i].DependsOn
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(deps))

	var cycle []string
	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		color[id] = gray
		path = append(path, id)

		for _, dep := range deps[id] {
			if _, known := deps[dep]; !known {
				continue
			}
			switch color[dep] {
			case gray:
				// close the loop for the error message
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), dep)
				return true
			case white:
				if visit(dep, path) {
					return true
				}
			}
		}

		color[id] = black
		return false
	}

	for i := range steps {
		id := steps[i].ID
		if color[id] == white {
			if visit(id, nil) {
				return cycle
			}
		}
	}
	return nil
}
