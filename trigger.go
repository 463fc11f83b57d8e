package autoflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerKind identifies what starts a workflow execution
type TriggerKind string

const (
	TriggerKindWebhook     TriggerKind = "webhook"
	TriggerKindSchedule    TriggerKind = "schedule"
	TriggerKindEvent       TriggerKind = "event"
	TriggerKindManual      TriggerKind = "manual"
	TriggerKindAIDetection TriggerKind = "ai_detection"
)

// String returns the string representation
func (k TriggerKind) String() string {
	return string(k)
}

// ConditionOperator compares a payload field against a condition value
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorRegex       ConditionOperator = "regex"
)

// TriggerCondition is one predicate over the trigger payload.
// All conditions of a trigger must hold (logical AND) for it to fire.
type TriggerCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value"`
}

// WebhookTriggerConfig configures a webhook trigger
type WebhookTriggerConfig struct {
	Path   string `json:"path,omitempty"`
	Secret string `json:"secret,omitempty"`
}

// ScheduleTriggerConfig configures a cron-based trigger.
// The evaluator is driven by an external scheduler tick; it only computes
// the next fire instant, it never sleeps itself.
type ScheduleTriggerConfig struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone,omitempty"`
}

// EventTriggerConfig configures an event trigger
type EventTriggerConfig struct {
	Name string `json:"name"`
}

// AIDetectionTriggerConfig configures an ai_detection trigger
type AIDetectionTriggerConfig struct {
	Signal    string  `json:"signal"`
	Threshold float64 `json:"threshold,omitempty"`
}

// TriggerSpec declares how a workflow is started. Exactly the config
// matching Kind must be set; the rest stay nil.
type TriggerSpec struct {
	Kind TriggerKind `json:"kind"`

	Webhook     *WebhookTriggerConfig     `json:"webhook,omitempty"`
	Schedule    *ScheduleTriggerConfig    `json:"schedule,omitempty"`
	Event       *EventTriggerConfig       `json:"event,omitempty"`
	AIDetection *AIDetectionTriggerConfig `json:"aiDetection,omitempty"`

	Conditions []TriggerCondition `json:"conditions,omitempty"`
}

// Validate checks that the kind is known and the matching config is present.
// Cron and regex values are deliberately not compiled here: a malformed
// expression is an evaluation-time concern that fails closed, never a
// definition-time failure.
func (t TriggerSpec) Validate() error {
	switch t.Kind {
	case TriggerKindWebhook, TriggerKindManual:
		// no required config
	case TriggerKindSchedule:
		if t.Schedule == nil || t.Schedule.Cron == "" {
			return fmt.Errorf("schedule trigger requires a cron expression")
		}
	case TriggerKindEvent:
		if t.Event == nil || t.Event.Name == "" {
			return fmt.Errorf("event trigger requires an event name")
		}
	case TriggerKindAIDetection:
		if t.AIDetection == nil || t.AIDetection.Signal == "" {
			return fmt.Errorf("ai_detection trigger requires a signal")
		}
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}

	for i, cond := range t.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("trigger condition %d requires a field", i)
		}
		switch cond.Operator {
		case OperatorEquals, OperatorContains, OperatorGreaterThan, OperatorLessThan, OperatorRegex:
		default:
			return fmt.Errorf("trigger condition %d has unknown operator %q", i, cond.Operator)
		}
	}

	return nil
}

// Matches evaluates the trigger against an inbound payload.
// Manual triggers always match when explicitly invoked; schedule triggers
// never match on payloads (they fire on ticks via NextFire). Any condition
// that cannot be evaluated fails closed.
func (t TriggerSpec) Matches(payload map[string]any) bool {
	switch t.Kind {
	case TriggerKindManual:
		return true
	case TriggerKindSchedule:
		return false
	case TriggerKindEvent:
		if name, _ := payload["event"].(string); t.Event == nil || name != t.Event.Name {
			return false
		}
	}

	for _, cond := range t.Conditions {
		if !cond.Matches(payload) {
			return false
		}
	}
	return true
}

// Matches evaluates a single condition against the payload
func (c TriggerCondition) Matches(payload map[string]any) bool {
	val, ok := payload[c.Field]
	if !ok {
		return false
	}

	switch c.Operator {
	case OperatorEquals:
		return stringify(val) == stringify(c.Value)

	case OperatorContains:
		switch v := val.(type) {
		case string:
			return strings.Contains(v, stringify(c.Value))
		case []any:
			want := stringify(c.Value)
			for _, item := range v {
				if stringify(item) == want {
					return true
				}
			}
			return false
		default:
			return false
		}

	case OperatorGreaterThan:
		left, lok := toFloat(val)
		right, rok := toFloat(c.Value)
		return lok && rok && left > right

	case OperatorLessThan:
		left, lok := toFloat(val)
		right, rok := toFloat(c.Value)
		return lok && rok && left < right

	case OperatorRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			// malformed pattern fails closed
			return false
		}
		return re.MatchString(stringify(val))
	}

	return false
}

// NextFire computes the next fire instant after the given time for a
// schedule trigger, honoring the configured timezone.
func (t TriggerSpec) NextFire(after time.Time) (time.Time, error) {
	if t.Kind != TriggerKindSchedule || t.Schedule == nil {
		return time.Time{}, fmt.Errorf("trigger is not a schedule")
	}

	sched, err := cron.ParseStandard(t.Schedule.Cron)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", t.Schedule.Cron, err)
	}

	if t.Schedule.Timezone != "" {
		loc, err := time.LoadLocation(t.Schedule.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", t.Schedule.Timezone, err)
		}
		after = after.In(loc)
	}

	return sched.Next(after), nil
}

// toFloat coerces a payload or condition value to a number.
// Coercion failure means the comparison fails closed (no match).
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
