package autoflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:      "wf-1",
		Name:    "Lead Scoring",
		Version: 1,
		Status:  WorkflowStatusDraft,
		Trigger: TriggerSpec{Kind: TriggerKindManual},
		Steps: []StepDefinition{
			{
				ID:   "extract",
				Type: StepTypeDataExtraction,
				Config: &DataExtractionConfig{
					Source: "crm",
					Fields: []string{"email", "company"},
				},
				TimeoutSeconds: 30,
				Retry:          DefaultRetryPolicy,
			},
			{
				ID:   "score",
				Type: StepTypeAIAnalysis,
				Config: &AIAnalysisConfig{
					Model:  "scoring-v2",
					Prompt: "score this lead",
				},
				DependsOn:      []string{"extract"},
				TimeoutSeconds: 60,
				Retry:          DefaultRetryPolicy,
			},
			{
				ID:   "notify",
				Type: StepTypeNotification,
				Config: &NotificationConfig{
					Channel:   "email",
					Recipient: "sales@example.com",
				},
				DependsOn:      []string{"score"},
				TimeoutSeconds: 30,
				Retry:          DefaultRetryPolicy,
			},
		},
	}
}

func TestWorkflowDefinition_JSONRoundTrip(t *testing.T) {
	def := validDefinition()

	data, err := json.Marshal(def)
	require.NoError(t, err)

	var decoded WorkflowDefinition
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Steps, 3)
	assert.Equal(t, def.ID, decoded.ID)
	assert.Equal(t, def.Trigger.Kind, decoded.Trigger.Kind)

	// Config decodes back into the typed variant keyed by the step type
	extract, ok := decoded.Step("extract")
	require.True(t, ok)
	cfg, ok := extract.Config.(*DataExtractionConfig)
	require.True(t, ok)
	assert.Equal(t, "crm", cfg.Source)
	assert.Equal(t, []string{"email", "company"}, cfg.Fields)

	score, ok := decoded.Step("score")
	require.True(t, ok)
	aiCfg, ok := score.Config.(*AIAnalysisConfig)
	require.True(t, ok)
	assert.Equal(t, "scoring-v2", aiCfg.Model)
	assert.Equal(t, []string{"extract"}, score.DependsOn)
}

func TestStepDefinition_UnmarshalUnknownType(t *testing.T) {
	raw := `{"id":"x","type":"teleport","config":{},"timeoutSeconds":30,"retry":{"maxAttempts":1,"backoff":"FIXED","delayMs":0}}`

	var step StepDefinition
	err := json.Unmarshal([]byte(raw), &step)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestWorkflowDefinition_Validate(t *testing.T) {
	t.Run("valid definition passes", func(t *testing.T) {
		assert.NoError(t, validDefinition().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*WorkflowDefinition)
		wantMsg string
	}{
		{
			name:    "missing name",
			mutate:  func(d *WorkflowDefinition) { d.Name = "" },
			wantMsg: "name is required",
		},
		{
			name:    "no steps",
			mutate:  func(d *WorkflowDefinition) { d.Steps = nil },
			wantMsg: "at least one step",
		},
		{
			name: "duplicate step ids",
			mutate: func(d *WorkflowDefinition) {
				d.Steps[1].ID = "extract"
				d.Steps[2].DependsOn = []string{"extract"}
			},
			wantMsg: `duplicate step id "extract"`,
		},
		{
			name:    "self dependency",
			mutate:  func(d *WorkflowDefinition) { d.Steps[0].DependsOn = []string{"extract"} },
			wantMsg: "depends on itself",
		},
		{
			name:    "unknown dependency",
			mutate:  func(d *WorkflowDefinition) { d.Steps[1].DependsOn = []string{"missing"} },
			wantMsg: `unknown step "missing"`,
		},
		{
			name:    "nil config",
			mutate:  func(d *WorkflowDefinition) { d.Steps[0].Config = nil },
			wantMsg: "has no config",
		},
		{
			name: "config type mismatch",
			mutate: func(d *WorkflowDefinition) {
				d.Steps[0].Config = &NotificationConfig{Channel: "email", Recipient: "x"}
			},
			wantMsg: "carries a notification config",
		},
		{
			name: "config fails its own validation",
			mutate: func(d *WorkflowDefinition) {
				d.Steps[0].Config = &DataExtractionConfig{Source: "crm"}
			},
			wantMsg: "at least one field",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(d *WorkflowDefinition) { d.Steps[0].TimeoutSeconds = 0 },
			wantMsg: "positive timeout",
		},
		{
			name:    "invalid retry policy",
			mutate:  func(d *WorkflowDefinition) { d.Steps[0].Retry.MaxAttempts = 0 },
			wantMsg: "maxAttempts >= 1",
		},
		{
			name:    "invalid trigger",
			mutate:  func(d *WorkflowDefinition) { d.Trigger = TriggerSpec{Kind: TriggerKindSchedule} },
			wantMsg: "cron expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)

			err := def.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, def.ID, verr.WorkflowID)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWorkflowDefinition_ValidateReportsAllIssues(t *testing.T) {
	def := validDefinition()
	def.Name = ""
	def.Steps[0].TimeoutSeconds = -1

	err := def.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 2)
}

func TestWorkflowDefinition_ValidateCycle(t *testing.T) {
	def := validDefinition()
	// extract -> score -> notify -> extract
	def.Steps[0].DependsOn = []string{"notify"}

	err := def.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestRetryPolicy_Validate(t *testing.T) {
	assert.NoError(t, RetryPolicy{MaxAttempts: 1, Backoff: BackoffFixed, DelayMs: 0}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 0, Backoff: BackoffFixed}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 2, Backoff: BackoffFixed, DelayMs: -5}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 2, Backoff: BackoffStrategy("QUADRATIC")}.Validate())
}
