package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvio/autoflow"
)

func TestBuilder_SequentialChain(t *testing.T) {
	def, err := New("wf-seq", "Sequential").
		WithDescription("extract then score then notify").
		WithTrigger(autoflow.TriggerSpec{Kind: autoflow.TriggerKindManual}).
		WithTags("sales", "demo").
		WithCategory("crm").
		Step("extract", &autoflow.DataExtractionConfig{Source: "crm", Fields: []string{"email"}}).
		Step("score", &autoflow.AIAnalysisConfig{Model: "m1", Prompt: "score"}).
		Step("notify", &autoflow.NotificationConfig{Channel: "email", Recipient: "sales@example.com"}).
		Build()
	require.NoError(t, err)

	require.Len(t, def.Steps, 3)
	assert.Equal(t, autoflow.WorkflowStatusDraft, def.Status)
	assert.Equal(t, "crm", def.Category)

	// each step chains after the previous one
	assert.Empty(t, def.Steps[0].DependsOn)
	assert.Equal(t, []string{"extract"}, def.Steps[1].DependsOn)
	assert.Equal(t, []string{"score"}, def.Steps[2].DependsOn)

	// type is derived from the config variant
	assert.Equal(t, autoflow.StepTypeDataExtraction, def.Steps[0].Type)
	assert.Equal(t, autoflow.StepTypeAIAnalysis, def.Steps[1].Type)
}

func TestBuilder_StepDefaults(t *testing.T) {
	def, err := New("wf-defaults", "Defaults").
		WithTrigger(autoflow.TriggerSpec{Kind: autoflow.TriggerKindManual}).
		Step("only", &autoflow.APICallConfig{Method: "GET", URL: "https://example.com"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, defaultTimeoutSeconds, def.Steps[0].TimeoutSeconds)
	assert.Equal(t, autoflow.DefaultRetryPolicy, def.Steps[0].Retry)
}

func TestBuilder_StepOptions(t *testing.T) {
	def, err := New("wf-opts", "Options").
		WithTrigger(autoflow.TriggerSpec{Kind: autoflow.TriggerKindManual}).
		Step("fetch", &autoflow.APICallConfig{Method: "GET", URL: "https://example.com"},
			WithName("Fetch Orders"),
			WithTimeout(120),
			WithRetry(autoflow.RetryPolicy{MaxAttempts: 5, Backoff: autoflow.BackoffLinear, DelayMs: 250}),
			WithContinueOnError(),
		).
		Build()
	require.NoError(t, err)

	step := def.Steps[0]
	assert.Equal(t, "Fetch Orders", step.Name)
	assert.Equal(t, 120, step.TimeoutSeconds)
	assert.Equal(t, 5, step.Retry.MaxAttempts)
	assert.Equal(t, autoflow.BackoffLinear, step.Retry.Backoff)
	assert.True(t, step.ContinueOnError)
}

func TestBuilder_ParallelFanOutFanIn(t *testing.T) {
	def, err := New("wf-par", "Parallel").
		WithTrigger(autoflow.TriggerSpec{Kind: autoflow.TriggerKindManual}).
		Step("extract", &autoflow.DataExtractionConfig{Source: "crm", Fields: []string{"email"}}).
		Parallel(
			autoflow.StepDefinition{ID: "score", Config: &autoflow.AIAnalysisConfig{Model: "m1", Prompt: "p"}},
			autoflow.StepDefinition{ID: "enrich", Config: &autoflow.IntegrationConfig{Provider: "clearbit", Action: "enrich"}},
		).
		Step("notify", &autoflow.NotificationConfig{Channel: "email", Recipient: "x@example.com"}).
		Build()
	require.NoError(t, err)

	require.Len(t, def.Steps, 4)
	assert.Equal(t, []string{"extract"}, def.Steps[1].DependsOn)
	assert.Equal(t, []string{"extract"}, def.Steps[2].DependsOn)
	// fan-in: the step after Parallel depends on every branch
	assert.ElementsMatch(t, []string{"score", "enrich"}, def.Steps[3].DependsOn)
}

func TestBuilder_ExplicitDependsOnOverridesChain(t *testing.T) {
	def, err := New("wf-dag", "Explicit DAG").
		WithTrigger(autoflow.TriggerSpec{Kind: autoflow.TriggerKindManual}).
		Step("a", &autoflow.APICallConfig{Method: "GET", URL: "https://example.com/a"}).
		Step("b", &autoflow.APICallConfig{Method: "GET", URL: "https://example.com/b"}).
		Step("c", &autoflow.APICallConfig{Method: "GET", URL: "https://example.com/c"}, DependsOn("a")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, def.Steps[2].DependsOn)
}

func TestBuilder_BuildRejectsInvalidDefinition(t *testing.T) {
	_, err := New("wf-bad", "Bad").
		WithTrigger(autoflow.TriggerSpec{Kind: autoflow.TriggerKindManual}).
		Step("a", &autoflow.APICallConfig{Method: "GET", URL: "https://example.com"}, DependsOn("missing")).
		Build()
	require.Error(t, err)

	var verr *autoflow.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBuilder_MustBuildPanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		New("wf-panic", "Panic").MustBuild() // no trigger, no steps
	})
}
