package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvio/autoflow"
)

func sampleWorkflow(id string, status autoflow.WorkflowStatus) *autoflow.WorkflowDefinition {
	return &autoflow.WorkflowDefinition{
		ID:      id,
		Name:    "Sample " + id,
		Version: 1,
		Status:  status,
		Trigger: autoflow.TriggerSpec{Kind: autoflow.TriggerKindManual},
		Steps: []autoflow.StepDefinition{
			{
				ID:             "notify",
				Type:           autoflow.StepTypeNotification,
				Config:         &autoflow.NotificationConfig{Channel: "email", Recipient: "x@example.com"},
				TimeoutSeconds: 30,
				Retry:          autoflow.DefaultRetryPolicy,
			},
		},
	}
}

func sampleExecution(id, workflowID string, createdAt time.Time) *autoflow.WorkflowExecution {
	return &autoflow.WorkflowExecution{
		ID:         id,
		WorkflowID: workflowID,
		Status:     autoflow.ExecutionStatusQueued,
		Context:    map[string]any{},
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestMemoryStore_WorkflowCRUD(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	def := sampleWorkflow("wf-1", autoflow.WorkflowStatusDraft)
	require.NoError(t, st.CreateWorkflow(ctx, def))

	// duplicate ids are rejected
	assert.Error(t, st.CreateWorkflow(ctx, def))

	loaded, err := st.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, def.Name, loaded.Name)

	// the typed config survives the round-trip
	cfg, ok := loaded.Steps[0].Config.(*autoflow.NotificationConfig)
	require.True(t, ok)
	assert.Equal(t, "email", cfg.Channel)

	loaded.Status = autoflow.WorkflowStatusActive
	require.NoError(t, st.UpdateWorkflow(ctx, loaded))

	reloaded, err := st.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, autoflow.WorkflowStatusActive, reloaded.Status)

	require.NoError(t, st.DeleteWorkflow(ctx, "wf-1"))
	_, err = st.GetWorkflow(ctx, "wf-1")
	assert.True(t, autoflow.IsNotFound(err))
}

func TestMemoryStore_WorkflowNotFound(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.GetWorkflow(ctx, "ghost")
	assert.True(t, autoflow.IsNotFound(err))

	err = st.UpdateWorkflow(ctx, sampleWorkflow("ghost", autoflow.WorkflowStatusDraft))
	assert.True(t, autoflow.IsNotFound(err))

	err = st.DeleteWorkflow(ctx, "ghost")
	assert.True(t, autoflow.IsNotFound(err))
}

func TestMemoryStore_WorkflowIsolation(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	def := sampleWorkflow("wf-iso", autoflow.WorkflowStatusDraft)
	require.NoError(t, st.CreateWorkflow(ctx, def))

	// mutating the caller's copy must not leak into the store
	def.Name = "mutated"

	loaded, err := st.GetWorkflow(ctx, "wf-iso")
	require.NoError(t, err)
	assert.Equal(t, "Sample wf-iso", loaded.Name)

	// mutating a loaded copy must not leak either
	loaded.Name = "also mutated"
	again, err := st.GetWorkflow(ctx, "wf-iso")
	require.NoError(t, err)
	assert.Equal(t, "Sample wf-iso", again.Name)
}

func TestMemoryStore_ListWorkflows(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	active := sampleWorkflow("wf-a", autoflow.WorkflowStatusActive)
	draft := sampleWorkflow("wf-b", autoflow.WorkflowStatusDraft)
	categorized := sampleWorkflow("wf-c", autoflow.WorkflowStatusActive)
	categorized.Category = "sales"

	require.NoError(t, st.CreateWorkflow(ctx, active))
	require.NoError(t, st.CreateWorkflow(ctx, draft))
	require.NoError(t, st.CreateWorkflow(ctx, categorized))

	all, err := st.ListWorkflows(ctx, autoflow.WorkflowFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	activeStatus := autoflow.WorkflowStatusActive
	actives, err := st.ListWorkflows(ctx, autoflow.WorkflowFilter{Status: &activeStatus})
	require.NoError(t, err)
	assert.Len(t, actives, 2)

	sales, err := st.ListWorkflows(ctx, autoflow.WorkflowFilter{Category: "sales"})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "wf-c", sales[0].ID)

	limited, err := st.ListWorkflows(ctx, autoflow.WorkflowFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStore_ExecutionCRUD(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	exec := sampleExecution("exec-1", "wf-1", time.Now())
	require.NoError(t, st.CreateExecution(ctx, exec))

	loaded, err := st.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, autoflow.ExecutionStatusQueued, loaded.Status)

	loaded.Status = autoflow.ExecutionStatusRunning
	loaded.Context = map[string]any{"score": 42}
	require.NoError(t, st.UpdateExecution(ctx, loaded))

	reloaded, err := st.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, autoflow.ExecutionStatusRunning, reloaded.Status)
	assert.Equal(t, 42, reloaded.Context["score"])

	_, err = st.GetExecution(ctx, "ghost")
	assert.True(t, autoflow.IsNotFound(err))
}

func TestMemoryStore_ListExecutionsNewestFirst(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, st.CreateExecution(ctx, sampleExecution("exec-old", "wf-1", base.Add(-time.Hour))))
	require.NoError(t, st.CreateExecution(ctx, sampleExecution("exec-new", "wf-1", base)))
	require.NoError(t, st.CreateExecution(ctx, sampleExecution("exec-other", "wf-2", base)))

	execs, err := st.ListExecutions(ctx, autoflow.ExecutionFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "exec-new", execs[0].ID)
	assert.Equal(t, "exec-old", execs[1].ID)

	queued := autoflow.ExecutionStatusQueued
	filtered, err := st.ListExecutions(ctx, autoflow.ExecutionFilter{WorkflowID: "wf-1", Status: &queued})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	completed := autoflow.ExecutionStatusCompleted
	none, err := st.ListExecutions(ctx, autoflow.ExecutionFilter{WorkflowID: "wf-1", Status: &completed})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_StepExecutions(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	se := &autoflow.StepExecution{
		ExecutionID: "exec-1",
		StepID:      "notify",
		Status:      autoflow.StepStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, st.CreateStepExecution(ctx, se))

	loaded, err := st.GetStepExecution(ctx, "exec-1", "notify")
	require.NoError(t, err)
	assert.Equal(t, autoflow.StepStatusPending, loaded.Status)

	loaded.Status = autoflow.StepStatusCompleted
	loaded.Output = map[string]any{"sent": true}
	require.NoError(t, st.UpdateStepExecution(ctx, loaded))

	reloaded, err := st.GetStepExecution(ctx, "exec-1", "notify")
	require.NoError(t, err)
	assert.Equal(t, autoflow.StepStatusCompleted, reloaded.Status)
	assert.Equal(t, true, reloaded.Output["sent"])

	list, err := st.ListStepExecutions(ctx, "exec-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = st.GetStepExecution(ctx, "exec-1", "ghost")
	assert.True(t, autoflow.IsNotFound(err))
}
