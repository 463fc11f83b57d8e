package store

import "fmt"

// DynamoDB schema constants for single-table design
const (
	// Table attributes
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrEntityType = "entity_type"
	AttrData       = "data"

	// Entity types
	EntityTypeWorkflow      = "Workflow"
	EntityTypeExecution     = "Execution"
	EntityTypeStepExecution = "StepExecution"

	// Index names
	IndexGSI1 = "GSI1"
)

// Key builders for single-table design

// Workflow definitions: PK=WF#{id}, SK=META
func workflowPK(id string) string {
	return fmt.Sprintf("WF#%s", id)
}

func workflowSK() string {
	return "META"
}

// Definitions are indexed by status for the active-workflow scan
func workflowGSI1PK(status string) string {
	return fmt.Sprintf("WFSTATUS#%s", status)
}

func workflowGSI1SK(id string) string {
	return id
}

// Executions: PK=EXEC#{id}, SK=META
func executionPK(id string) string {
	return fmt.Sprintf("EXEC#%s", id)
}

func executionSK() string {
	return "META"
}

// Executions are indexed by workflow for ListExecutions
func executionGSI1PK(workflowID string) string {
	return fmt.Sprintf("WF#%s#EXEC", workflowID)
}

func executionGSI1SK(createdAt string) string {
	return createdAt
}

// Step executions: PK=EXEC#{executionID}, SK=STEP#{stepID}
func stepExecutionPK(executionID string) string {
	return fmt.Sprintf("EXEC#%s", executionID)
}

func stepExecutionSK(stepID string) string {
	return fmt.Sprintf("STEP#%s", stepID)
}
