package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nuvio/autoflow"
)

// DynamoDBStore implements autoflow.Store using AWS DynamoDB with a
// single-table design. Workflow definitions are stored as a JSON blob in the
// data attribute so the tagged config union survives the round-trip;
// execution records marshal directly via their dynamodbav tags.
type DynamoDBStore struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB-backed store
func NewDynamoDBStore(client DynamoDBClient, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

// Workflow definition operations

func (s *DynamoDBStore) CreateWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) error {
	return s.putWorkflow(ctx, def)
}

func (s *DynamoDBStore) UpdateWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) error {
	return s.putWorkflow(ctx, def)
}

func (s *DynamoDBStore) putWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	item := map[string]types.AttributeValue{
		AttrPK:         &types.AttributeValueMemberS{Value: workflowPK(def.ID)},
		AttrSK:         &types.AttributeValueMemberS{Value: workflowSK()},
		AttrEntityType: &types.AttributeValueMemberS{Value: EntityTypeWorkflow},
		AttrData:       &types.AttributeValueMemberB{Value: data},
		AttrGSI1PK:     &types.AttributeValueMemberS{Value: workflowGSI1PK(string(def.Status))},
		AttrGSI1SK:     &types.AttributeValueMemberS{Value: workflowGSI1SK(def.ID)},
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put workflow: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) GetWorkflow(ctx context.Context, id string) (*autoflow.WorkflowDefinition, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: workflowPK(id)},
			AttrSK: &types.AttributeValueMemberS{Value: workflowSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("workflow %s: %w", id, autoflow.ErrNotFound)
	}

	return unmarshalWorkflowItem(result.Item)
}

func (s *DynamoDBStore) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: workflowPK(id)},
			AttrSK: &types.AttributeValueMemberS{Value: workflowSK()},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) ListWorkflows(ctx context.Context, filter autoflow.WorkflowFilter) ([]*autoflow.WorkflowDefinition, error) {
	var items []map[string]types.AttributeValue

	if filter.Status != nil {
		// Status queries hit the GSI instead of scanning the table
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(IndexGSI1),
			KeyConditionExpression: aws.String("#pk = :pk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": AttrGSI1PK,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: workflowGSI1PK(string(*filter.Status))},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query workflows: %w", err)
		}
		items = out.Items
	} else {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("#et = :et"),
			ExpressionAttributeNames: map[string]string{
				"#et": AttrEntityType,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":et": &types.AttributeValueMemberS{Value: EntityTypeWorkflow},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflows: %w", err)
		}
		items = out.Items
	}

	var defs []*autoflow.WorkflowDefinition
	for _, item := range items {
		def, err := unmarshalWorkflowItem(item)
		if err != nil {
			return nil, err
		}
		if filter.Category != "" && def.Category != filter.Category {
			continue
		}
		defs = append(defs, def)
		if filter.Limit > 0 && len(defs) >= filter.Limit {
			break
		}
	}

	return defs, nil
}

func unmarshalWorkflowItem(item map[string]types.AttributeValue) (*autoflow.WorkflowDefinition, error) {
	blob, ok := item[AttrData].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("workflow item is missing the data attribute")
	}

	var def autoflow.WorkflowDefinition
	if err := json.Unmarshal(blob.Value, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &def, nil
}

// Workflow execution operations

func (s *DynamoDBStore) CreateExecution(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	return s.putExecution(ctx, exec)
}

func (s *DynamoDBStore) UpdateExecution(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	return s.putExecution(ctx, exec)
}

func (s *DynamoDBStore) putExecution(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	item, err := attributevalue.MarshalMap(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: executionPK(exec.ID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: executionSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeExecution}
	item[AttrGSI1PK] = &types.AttributeValueMemberS{Value: executionGSI1PK(exec.WorkflowID)}
	item[AttrGSI1SK] = &types.AttributeValueMemberS{Value: executionGSI1SK(exec.CreatedAt.Format(time.RFC3339Nano))}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put execution: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) GetExecution(ctx context.Context, id string) (*autoflow.WorkflowExecution, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: executionPK(id)},
			AttrSK: &types.AttributeValueMemberS{Value: executionSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("execution %s: %w", id, autoflow.ErrNotFound)
	}

	var exec autoflow.WorkflowExecution
	if err := attributevalue.UnmarshalMap(result.Item, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}

	return &exec, nil
}

func (s *DynamoDBStore) ListExecutions(ctx context.Context, filter autoflow.ExecutionFilter) ([]*autoflow.WorkflowExecution, error) {
	if filter.WorkflowID == "" {
		return nil, fmt.Errorf("dynamodb store requires a workflow id to list executions")
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(IndexGSI1),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrGSI1PK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: executionGSI1PK(filter.WorkflowID)},
		},
		ScanIndexForward: aws.Bool(false), // newest first
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	var execs []*autoflow.WorkflowExecution
	for _, item := range out.Items {
		var exec autoflow.WorkflowExecution
		if err := attributevalue.UnmarshalMap(item, &exec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
		}
		if filter.Status != nil && exec.Status != *filter.Status {
			continue
		}
		execs = append(execs, &exec)
		if filter.Limit > 0 && len(execs) >= filter.Limit {
			break
		}
	}

	return execs, nil
}

// Step execution operations

func (s *DynamoDBStore) CreateStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	return s.putStepExecution(ctx, exec)
}

func (s *DynamoDBStore) UpdateStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	return s.putStepExecution(ctx, exec)
}

func (s *DynamoDBStore) putStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	item, err := attributevalue.MarshalMap(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal step execution: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: stepExecutionPK(exec.ExecutionID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: stepExecutionSK(exec.StepID)}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeStepExecution}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put step execution: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) GetStepExecution(ctx context.Context, executionID, stepID string) (*autoflow.StepExecution, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: stepExecutionPK(executionID)},
			AttrSK: &types.AttributeValueMemberS{Value: stepExecutionSK(stepID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get step execution: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("step execution %s/%s: %w", executionID, stepID, autoflow.ErrNotFound)
	}

	var exec autoflow.StepExecution
	if err := attributevalue.UnmarshalMap(result.Item, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step execution: %w", err)
	}

	return &exec, nil
}

func (s *DynamoDBStore) ListStepExecutions(ctx context.Context, executionID string) ([]*autoflow.StepExecution, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :prefix)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrPK,
			"#sk": AttrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: stepExecutionPK(executionID)},
			":prefix": &types.AttributeValueMemberS{Value: "STEP#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}

	execs := make([]*autoflow.StepExecution, 0, len(out.Items))
	for _, item := range out.Items {
		var exec autoflow.StepExecution
		if err := attributevalue.UnmarshalMap(item, &exec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step execution: %w", err)
		}
		execs = append(execs, &exec)
	}

	return execs, nil
}

// Verify interface compliance
var _ autoflow.Store = (*DynamoDBStore)(nil)
var _ autoflow.Store = (*MemoryStore)(nil)
