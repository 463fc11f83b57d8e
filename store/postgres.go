package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuvio/autoflow"
)

// PostgresStore implements autoflow.Store on PostgreSQL. Records are stored
// as jsonb documents with the columns needed for filtering broken out.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL for the tables this store expects
const Schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS executions (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	data        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_workflow_idx ON executions (workflow_id, created_at DESC);

CREATE TABLE IF NOT EXISTS step_executions (
	execution_id TEXT NOT NULL,
	step_id      TEXT NOT NULL,
	data         JSONB NOT NULL,
	PRIMARY KEY (execution_id, step_id)
);
`

// InitSchema creates the tables if they do not exist
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// Workflow definition operations

func (s *PostgresStore) CreateWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	_, err = s.db.Exec(ctx,
		"INSERT INTO workflows (id, status, category, data, updated_at) VALUES ($1, $2, $3, $4, $5)",
		def.ID, string(def.Status), def.Category, data, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*autoflow.WorkflowDefinition, error) {
	var data []byte
	err := s.db.QueryRow(ctx, "SELECT data FROM workflows WHERE id = $1", id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, autoflow.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}

	var def autoflow.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &def, nil
}

func (s *PostgresStore) UpdateWorkflow(ctx context.Context, def *autoflow.WorkflowDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		"UPDATE workflows SET status = $1, category = $2, data = $3, updated_at = $4 WHERE id = $5",
		string(def.Status), def.Category, data, def.UpdatedAt, def.ID)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %s: %w", def.ID, autoflow.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %s: %w", id, autoflow.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListWorkflows(ctx context.Context, filter autoflow.WorkflowFilter) ([]*autoflow.WorkflowDefinition, error) {
	query := "SELECT data FROM workflows WHERE 1=1"
	args := []any{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var defs []*autoflow.WorkflowDefinition
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}
		var def autoflow.WorkflowDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
		}
		defs = append(defs, &def)
	}
	return defs, rows.Err()
}

// Workflow execution operations

func (s *PostgresStore) CreateExecution(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	_, err = s.db.Exec(ctx,
		"INSERT INTO executions (id, workflow_id, status, created_at, data) VALUES ($1, $2, $3, $4, $5)",
		exec.ID, exec.WorkflowID, string(exec.Status), exec.CreatedAt, data)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExecution(ctx context.Context, id string) (*autoflow.WorkflowExecution, error) {
	var data []byte
	err := s.db.QueryRow(ctx, "SELECT data FROM executions WHERE id = $1", id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, autoflow.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query execution: %w", err)
	}

	var exec autoflow.WorkflowExecution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &exec, nil
}

func (s *PostgresStore) UpdateExecution(ctx context.Context, exec *autoflow.WorkflowExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		"UPDATE executions SET status = $1, data = $2 WHERE id = $3",
		string(exec.Status), data, exec.ID)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("execution %s: %w", exec.ID, autoflow.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListExecutions(ctx context.Context, filter autoflow.ExecutionFilter) ([]*autoflow.WorkflowExecution, error) {
	query := "SELECT data FROM executions WHERE 1=1"
	args := []any{}

	if filter.WorkflowID != "" {
		args = append(args, filter.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []*autoflow.WorkflowExecution
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		var exec autoflow.WorkflowExecution
		if err := json.Unmarshal(data, &exec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
		}
		execs = append(execs, &exec)
	}
	return execs, rows.Err()
}

// Step execution operations

func (s *PostgresStore) CreateStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	return s.upsertStepExecution(ctx, exec)
}

func (s *PostgresStore) UpdateStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	return s.upsertStepExecution(ctx, exec)
}

func (s *PostgresStore) upsertStepExecution(ctx context.Context, exec *autoflow.StepExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal step execution: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO step_executions (execution_id, step_id, data) VALUES ($1, $2, $3)
		ON CONFLICT (execution_id, step_id) DO UPDATE SET data = EXCLUDED.data`,
		exec.ExecutionID, exec.StepID, data)
	if err != nil {
		return fmt.Errorf("failed to upsert step execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStepExecution(ctx context.Context, executionID, stepID string) (*autoflow.StepExecution, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		"SELECT data FROM step_executions WHERE execution_id = $1 AND step_id = $2",
		executionID, stepID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("step execution %s/%s: %w", executionID, stepID, autoflow.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query step execution: %w", err)
	}

	var exec autoflow.StepExecution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step execution: %w", err)
	}
	return &exec, nil
}

func (s *PostgresStore) ListStepExecutions(ctx context.Context, executionID string) ([]*autoflow.StepExecution, error) {
	rows, err := s.db.Query(ctx,
		"SELECT data FROM step_executions WHERE execution_id = $1 ORDER BY step_id",
		executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}
	defer rows.Close()

	var execs []*autoflow.StepExecution
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan step execution row: %w", err)
		}
		var exec autoflow.StepExecution
		if err := json.Unmarshal(data, &exec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step execution: %w", err)
		}
		execs = append(execs, &exec)
	}
	return execs, rows.Err()
}

var _ autoflow.Store = (*PostgresStore)(nil)
