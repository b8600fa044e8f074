package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// ExecutionRepository handles journey execution and step execution rows.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
			id
		  , journey_id
		  , version_id
		  , organization_id
		  , contact_id
		  , status
		  , current_step_id
		  , contact_snapshot
		  , failure_reason
		  , started_at
		  , completed_at
`

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.JourneyExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM journey_executions WHERE id = $1`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// Save upserts an execution. The partial unique index on active executions
// makes concurrent duplicate starts for one contact surface as
// ErrDuplicateActiveExecution instead of a second row.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.JourneyExecution) error {
	snapshotJSON, err := json.Marshal(execution.ContactSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal contact snapshot: %w", err)
	}

	query := `
		INSERT INTO journey_executions (id, journey_id, version_id, organization_id,
contact_id, status, current_step_id, contact_snapshot, failure_reason, started_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step_id = EXCLUDED.current_step_id,
			contact_snapshot = EXCLUDED.contact_snapshot,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = NOW(),
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.JourneyID,
		execution.JourneyVersionID,
		execution.OrganizationID,
		execution.ContactID,
		execution.Status,
		execution.CurrentStepID,
		snapshotJSON,
		execution.FailureReason,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return persistence.NewExecutionError("Save", execution.ID, persistence.ErrDuplicateActiveExecution)
		}

		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) FindActiveForContact(ctx context.Context, journeyID, contactID string) (*models.JourneyExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM journey_executions
		WHERE journey_id = $1 AND contact_id = $2 AND status = 'active'
	`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, journeyID, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) FindStale(ctx context.Context, olderThan time.Time) ([]*models.JourneyExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM journey_executions
		WHERE status = 'active' AND started_at < $1
		ORDER BY started_at
	`

	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.JourneyExecution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) HistoryForContact(ctx context.Context, journeyID, contactID string) ([]models.ExecutionSummary, error) {
	query := `
		SELECT status, started_at, completed_at
		FROM journey_executions
		WHERE journey_id = $1 AND contact_id = $2
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, journeyID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution history: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	history := make([]models.ExecutionSummary, 0)

	for rows.Next() {
		var summary models.ExecutionSummary

		err := rows.Scan(&summary.Status, &summary.StartedAt, &summary.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution summary: %w", err)
		}

		history = append(history, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution history: %w", err)
	}

	return history, nil
}

func (r *ExecutionRepository) SaveStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	resultJSON, err := json.Marshal(stepExecution.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal step result: %w", err)
	}

	query := `
		INSERT INTO step_executions (id, execution_id, step_id, organization_id,
status, result, error_message, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		stepExecution.ID,
		stepExecution.ExecutionID,
		stepExecution.StepID,
		stepExecution.OrganizationID,
		stepExecution.Status,
		resultJSON,
		stepExecution.Error,
		stepExecution.CreatedAt,
		stepExecution.StartedAt,
		stepExecution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save step execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) PendingStepExecution(ctx context.Context, executionID, stepID string) (*models.StepExecution, error) {
	query := `
		SELECT id, execution_id, step_id, organization_id, status, result, error_message, created_at, started_at, finished_at
		FROM step_executions
		WHERE execution_id = $1 AND step_id = $2 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`

	stepExecution, err := r.scanStepExecution(r.db.QueryRowContext(ctx, query, executionID, stepID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan step execution: %w", err)
	}

	return stepExecution, nil
}

func (r *ExecutionRepository) StepExecutions(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	query := `
		SELECT id, execution_id, step_id, organization_id, status, result, error_message, created_at, started_at, finished_at
		FROM step_executions
		WHERE execution_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	stepExecutions := make([]*models.StepExecution, 0)

	for rows.Next() {
		stepExecution, err := r.scanStepExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}

		stepExecutions = append(stepExecutions, stepExecution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step executions: %w", err)
	}

	return stepExecutions, nil
}

func (r *ExecutionRepository) scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.JourneyExecution, error) {
	var (
		execution    models.JourneyExecution
		snapshotJSON []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.JourneyID,
		&execution.JourneyVersionID,
		&execution.OrganizationID,
		&execution.ContactID,
		&execution.Status,
		&execution.CurrentStepID,
		&snapshotJSON,
		&execution.FailureReason,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if snapshotJSON != nil {
		err := json.Unmarshal(snapshotJSON, &execution.ContactSnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact snapshot: %w", err)
		}
	}

	return &execution, nil
}

func (r *ExecutionRepository) scanStepExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.StepExecution, error) {
	var (
		stepExecution models.StepExecution
		resultJSON    []byte
	)

	err := scanner.Scan(
		&stepExecution.ID,
		&stepExecution.ExecutionID,
		&stepExecution.StepID,
		&stepExecution.OrganizationID,
		&stepExecution.Status,
		&resultJSON,
		&stepExecution.Error,
		&stepExecution.CreatedAt,
		&stepExecution.StartedAt,
		&stepExecution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if resultJSON != nil {
		err := json.Unmarshal(resultJSON, &stepExecution.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal step result: %w", err)
		}
	}

	return &stepExecution, nil
}
