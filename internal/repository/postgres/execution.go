package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// ExecutionRepo implements store.ExecutionStore against PostgreSQL.
type ExecutionRepo struct{ db *sql.DB }

// NewExecutionRepo creates a Postgres-backed execution audit repository.
func NewExecutionRepo(db *sql.DB) *ExecutionRepo { return &ExecutionRepo{db: db} }

const executionSelectColumns = `
	id, campaign_id, platform, status, execution_plan, external_campaign_id,
	external_ids, links, idempotency_key, error_message, created_at, updated_at`

func scanExecution(scan func(...any) error) (*domain.Execution, error) {
	e := &domain.Execution{}
	var planJSON, extIDsJSON, linksJSON []byte
	err := scan(
		&e.ID, &e.CampaignID, &e.Platform, &e.Status, &planJSON, &e.ExternalCampaignID,
		&extIDsJSON, &linksJSON, &e.IdempotencyKey, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(planJSON) > 0 {
		_ = json.Unmarshal(planJSON, &e.ExecutionPlan)
	}
	if len(extIDsJSON) > 0 {
		_ = json.Unmarshal(extIDsJSON, &e.ExternalIDs)
	}
	if len(linksJSON) > 0 {
		_ = json.Unmarshal(linksJSON, &e.Links)
	}
	return e, nil
}

func (r *ExecutionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Execution, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM executions WHERE idempotency_key = $1
	`, executionSelectColumns), key)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, store.ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution by idempotency key: %w", err)
	}
	return e, nil
}

func (r *ExecutionRepo) Create(ctx context.Context, e *domain.Execution) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	planJSON, err := json.Marshal(e.ExecutionPlan)
	if err != nil {
		return "", fmt.Errorf("marshal execution_plan: %w", err)
	}
	extIDsJSON, err := json.Marshal(e.ExternalIDs)
	if err != nil {
		return "", fmt.Errorf("marshal external_ids: %w", err)
	}
	linksJSON, err := json.Marshal(e.Links)
	if err != nil {
		return "", fmt.Errorf("marshal links: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions
			(id, campaign_id, platform, status, execution_plan, external_campaign_id,
			 external_ids, links, idempotency_key, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
	`, e.ID, e.CampaignID, e.Platform, e.Status, planJSON, e.ExternalCampaignID,
		extIDsJSON, linksJSON, e.IdempotencyKey, e.ErrorMessage)
	if err != nil {
		return "", fmt.Errorf("create execution: %w", err)
	}
	return e.ID, nil
}

func (r *ExecutionRepo) Update(ctx context.Context, e *domain.Execution) error {
	extIDsJSON, err := json.Marshal(e.ExternalIDs)
	if err != nil {
		return fmt.Errorf("marshal external_ids: %w", err)
	}
	linksJSON, err := json.Marshal(e.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $1, external_campaign_id = $2, external_ids = $3, links = $4,
		    error_message = $5, updated_at = NOW()
		WHERE id = $6
	`, e.Status, e.ExternalCampaignID, extIDsJSON, linksJSON, e.ErrorMessage, e.ID)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrExecutionNotFound
	}
	return nil
}

func (r *ExecutionRepo) InsertAction(ctx context.Context, a *domain.ExecutionAction) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	requestJSON, err := json.Marshal(a.Request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	responseJSON, err := json.Marshal(a.Response)
	if err != nil {
		return "", fmt.Errorf("marshal response: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_actions
			(id, execution_id, action_type, idempotency_key, request, response,
			 status, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (execution_id, idempotency_key) DO NOTHING
	`, a.ID, a.ExecutionID, a.ActionType, a.IdempotencyKey, requestJSON, responseJSON,
		a.Status, a.ErrorMessage, a.DurationMS)
	if err != nil {
		return "", fmt.Errorf("insert execution action: %w", err)
	}
	return a.ID, nil
}
