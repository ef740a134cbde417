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

// MonitorRunRepo implements store.MonitorRunStore against PostgreSQL.
type MonitorRunRepo struct{ db *sql.DB }

// NewMonitorRunRepo creates a Postgres-backed monitor run audit repository.
func NewMonitorRunRepo(db *sql.DB) *MonitorRunRepo { return &MonitorRunRepo{db: db} }

func (r *MonitorRunRepo) Create(ctx context.Context, run *domain.MonitorRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	engineJSON, err := json.Marshal(run.EngineSummary)
	if err != nil {
		return "", fmt.Errorf("marshal engine_summary: %w", err)
	}
	execJSON, err := json.Marshal(run.ExecutionSummary)
	if err != nil {
		return "", fmt.Errorf("marshal execution_summary: %w", err)
	}
	verifyJSON, err := json.Marshal(run.VerificationSummary)
	if err != nil {
		return "", fmt.Errorf("marshal verification_summary: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO monitor_runs
			(id, campaign_id, status, engine_summary, execution_summary,
			 verification_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, run.ID, run.CampaignID, run.Status, engineJSON, execJSON, verifyJSON)
	if err != nil {
		return "", fmt.Errorf("create monitor run: %w", err)
	}
	return run.ID, nil
}

func (r *MonitorRunRepo) Get(ctx context.Context, id string) (*domain.MonitorRun, error) {
	run := &domain.MonitorRun{}
	var engineJSON, execJSON, verifyJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, status, engine_summary, execution_summary,
		       verification_summary, created_at
		FROM monitor_runs
		WHERE id = $1
	`, id).Scan(&run.ID, &run.CampaignID, &run.Status, &engineJSON, &execJSON, &verifyJSON, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrMonitorRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get monitor run: %w", err)
	}
	_ = json.Unmarshal(engineJSON, &run.EngineSummary)
	_ = json.Unmarshal(execJSON, &run.ExecutionSummary)
	_ = json.Unmarshal(verifyJSON, &run.VerificationSummary)
	return run, nil
}

func (r *MonitorRunRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.MonitorRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, status, engine_summary, execution_summary,
		       verification_summary, created_at
		FROM monitor_runs
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list monitor runs: %w", err)
	}
	defer rows.Close()

	var out []domain.MonitorRun
	for rows.Next() {
		var run domain.MonitorRun
		var engineJSON, execJSON, verifyJSON []byte
		if err := rows.Scan(
			&run.ID, &run.CampaignID, &run.Status, &engineJSON, &execJSON, &verifyJSON, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan monitor run: %w", err)
		}
		_ = json.Unmarshal(engineJSON, &run.EngineSummary)
		_ = json.Unmarshal(execJSON, &run.ExecutionSummary)
		_ = json.Unmarshal(verifyJSON, &run.VerificationSummary)
		out = append(out, run)
	}
	return out, rows.Err()
}
