package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// ProposalRepo implements store.ProposalStore against PostgreSQL.
type ProposalRepo struct{ db *sql.DB }

// NewProposalRepo creates a Postgres-backed optimization proposal repository.
func NewProposalRepo(db *sql.DB) *ProposalRepo { return &ProposalRepo{db: db} }

const proposalSelectColumns = `
	id, campaign_id, method_id, status, confidence, priority, action_type,
	action_payload, reasoning, trigger_data, guardrail_checks, execution_result,
	approved_by, approved_at, executed_at, expires_at, created_at`

func scanProposal(scan func(...any) error) (*domain.OptimizationProposal, error) {
	p := &domain.OptimizationProposal{}
	var payloadJSON, triggerJSON, guardrailJSON, execResultJSON []byte
	err := scan(
		&p.ID, &p.CampaignID, &p.MethodID, &p.Status, &p.Confidence, &p.Priority, &p.ActionType,
		&payloadJSON, &p.Reasoning, &triggerJSON, &guardrailJSON, &execResultJSON,
		&p.ApprovedBy, &p.ApprovedAt, &p.ExecutedAt, &p.ExpiresAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &p.ActionPayload); err != nil {
			return nil, fmt.Errorf("unmarshal action_payload: %w", err)
		}
	}
	if len(triggerJSON) > 0 {
		if err := json.Unmarshal(triggerJSON, &p.TriggerData); err != nil {
			return nil, fmt.Errorf("unmarshal trigger_data: %w", err)
		}
	}
	if len(guardrailJSON) > 0 {
		if err := json.Unmarshal(guardrailJSON, &p.GuardrailChecks); err != nil {
			return nil, fmt.Errorf("unmarshal guardrail_checks: %w", err)
		}
	}
	if len(execResultJSON) > 0 {
		if err := json.Unmarshal(execResultJSON, &p.ExecutionResult); err != nil {
			return nil, fmt.Errorf("unmarshal execution_result: %w", err)
		}
	}
	return p, nil
}

func (r *ProposalRepo) Create(ctx context.Context, p *domain.OptimizationProposal) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	payloadJSON, err := json.Marshal(p.ActionPayload)
	if err != nil {
		return "", fmt.Errorf("marshal action_payload: %w", err)
	}
	triggerJSON, err := json.Marshal(p.TriggerData)
	if err != nil {
		return "", fmt.Errorf("marshal trigger_data: %w", err)
	}
	guardrailJSON, err := json.Marshal(p.GuardrailChecks)
	if err != nil {
		return "", fmt.Errorf("marshal guardrail_checks: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO optimization_proposals
			(id, campaign_id, method_id, status, confidence, priority, action_type,
			 action_payload, reasoning, trigger_data, guardrail_checks, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	`, p.ID, p.CampaignID, p.MethodID, p.Status, p.Confidence, p.Priority, p.ActionType,
		payloadJSON, p.Reasoning, triggerJSON, guardrailJSON, p.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("create proposal: %w", err)
	}
	return p.ID, nil
}

func (r *ProposalRepo) Get(ctx context.Context, id string) (*domain.OptimizationProposal, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM optimization_proposals WHERE id = $1
	`, proposalSelectColumns), id)
	p, err := scanProposal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, store.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

func (r *ProposalRepo) Update(ctx context.Context, p *domain.OptimizationProposal) error {
	execResultJSON, err := json.Marshal(p.ExecutionResult)
	if err != nil {
		return fmt.Errorf("marshal execution_result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE optimization_proposals
		SET status = $1, approved_by = $2, approved_at = $3, executed_at = $4,
		    execution_result = $5
		WHERE id = $6
	`, p.Status, p.ApprovedBy, p.ApprovedAt, p.ExecutedAt, execResultJSON, p.ID)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrProposalNotFound
	}
	return nil
}

func (r *ProposalRepo) ListByCampaign(ctx context.Context, campaignID string, status string) ([]domain.OptimizationProposal, error) {
	q := fmt.Sprintf(`SELECT %s FROM optimization_proposals WHERE campaign_id = $1`, proposalSelectColumns)
	args := []any{campaignID}
	if status != "" {
		q += " AND status = $2"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()
	return scanProposalRows(rows)
}

func (r *ProposalRepo) RecentCreatedAt(ctx context.Context, campaignID string, since time.Time) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT created_at FROM optimization_proposals
		WHERE campaign_id = $1 AND created_at >= $2
	`, campaignID, since)
	if err != nil {
		return nil, fmt.Errorf("list recent proposal times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan proposal created_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ProposalRepo) LastFiredAt(ctx context.Context, campaignID, actionType string) (*time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT created_at FROM optimization_proposals
		WHERE campaign_id = $1 AND action_type = $2
		ORDER BY created_at DESC LIMIT 1
	`, campaignID, actionType).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last fired at: %w", err)
	}
	return &t, nil
}

func (r *ProposalRepo) ListExecutable(ctx context.Context, campaignID string) ([]domain.OptimizationProposal, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM optimization_proposals
		WHERE campaign_id = $1 AND status = 'auto_approved' AND executed_at IS NULL
		ORDER BY priority ASC, created_at ASC
	`, proposalSelectColumns)
	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list executable proposals: %w", err)
	}
	defer rows.Close()
	return scanProposalRows(rows)
}

func (r *ProposalRepo) ListExecutedSince(ctx context.Context, campaignID string, since time.Time) ([]domain.OptimizationProposal, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM optimization_proposals
		WHERE campaign_id = $1 AND status = 'executed' AND executed_at >= $2
		ORDER BY executed_at ASC
	`, proposalSelectColumns)
	rows, err := r.db.QueryContext(ctx, q, campaignID, since)
	if err != nil {
		return nil, fmt.Errorf("list executed proposals: %w", err)
	}
	defer rows.Close()
	return scanProposalRows(rows)
}

func scanProposalRows(rows *sql.Rows) ([]domain.OptimizationProposal, error) {
	var out []domain.OptimizationProposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
