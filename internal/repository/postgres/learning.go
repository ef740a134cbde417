package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

// LearningRepo implements store.LearningStore against PostgreSQL.
type LearningRepo struct{ db *sql.DB }

// NewLearningRepo creates a Postgres-backed optimization learning repository.
func NewLearningRepo(db *sql.DB) *LearningRepo { return &LearningRepo{db: db} }

const learningSelectColumns = `
	id, campaign_id, proposal_id, method_id, predicted_impact, actual_impact,
	accuracy_score, verification_status, verified_at, details, created_at`

func scanLearning(scan func(...any) error) (*domain.OptimizationLearning, error) {
	l := &domain.OptimizationLearning{}
	var predictedJSON, actualJSON, detailsJSON []byte
	err := scan(
		&l.ID, &l.CampaignID, &l.ProposalID, &l.MethodID, &predictedJSON, &actualJSON,
		&l.AccuracyScore, &l.VerificationStatus, &l.VerifiedAt, &detailsJSON, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(predictedJSON) > 0 {
		_ = json.Unmarshal(predictedJSON, &l.PredictedImpact)
	}
	if len(actualJSON) > 0 {
		_ = json.Unmarshal(actualJSON, &l.ActualImpact)
	}
	if len(detailsJSON) > 0 {
		_ = json.Unmarshal(detailsJSON, &l.Details)
	}
	return l, nil
}

// GetVerified returns the verified learning row for a proposal, if any — at
// most one row per proposal may carry verification_status = 'verified'.
func (r *LearningRepo) GetVerified(ctx context.Context, proposalID string) (*domain.OptimizationLearning, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM optimization_learnings
		WHERE proposal_id = $1 AND verification_status = 'verified'
		ORDER BY created_at DESC LIMIT 1
	`, learningSelectColumns), proposalID)
	l, err := scanLearning(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verified learning: %w", err)
	}
	return l, nil
}

func (r *LearningRepo) Create(ctx context.Context, l *domain.OptimizationLearning) (string, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	predictedJSON, err := json.Marshal(l.PredictedImpact)
	if err != nil {
		return "", fmt.Errorf("marshal predicted_impact: %w", err)
	}
	actualJSON, err := json.Marshal(l.ActualImpact)
	if err != nil {
		return "", fmt.Errorf("marshal actual_impact: %w", err)
	}
	detailsJSON, err := json.Marshal(l.Details)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO optimization_learnings
			(id, campaign_id, proposal_id, method_id, predicted_impact, actual_impact,
			 accuracy_score, verification_status, verified_at, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, l.ID, l.CampaignID, l.ProposalID, l.MethodID, predictedJSON, actualJSON,
		l.AccuracyScore, l.VerificationStatus, l.VerifiedAt, detailsJSON)
	if err != nil {
		return "", fmt.Errorf("create learning: %w", err)
	}
	return l.ID, nil
}

func (r *LearningRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.OptimizationLearning, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM optimization_learnings WHERE campaign_id = $1 ORDER BY created_at DESC
	`, learningSelectColumns), campaignID)
	if err != nil {
		return nil, fmt.Errorf("list learnings: %w", err)
	}
	defer rows.Close()

	var out []domain.OptimizationLearning
	for rows.Next() {
		l, err := scanLearning(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan learning: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
