package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// CampaignRepo implements store.CampaignStore against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var targetCAC sql.NullFloat64
	var windowStart, windowEnd sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, objective, target_cac, start_date, end_date, created_at
		FROM campaigns
		WHERE id = $1
	`, campaignID).Scan(
		&c.ID, &c.Name, &c.Objective, &targetCAC, &windowStart, &windowEnd, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if targetCAC.Valid {
		m := domain.NewMoney(targetCAC.Float64)
		c.TargetCAC = &m
	}
	if windowStart.Valid {
		c.WindowStart = &windowStart.Time
	}
	if windowEnd.Valid {
		c.WindowEnd = &windowEnd.Time
	}
	return c, nil
}

// ListActive returns campaigns with no end_date or an end_date in the future.
func (r *CampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, objective, target_cac, start_date, end_date, created_at
		FROM campaigns
		WHERE end_date IS NULL OR end_date >= NOW()
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c := domain.Campaign{}
		var targetCAC sql.NullFloat64
		var windowStart, windowEnd sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.Objective, &targetCAC, &windowStart, &windowEnd, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		if targetCAC.Valid {
			m := domain.NewMoney(targetCAC.Float64)
			c.TargetCAC = &m
		}
		if windowStart.Valid {
			c.WindowStart = &windowStart.Time
		}
		if windowEnd.Valid {
			c.WindowEnd = &windowEnd.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
