package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

// TrendIndicatorRepo implements store.TrendIndicatorStore against PostgreSQL.
type TrendIndicatorRepo struct{ db *sql.DB }

// NewTrendIndicatorRepo creates a Postgres-backed trend indicator repository.
func NewTrendIndicatorRepo(db *sql.DB) *TrendIndicatorRepo { return &TrendIndicatorRepo{db: db} }

func (r *TrendIndicatorRepo) InsertBatch(ctx context.Context, rows []domain.TrendIndicator) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert trend indicators: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trend_indicators
			(id, campaign_id, channel, kpi_name, direction, magnitude, period_days,
			 current_value, previous_value, confidence, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("insert trend indicators: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			rows[i].ID, rows[i].CampaignID, rows[i].Channel, rows[i].KPIName, rows[i].Direction,
			rows[i].Magnitude, rows[i].PeriodDays, rows[i].CurrentValue, rows[i].PreviousValue,
			rows[i].Confidence, rows[i].ComputedAt,
		); err != nil {
			return fmt.Errorf("insert trend indicator: %w", err)
		}
	}
	return tx.Commit()
}

func (r *TrendIndicatorRepo) List(ctx context.Context, campaignID string) ([]domain.TrendIndicator, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, channel, kpi_name, direction, magnitude, period_days,
		       current_value, previous_value, confidence, computed_at
		FROM trend_indicators
		WHERE campaign_id = $1
		ORDER BY computed_at DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list trend indicators: %w", err)
	}
	defer rows.Close()

	var out []domain.TrendIndicator
	for rows.Next() {
		var t domain.TrendIndicator
		if err := rows.Scan(
			&t.ID, &t.CampaignID, &t.Channel, &t.KPIName, &t.Direction, &t.Magnitude, &t.PeriodDays,
			&t.CurrentValue, &t.PreviousValue, &t.Confidence, &t.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trend indicator: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
