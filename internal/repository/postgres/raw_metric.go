package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// RawMetricRepo implements store.RawMetricStore against PostgreSQL.
type RawMetricRepo struct{ db *sql.DB }

// NewRawMetricRepo creates a Postgres-backed raw metric repository.
func NewRawMetricRepo(db *sql.DB) *RawMetricRepo { return &RawMetricRepo{db: db} }

func (r *RawMetricRepo) InsertBatch(ctx context.Context, rows []domain.RawMetric) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert raw metrics: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_metrics
			(id, campaign_id, channel, metric_name, metric_value, metric_unit,
			 source, collected_at, window_start, window_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("insert raw metrics: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			rows[i].ID, rows[i].CampaignID, rows[i].Channel, rows[i].MetricName,
			rows[i].MetricValue, rows[i].MetricUnit, rows[i].Source, rows[i].CollectedAt,
			rows[i].WindowStart, rows[i].WindowEnd,
		); err != nil {
			return fmt.Errorf("insert raw metric: %w", err)
		}
	}
	return tx.Commit()
}

func (r *RawMetricRepo) List(ctx context.Context, campaignID string, w store.Window) ([]domain.RawMetric, error) {
	q := `
		SELECT id, campaign_id, channel, metric_name, metric_value, metric_unit,
		       source, collected_at, window_start, window_end
		FROM raw_metrics
		WHERE campaign_id = $1`
	args := []any{campaignID}
	idx := 2

	if !w.Start.IsZero() {
		q += fmt.Sprintf(" AND (window_end IS NULL OR window_end >= $%d)", idx)
		args = append(args, w.Start)
		idx++
	}
	if !w.End.IsZero() {
		q += fmt.Sprintf(" AND (window_start IS NULL OR window_start <= $%d)", idx)
		args = append(args, w.End)
		idx++
	}
	q += " ORDER BY collected_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list raw metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.RawMetric
	for rows.Next() {
		var m domain.RawMetric
		if err := rows.Scan(
			&m.ID, &m.CampaignID, &m.Channel, &m.MetricName, &m.MetricValue, &m.MetricUnit,
			&m.Source, &m.CollectedAt, &m.WindowStart, &m.WindowEnd,
		); err != nil {
			return nil, fmt.Errorf("scan raw metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
