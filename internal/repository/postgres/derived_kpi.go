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

// DerivedKPIRepo implements store.DerivedKPIStore against PostgreSQL.
type DerivedKPIRepo struct{ db *sql.DB }

// NewDerivedKPIRepo creates a Postgres-backed derived KPI repository.
func NewDerivedKPIRepo(db *sql.DB) *DerivedKPIRepo { return &DerivedKPIRepo{db: db} }

func (r *DerivedKPIRepo) InsertBatch(ctx context.Context, rows []domain.DerivedKPI) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert derived kpis: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO derived_kpis
			(id, campaign_id, channel, kpi_name, kpi_value, window_start, window_end,
			 input_metrics, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("insert derived kpis: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		inputJSON, err := json.Marshal(rows[i].InputMetrics)
		if err != nil {
			return fmt.Errorf("marshal input_metrics: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			rows[i].ID, rows[i].CampaignID, rows[i].Channel, rows[i].KPIName, rows[i].KPIValue,
			rows[i].WindowStart, rows[i].WindowEnd, inputJSON, rows[i].ComputedAt,
		); err != nil {
			return fmt.Errorf("insert derived kpi: %w", err)
		}
	}
	return tx.Commit()
}

func (r *DerivedKPIRepo) List(ctx context.Context, campaignID string, w store.Window) ([]domain.DerivedKPI, error) {
	q := `
		SELECT id, campaign_id, channel, kpi_name, kpi_value, window_start, window_end,
		       input_metrics, computed_at
		FROM derived_kpis
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
	q += " ORDER BY computed_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list derived kpis: %w", err)
	}
	defer rows.Close()

	var out []domain.DerivedKPI
	for rows.Next() {
		var k domain.DerivedKPI
		var inputJSON []byte
		if err := rows.Scan(
			&k.ID, &k.CampaignID, &k.Channel, &k.KPIName, &k.KPIValue, &k.WindowStart, &k.WindowEnd,
			&inputJSON, &k.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan derived kpi: %w", err)
		}
		if len(inputJSON) > 0 {
			if err := json.Unmarshal(inputJSON, &k.InputMetrics); err != nil {
				return nil, fmt.Errorf("unmarshal input_metrics: %w", err)
			}
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
