package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// SnapshotRepo implements store.SnapshotStore against PostgreSQL.
type SnapshotRepo struct{ db *sql.DB }

// NewSnapshotRepo creates a Postgres-backed channel snapshot repository.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) Count(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM channel_snapshots WHERE campaign_id = $1
	`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func (r *SnapshotRepo) List(ctx context.Context, campaignID string, w store.Window) ([]domain.ChannelSnapshot, error) {
	q := `
		SELECT id, campaign_id, channel, window_start, window_end,
		       spend, impressions, clicks, conversions, revenue, created_at
		FROM channel_snapshots
		WHERE campaign_id = $1`
	args := []any{campaignID}
	idx := 2

	if !w.Start.IsZero() {
		q += fmt.Sprintf(" AND window_end >= $%d", idx)
		args = append(args, w.Start)
		idx++
	}
	if !w.End.IsZero() {
		q += fmt.Sprintf(" AND window_start <= $%d", idx)
		args = append(args, w.End)
		idx++
	}
	q += " ORDER BY window_start ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.ChannelSnapshot
	for rows.Next() {
		var s domain.ChannelSnapshot
		if err := rows.Scan(
			&s.ID, &s.CampaignID, &s.Channel, &s.WindowStart, &s.WindowEnd,
			&s.Spend, &s.Impressions, &s.Clicks, &s.Conversions, &s.Revenue, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
