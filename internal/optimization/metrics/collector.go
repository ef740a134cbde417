// Package metrics implements the Collector, KPI Calculator, and Trend
// Analyzer stages of the decision pipeline: pure-projection and
// pure-aggregation steps over ChannelSnapshot rows.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

var dimensions = []domain.MetricName{
	domain.MetricSpend,
	domain.MetricImpressions,
	domain.MetricClicks,
	domain.MetricConversions,
	domain.MetricRevenue,
}

// Collector turns ChannelSnapshot rows into typed RawMetric projections.
// Pure-projection: no aggregation, no KPI math. It is intentionally
// idempotent-by-convention only — re-running against the same snapshots
// produces new rows in the append-only raw_metrics table.
type Collector struct {
	Snapshots store.SnapshotStore
	RawMetrics store.RawMetricStore
}

func NewCollector(snapshots store.SnapshotStore, rawMetrics store.RawMetricStore) *Collector {
	return &Collector{Snapshots: snapshots, RawMetrics: rawMetrics}
}

// Collect emits five RawMetric rows per matching ChannelSnapshot, one per
// dimension. Zero values are preserved.
func (c *Collector) Collect(ctx context.Context, campaignID string, w store.Window) ([]domain.RawMetric, error) {
	snapshots, err := c.Snapshots.List(ctx, campaignID, w)
	if err != nil {
		return nil, fmt.Errorf("collector: list snapshots: %w", err)
	}

	now := time.Now().UTC()
	rows := make([]domain.RawMetric, 0, len(snapshots)*len(dimensions))
	for _, snap := range snapshots {
		windowStart := snap.WindowStart
		windowEnd := snap.WindowEnd
		values := map[domain.MetricName]float64{
			domain.MetricSpend:       snap.Spend.Float64(),
			domain.MetricImpressions: float64(snap.Impressions),
			domain.MetricClicks:      float64(snap.Clicks),
			domain.MetricConversions: float64(snap.Conversions),
			domain.MetricRevenue:     snap.Revenue.Float64(),
		}
		for _, dim := range dimensions {
			rows = append(rows, domain.RawMetric{
				CampaignID:  campaignID,
				Channel:     snap.Channel,
				MetricName:  dim,
				MetricValue: values[dim],
				MetricUnit:  domain.MetricUnitFor(dim),
				Source:      "snapshot",
				CollectedAt: now,
				WindowStart: &windowStart,
				WindowEnd:   &windowEnd,
			})
		}
	}

	if len(rows) > 0 {
		if err := c.RawMetrics.InsertBatch(ctx, rows); err != nil {
			return nil, fmt.Errorf("collector: insert raw metrics: %w", err)
		}
	}
	return rows, nil
}
