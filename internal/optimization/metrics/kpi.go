package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// Calculator aggregates RawMetric rows per channel and campaign-wide,
// deriving the six core KPIs plus the efficiency_index, using the
// safe-division rule: a zero denominator omits the row entirely.
type Calculator struct {
	RawMetrics store.RawMetricStore
	DerivedKPIs store.DerivedKPIStore
}

func NewCalculator(rawMetrics store.RawMetricStore, derivedKPIs store.DerivedKPIStore) *Calculator {
	return &Calculator{RawMetrics: rawMetrics, DerivedKPIs: derivedKPIs}
}

type totals struct {
	spend       float64
	impressions float64
	clicks      float64
	conversions float64
	revenue     float64
}

func (t totals) asMap() map[string]any {
	return map[string]any{
		"spend":       t.spend,
		"impressions": t.impressions,
		"clicks":      t.clicks,
		"conversions": t.conversions,
		"revenue":     t.revenue,
	}
}

// Compute aggregates rawMetrics (or loads them from the store scoped by w
// when nil) and persists the resulting DerivedKPI rows.
func (c *Calculator) Compute(ctx context.Context, campaignID string, rawMetrics []domain.RawMetric, w store.Window) ([]domain.DerivedKPI, error) {
	if rawMetrics == nil {
		loaded, err := c.RawMetrics.List(ctx, campaignID, w)
		if err != nil {
			return nil, fmt.Errorf("kpi calculator: list raw metrics: %w", err)
		}
		rawMetrics = loaded
	}

	channelTotals := map[string]*totals{}
	for _, m := range rawMetrics {
		t, ok := channelTotals[m.Channel]
		if !ok {
			t = &totals{}
			channelTotals[m.Channel] = t
		}
		addDimension(t, m.MetricName, m.MetricValue)
	}

	campaignTotals := &totals{}
	for _, t := range channelTotals {
		campaignTotals.spend += t.spend
		campaignTotals.impressions += t.impressions
		campaignTotals.clicks += t.clicks
		campaignTotals.conversions += t.conversions
		campaignTotals.revenue += t.revenue
	}

	now := time.Now().UTC()
	var rows []domain.DerivedKPI

	for channel, t := range channelTotals {
		ch := channel
		rows = append(rows, buildKPIRows(campaignID, &ch, *t, w, now)...)
	}
	rows = append(rows, buildKPIRows(campaignID, nil, *campaignTotals, w, now)...)

	// efficiency_index needs the campaign-wide conversion/spend totals to
	// compute each channel's share, so it is derived in a second pass.
	if campaignTotals.conversions > 0 && campaignTotals.spend > 0 {
		for channel, t := range channelTotals {
			if t.spend <= 0 {
				continue
			}
			conversionShare := t.conversions / campaignTotals.conversions
			spendShare := t.spend / campaignTotals.spend
			if spendShare <= 0 {
				continue
			}
			ch := channel
			rows = append(rows, domain.DerivedKPI{
				CampaignID:   campaignID,
				Channel:      &ch,
				KPIName:      domain.KPIEfficiencyIndex,
				KPIValue:     domain.RoundRatio(conversionShare / spendShare),
				WindowStart:  windowPtr(w.Start),
				WindowEnd:    windowPtr(w.End),
				InputMetrics: t.asMap(),
				ComputedAt:   now,
			})
		}
	}

	if len(rows) > 0 {
		if err := c.DerivedKPIs.InsertBatch(ctx, rows); err != nil {
			return nil, fmt.Errorf("kpi calculator: insert derived kpis: %w", err)
		}
	}
	return rows, nil
}

func addDimension(t *totals, name domain.MetricName, value float64) {
	switch name {
	case domain.MetricSpend:
		t.spend += value
	case domain.MetricImpressions:
		t.impressions += value
	case domain.MetricClicks:
		t.clicks += value
	case domain.MetricConversions:
		t.conversions += value
	case domain.MetricRevenue:
		t.revenue += value
	}
}

// safeDiv implements the safe-division rule: a zero denominator yields
// "omit this row", signalled by the second return value.
func safeDiv(numerator, denominator float64) (float64, bool) {
	if denominator == 0 {
		return 0, false
	}
	return numerator / denominator, true
}

func buildKPIRows(campaignID string, channel *string, t totals, w store.Window, now time.Time) []domain.DerivedKPI {
	type kv struct {
		name  domain.KPIName
		value float64
		ok    bool
	}
	candidates := []kv{}
	ctr, ok := safeDiv(t.clicks, t.impressions)
	candidates = append(candidates, kv{domain.KPICTR, ctr, ok})
	cvr, ok := safeDiv(t.conversions, t.clicks)
	candidates = append(candidates, kv{domain.KPICVR, cvr, ok})
	cpc, ok := safeDiv(t.spend, t.clicks)
	candidates = append(candidates, kv{domain.KPICPC, cpc, ok})
	cpm, ok := safeDiv(t.spend*1000, t.impressions)
	candidates = append(candidates, kv{domain.KPICPM, cpm, ok})
	cpa, ok := safeDiv(t.spend, t.conversions)
	candidates = append(candidates, kv{domain.KPICPA, cpa, ok})
	roas, ok := safeDiv(t.revenue, t.spend)
	candidates = append(candidates, kv{domain.KPIROAS, roas, ok})

	var rows []domain.DerivedKPI
	for _, c := range candidates {
		if !c.ok {
			continue
		}
		rows = append(rows, domain.DerivedKPI{
			CampaignID:   campaignID,
			Channel:      channel,
			KPIName:      c.name,
			KPIValue:     domain.RoundRatio(c.value),
			WindowStart:  windowPtr(w.Start),
			WindowEnd:    windowPtr(w.End),
			InputMetrics: t.asMap(),
			ComputedAt:   now,
		})
	}
	return rows
}

func windowPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
