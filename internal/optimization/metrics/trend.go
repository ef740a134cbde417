package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// Analyzer compares the most recent period's average KPI values to the
// previous period's, per (channel, kpi_name) key.
type Analyzer struct {
	DerivedKPIs store.DerivedKPIStore
	Trends      store.TrendIndicatorStore
}

func NewAnalyzer(derivedKPIs store.DerivedKPIStore, trends store.TrendIndicatorStore) *Analyzer {
	return &Analyzer{DerivedKPIs: derivedKPIs, Trends: trends}
}

const defaultPeriodDays = 7

type kpiKey struct {
	channel string
	kpi     domain.KPIName
}

// Analyze loads the current and previous period's DerivedKPI rows, averages
// same-key rows, and emits a TrendIndicator for every key present in both
// periods with a non-zero previous value.
func (a *Analyzer) Analyze(ctx context.Context, campaignID string, periodDays int) ([]domain.TrendIndicator, error) {
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}

	now := time.Now().UTC()
	currentEnd := now
	currentStart := now.AddDate(0, 0, -periodDays)
	previousEnd := currentStart
	previousStart := previousEnd.AddDate(0, 0, -periodDays)

	currentRows, err := a.DerivedKPIs.List(ctx, campaignID, store.Window{Start: currentStart, End: currentEnd})
	if err != nil {
		return nil, fmt.Errorf("trend analyzer: list current kpis: %w", err)
	}
	previousRows, err := a.DerivedKPIs.List(ctx, campaignID, store.Window{Start: previousStart, End: previousEnd})
	if err != nil {
		return nil, fmt.Errorf("trend analyzer: list previous kpis: %w", err)
	}

	current := averageByKey(currentRows)
	previous := averageByKey(previousRows)

	var out []domain.TrendIndicator
	for key, currentVal := range current {
		previousVal, ok := previous[key]
		if !ok || previousVal == 0 {
			continue
		}

		change := (currentVal - previousVal) / math.Abs(previousVal)
		direction := domain.TrendStable
		switch {
		case change > 0.02:
			direction = domain.TrendImproving
		case change < -0.02:
			direction = domain.TrendDeclining
		}

		magnitude := domain.Round4(math.Abs(change))
		confidence := domain.Round4(math.Min(0.9, 0.5+math.Abs(change)))

		var channel *string
		if key.channel != "" {
			c := key.channel
			channel = &c
		}

		out = append(out, domain.TrendIndicator{
			CampaignID:    campaignID,
			Channel:       channel,
			KPIName:       key.kpi,
			Direction:     direction,
			Magnitude:     magnitude,
			PeriodDays:    periodDays,
			CurrentValue:  domain.RoundRatio(currentVal),
			PreviousValue: domain.RoundRatio(previousVal),
			Confidence:    confidence,
			ComputedAt:    now,
		})
	}

	if len(out) > 0 {
		if err := a.Trends.InsertBatch(ctx, out); err != nil {
			return nil, fmt.Errorf("trend analyzer: insert trends: %w", err)
		}
	}
	return out, nil
}

func averageByKey(rows []domain.DerivedKPI) map[kpiKey]float64 {
	sums := map[kpiKey]float64{}
	counts := map[kpiKey]int{}
	for _, r := range rows {
		ch := ""
		if r.Channel != nil {
			ch = *r.Channel
		}
		key := kpiKey{channel: ch, kpi: r.KPIName}
		sums[key] += r.KPIValue
		counts[key]++
	}
	out := make(map[kpiKey]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}
