package domain

import "time"

// KPIName enumerates the six KPIs derivable from the five raw dimensions.
type KPIName string

const (
	KPICTR  KPIName = "ctr"
	KPICVR  KPIName = "cvr"
	KPICPC  KPIName = "cpc"
	KPICPM  KPIName = "cpm"
	KPICPA  KPIName = "cpa"
	KPIROAS KPIName = "roas"

	// KPIEfficiencyIndex is a per-channel-only KPI (conversion-share ÷
	// spend-share) consumed by the Budget-Reallocation method; the calculator
	// derives it alongside the six core KPIs.
	KPIEfficiencyIndex KPIName = "efficiency_index"
)

// DerivedKPI is an aggregated ratio for a campaign, or a campaign+channel
// pair when Channel is non-nil. Invariant: if persisted, its denominator was
// non-zero — rows are never written with a zero-division placeholder.
type DerivedKPI struct {
	ID           string          `json:"id" db:"id"`
	CampaignID   string          `json:"campaign_id" db:"campaign_id"`
	Channel      *string         `json:"channel,omitempty" db:"channel"`
	KPIName      KPIName         `json:"kpi_name" db:"kpi_name"`
	KPIValue     float64         `json:"kpi_value" db:"kpi_value"`
	WindowStart  *time.Time      `json:"window_start,omitempty" db:"window_start"`
	WindowEnd    *time.Time      `json:"window_end,omitempty" db:"window_end"`
	InputMetrics map[string]any  `json:"input_metrics" db:"input_metrics"`
	ComputedAt   time.Time       `json:"computed_at" db:"computed_at"`
}

// IsCampaignLevel reports whether this row aggregates across all channels.
func (k *DerivedKPI) IsCampaignLevel() bool { return k.Channel == nil }
