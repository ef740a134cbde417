package domain

import "time"

// MetricName enumerates the five raw dimensions captured per channel snapshot.
type MetricName string

const (
	MetricSpend       MetricName = "spend"
	MetricImpressions MetricName = "impressions"
	MetricClicks      MetricName = "clicks"
	MetricConversions MetricName = "conversions"
	MetricRevenue     MetricName = "revenue"
)

// MetricUnit classifies whether a RawMetric value is a currency amount or a count.
type MetricUnit string

const (
	UnitCount    MetricUnit = "count"
	UnitCurrency MetricUnit = "currency"
)

// MetricUnitFor returns the unit a given metric dimension is recorded in.
func MetricUnitFor(name MetricName) MetricUnit {
	switch name {
	case MetricSpend, MetricRevenue:
		return UnitCurrency
	default:
		return UnitCount
	}
}

// ChannelSnapshot is an immutable, insert-only window of raw channel
// performance — the only input data the optimization core trusts.
type ChannelSnapshot struct {
	ID          string    `json:"id" db:"id"`
	CampaignID  string    `json:"campaign_id" db:"campaign_id"`
	Channel     string    `json:"channel" db:"channel"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
	WindowEnd   time.Time `json:"window_end" db:"window_end"`
	Spend       Money     `json:"spend" db:"spend"`
	Impressions int64     `json:"impressions" db:"impressions"`
	Clicks      int64     `json:"clicks" db:"clicks"`
	Conversions int64     `json:"conversions" db:"conversions"`
	Revenue     Money     `json:"revenue" db:"revenue"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RawMetric is a single (channel, metric_name) projection of a ChannelSnapshot,
// produced by the Metrics Collector. Immutable and append-only: the collector
// may emit duplicates across runs by design.
type RawMetric struct {
	ID          string     `json:"id" db:"id"`
	CampaignID  string     `json:"campaign_id" db:"campaign_id"`
	Channel     string     `json:"channel" db:"channel"`
	MetricName  MetricName `json:"metric_name" db:"metric_name"`
	MetricValue float64    `json:"metric_value" db:"metric_value"`
	MetricUnit  MetricUnit `json:"metric_unit" db:"metric_unit"`
	Source      string     `json:"source" db:"source"`
	CollectedAt time.Time  `json:"collected_at" db:"collected_at"`
	WindowStart *time.Time `json:"window_start,omitempty" db:"window_start"`
	WindowEnd   *time.Time `json:"window_end,omitempty" db:"window_end"`
}
