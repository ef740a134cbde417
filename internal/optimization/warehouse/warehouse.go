// Package warehouse exports DerivedKPI and TrendIndicator rows to Snowflake
// for downstream BI reporting, separate from the operational Postgres store.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/campaign-optimizer/internal/domain"
)

// Config holds the Snowflake connection parameters. Zero-value Config
// (Account == "") leaves warehouse exports disabled.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
}

// Exporter batches DerivedKPI/TrendIndicator rows into Snowflake tables.
// A nil *Exporter is valid and every method becomes a no-op, so callers
// don't need to branch on whether Snowflake is configured.
type Exporter struct {
	db *sql.DB
}

// New opens the Snowflake connection. Returns nil, nil when cfg.Account is
// empty, signalling "warehouse export disabled" to the caller.
func New(cfg Config) (*Exporter, error) {
	if cfg.Account == "" {
		return nil, nil
	}
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Exporter{db: db}, nil
}

// Close releases the underlying connection.
func (e *Exporter) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// ExportDerivedKPIs appends a batch of derived KPI rows to
// CAMPAIGN_DERIVED_KPIS.
func (e *Exporter) ExportDerivedKPIs(ctx context.Context, rows []domain.DerivedKPI) error {
	if e == nil || len(rows) == 0 {
		return nil
	}
	stmt, err := e.db.PrepareContext(ctx, `
		INSERT INTO CAMPAIGN_DERIVED_KPIS
			(ID, CAMPAIGN_ID, CHANNEL, KPI_NAME, KPI_VALUE, COMPUTED_AT)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare derived kpi export: %w", err)
	}
	defer stmt.Close()

	for _, k := range rows {
		if _, err := stmt.ExecContext(ctx, k.ID, k.CampaignID, k.Channel, k.KPIName, k.KPIValue, k.ComputedAt); err != nil {
			return fmt.Errorf("export derived kpi %s: %w", k.ID, err)
		}
	}
	return nil
}

// ExportTrendIndicators appends a batch of trend indicator rows to
// CAMPAIGN_TREND_INDICATORS.
func (e *Exporter) ExportTrendIndicators(ctx context.Context, rows []domain.TrendIndicator) error {
	if e == nil || len(rows) == 0 {
		return nil
	}
	stmt, err := e.db.PrepareContext(ctx, `
		INSERT INTO CAMPAIGN_TREND_INDICATORS
			(ID, CAMPAIGN_ID, CHANNEL, KPI_NAME, DIRECTION, MAGNITUDE, COMPUTED_AT)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare trend indicator export: %w", err)
	}
	defer stmt.Close()

	for _, t := range rows {
		if _, err := stmt.ExecContext(ctx, t.ID, t.CampaignID, t.Channel, t.KPIName, t.Direction, t.Magnitude, t.ComputedAt); err != nil {
			return fmt.Errorf("export trend indicator %s: %w", t.ID, err)
		}
	}
	return nil
}
