// Package store defines the data-access contracts the optimization core
// consumes. internal/repository/postgres implements these against
// PostgreSQL; tests may supply in-memory fakes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

// Sentinel errors shared across every store implementation.
var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrMethodNotFound   = errors.New("optimization method not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrLearningNotFound = errors.New("learning record not found")
	ErrMonitorRunNotFound = errors.New("monitor run not found")
)

// Window narrows a query to channel snapshots / raw metrics / KPIs whose
// recorded window falls within [Start, End]. A zero time means "unbounded".
type Window struct {
	Start time.Time
	End   time.Time
}

// CampaignStore reads campaign metadata. Campaigns themselves are created
// and deleted outside the optimization core.
type CampaignStore interface {
	Get(ctx context.Context, campaignID string) (*domain.Campaign, error)
	// ListActive returns campaigns whose window has not yet ended (end_date
	// NULL or in the future), for the worker's periodic run_cycle sweep.
	ListActive(ctx context.Context) ([]domain.Campaign, error)
}

// SnapshotStore is the only store the core treats as ground-truth input.
type SnapshotStore interface {
	Count(ctx context.Context, campaignID string) (int, error)
	List(ctx context.Context, campaignID string, w Window) ([]domain.ChannelSnapshot, error)
}

// RawMetricStore persists and loads the Collector's projection rows.
type RawMetricStore interface {
	InsertBatch(ctx context.Context, rows []domain.RawMetric) error
	List(ctx context.Context, campaignID string, w Window) ([]domain.RawMetric, error)
}

// DerivedKPIStore persists and loads KPI Calculator output.
type DerivedKPIStore interface {
	InsertBatch(ctx context.Context, rows []domain.DerivedKPI) error
	List(ctx context.Context, campaignID string, w Window) ([]domain.DerivedKPI, error)
}

// TrendIndicatorStore persists and loads Trend Analyzer output.
type TrendIndicatorStore interface {
	InsertBatch(ctx context.Context, rows []domain.TrendIndicator) error
	List(ctx context.Context, campaignID string) ([]domain.TrendIndicator, error)
}

// MethodStore gets/creates/updates the lazily-materialized method identity row.
type MethodStore interface {
	GetByName(ctx context.Context, name string) (*domain.OptimizationMethod, error)
	Get(ctx context.Context, id string) (*domain.OptimizationMethod, error)
	Create(ctx context.Context, m *domain.OptimizationMethod) (string, error)
	List(ctx context.Context) ([]domain.OptimizationMethod, error)
	UpdateConfig(ctx context.Context, id string, config map[string]any) error
	UpdateStats(ctx context.Context, id string, stats domain.MethodStats) error
	// UpdateSettings applies the PATCH /methods/{id} subset of fields;
	// nil pointers leave the corresponding column unchanged.
	UpdateSettings(ctx context.Context, id string, isActive *bool, cooldownMinutes *int, config map[string]any) error
}

// ProposalStore is the guardrail-passed recommendation ledger.
type ProposalStore interface {
	Create(ctx context.Context, p *domain.OptimizationProposal) (string, error)
	Get(ctx context.Context, id string) (*domain.OptimizationProposal, error)
	Update(ctx context.Context, p *domain.OptimizationProposal) error
	ListByCampaign(ctx context.Context, campaignID string, status string) ([]domain.OptimizationProposal, error)
	// RecentCreatedAt returns created_at timestamps for proposals on this
	// campaign created at or after since, for the rate-limit guardrail.
	RecentCreatedAt(ctx context.Context, campaignID string, since time.Time) ([]time.Time, error)
	// LastFiredAt returns the most recent created_at for the given
	// (campaign, action_type) pair, for the cooldown guardrail.
	LastFiredAt(ctx context.Context, campaignID, actionType string) (*time.Time, error)
	// ListExecutable returns proposals in auto_approved status with no executed_at.
	ListExecutable(ctx context.Context, campaignID string) ([]domain.OptimizationProposal, error)
	// ListExecutedSince returns executed proposals whose executed_at is at or after since.
	ListExecutedSince(ctx context.Context, campaignID string, since time.Time) ([]domain.OptimizationProposal, error)
}

// ExecutionStore is the audit trail for platform dispatch.
type ExecutionStore interface {
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Execution, error)
	Create(ctx context.Context, e *domain.Execution) (string, error)
	Update(ctx context.Context, e *domain.Execution) error
	InsertAction(ctx context.Context, a *domain.ExecutionAction) (string, error)
}

// LearningStore is the verified-outcome ledger.
type LearningStore interface {
	GetVerified(ctx context.Context, proposalID string) (*domain.OptimizationLearning, error)
	Create(ctx context.Context, l *domain.OptimizationLearning) (string, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.OptimizationLearning, error)
}

// MonitorRunStore persists the single audit row per run_cycle call.
type MonitorRunStore interface {
	Create(ctx context.Context, r *domain.MonitorRun) (string, error)
	Get(ctx context.Context, id string) (*domain.MonitorRun, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.MonitorRun, error)
}
