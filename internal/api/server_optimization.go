package api

import (
	"database/sql"
	"time"

	"github.com/ignite/campaign-optimizer/internal/config"
	"github.com/ignite/campaign-optimizer/internal/optimization/engine"
	"github.com/ignite/campaign-optimizer/internal/optimization/executor"
	"github.com/ignite/campaign-optimizer/internal/optimization/methods"
	"github.com/ignite/campaign-optimizer/internal/optimization/monitor"
	"github.com/ignite/campaign-optimizer/internal/optimization/platform"
	"github.com/ignite/campaign-optimizer/internal/optimization/verifier"
	"github.com/ignite/campaign-optimizer/internal/repository/postgres"
)

// BuildOptimizationHandlers wires the full optimization core — repositories,
// the method registry, the platform adapter factory, and the
// engine/executor/verifier/monitor collaborators — from a live database
// connection and the loaded application config. The result is ready to
// mount with RegisterOptimizationRoutes.
func BuildOptimizationHandlers(db *sql.DB, cfg *config.Config) *OptimizationHandlers {
	campaigns := postgres.NewCampaignRepo(db)
	snapshots := postgres.NewSnapshotRepo(db)
	rawMetrics := postgres.NewRawMetricRepo(db)
	derivedKPIs := postgres.NewDerivedKPIRepo(db)
	trends := postgres.NewTrendIndicatorRepo(db)
	methodStore := postgres.NewMethodRepo(db)
	proposals := postgres.NewProposalRepo(db)
	executions := postgres.NewExecutionRepo(db)
	learnings := postgres.NewLearningRepo(db)
	monitorRuns := postgres.NewMonitorRunRepo(db)

	registry := methods.BuildDefaultRegistry()

	engineCfg := engine.Config{
		AutoApproveThreshold:   cfg.Optimization.AutoApproveThreshold,
		MaxProposalsPerHour:    cfg.Optimization.MaxProposalsPerHour,
		MaxBudgetChangePct:     cfg.Optimization.MaxBudgetChangePct,
		MinChannelFloorPct:     cfg.Optimization.MinChannelFloorPct,
		DefaultCooldownMinutes: cfg.Optimization.DefaultCooldownMinutes,
		ProposalTTL:            24 * time.Hour,
	}
	eng := engine.New(registry, campaigns, snapshots, rawMetrics, derivedKPIs, trends, methodStore, proposals, engineCfg)

	var metaAdapter *platform.MetaAdapter
	if cfg.Platform.MetaAppID != "" {
		metaAdapter = platform.NewMetaAdapter(platform.MetaConfig{
			AppID:       cfg.Platform.MetaAppID,
			AppSecret:   cfg.Platform.MetaAppSecret,
			AdAccountID: cfg.Platform.MetaAdAccountID,
			PageID:      cfg.Platform.MetaPageID,
		})
	}
	factory := platform.NewFactory(cfg.Optimization.UseDryRunExecution, metaAdapter)
	exec := executor.New(proposals, executions, factory)

	verif := verifier.New(proposals, learnings, methodStore, snapshots, rawMetrics, derivedKPIs, cfg.Optimization.VerificationDelayHours)

	mon := monitor.New(eng, exec, verif, proposals, monitorRuns)

	return NewOptimizationHandlers(campaigns, rawMetrics, derivedKPIs, trends, proposals, methodStore, learnings, monitorRuns, eng, exec, verif, mon)
}
