// Package engine implements the Decision Engine: the 8-step pipeline that
// turns channel snapshots into guardrail-passed, confidence-routed
// optimization proposals.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/guardrails"
	"github.com/ignite/campaign-optimizer/internal/optimization/methods"
	"github.com/ignite/campaign-optimizer/internal/optimization/metrics"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
	"github.com/ignite/campaign-optimizer/internal/pkg/logger"
)

// Config carries the tunables every guardrail/routing step reads. Field
// names mirror the OPTIMIZATION_* environment variables.
type Config struct {
	AutoApproveThreshold    float64
	MaxProposalsPerHour     int
	MaxBudgetChangePct      float64
	MinChannelFloorPct      float64
	DefaultCooldownMinutes  int
	ProposalTTL             time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		AutoApproveThreshold:   0.85,
		MaxProposalsPerHour:    3,
		MaxBudgetChangePct:     0.20,
		MinChannelFloorPct:     0.05,
		DefaultCooldownMinutes: 60,
		ProposalTTL:            24 * time.Hour,
	}
}

// Result is the outcome of a single engine run.
type Result struct {
	Success                bool     `json:"success"`
	CampaignID             string   `json:"campaign_id"`
	ProposalsCreated       int      `json:"proposals_created"`
	ProposalsAutoApproved  int      `json:"proposals_auto_approved"`
	ProposalsQueued        int      `json:"proposals_queued"`
	GuardrailRejections    int      `json:"guardrail_rejections"`
	MethodEvaluations      int      `json:"method_evaluations"`
	Errors                 []string `json:"errors,omitempty"`
	Message                string   `json:"message,omitempty"`
}

// Engine runs the full pipeline for a single campaign.
type Engine struct {
	Registry    *methods.Registry
	Campaigns   store.CampaignStore
	Snapshots   store.SnapshotStore
	RawMetrics  store.RawMetricStore
	Methods     store.MethodStore
	Proposals   store.ProposalStore

	Collector *metrics.Collector
	KPIs      *metrics.Calculator
	Trends    *metrics.Analyzer

	Config Config
}

// New wires an Engine from its store dependencies and the metrics pipeline
// stages (built from the same stores, so callers need not wire them twice).
func New(registry *methods.Registry, campaigns store.CampaignStore, snapshots store.SnapshotStore, rawMetrics store.RawMetricStore, derivedKPIs store.DerivedKPIStore, trends store.TrendIndicatorStore, methodStore store.MethodStore, proposals store.ProposalStore, cfg Config) *Engine {
	return &Engine{
		Registry:   registry,
		Campaigns:  campaigns,
		Snapshots:  snapshots,
		RawMetrics: rawMetrics,
		Methods:    methodStore,
		Proposals:  proposals,
		Collector:  metrics.NewCollector(snapshots, rawMetrics),
		KPIs:       metrics.NewCalculator(rawMetrics, derivedKPIs),
		Trends:     metrics.NewAnalyzer(derivedKPIs, trends),
		Config:     cfg,
	}
}

// Run executes the full 8-step pipeline for campaignID.
func (e *Engine) Run(ctx context.Context, campaignID string) *Result {
	result := &Result{CampaignID: campaignID}

	// Step 1: preconditions.
	campaign, err := e.Campaigns.Get(ctx, campaignID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("campaign %s not found", campaignID))
		return result
	}

	snapshotCount, err := e.Snapshots.Count(ctx, campaignID)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if snapshotCount == 0 {
		result.Errors = append(result.Errors, "No channel snapshots available for this campaign")
		return result
	}

	// Step 2: collect & derive.
	var zeroWindow store.Window
	rawMetrics, err := e.Collector.Collect(ctx, campaignID, zeroWindow)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	kpiRows, err := e.KPIs.Compute(ctx, campaignID, rawMetrics, zeroWindow)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	trendRows, err := e.Trends.Analyze(ctx, campaignID, 0)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	mctx := e.buildContext(campaign, kpiRows, rawMetrics, trendRows)

	// Step 3: evaluate.
	evaluations, methodErrs := e.Registry.EvaluateAll(mctx)
	for _, me := range methodErrs {
		logger.Warn("engine: method evaluation failed", "campaign_id", campaignID, "error", me.Error())
		result.Errors = append(result.Errors, me.Error())
	}
	result.MethodEvaluations = len(evaluations)

	if len(evaluations) == 0 {
		result.Success = true
		result.Message = "No optimizations triggered"
		return result
	}

	// Step 4: guardrail filter.
	now := time.Now().UTC()
	recentTimes, err := e.Proposals.RecentCreatedAt(ctx, campaignID, now.Add(-time.Hour))
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	type passed struct {
		eval   methods.MethodEvaluation
		checks []guardrails.CheckResult
	}
	var passing []passed

	for _, evalu := range evaluations {
		var checks []guardrails.CheckResult

		checks = append(checks, guardrails.RateLimit(recentTimes, e.Config.MaxProposalsPerHour))

		lastFired, err := e.Proposals.LastFiredAt(ctx, campaignID, string(evalu.ActionType))
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		checks = append(checks, guardrails.Cooldown(string(evalu.ActionType), lastFired, e.Config.DefaultCooldownMinutes))

		if evalu.ActionType == domain.ActionBudgetReallocation {
			proposed := allocationsFromPayload(evalu.ActionPayload)
			checks = append(checks, guardrails.BudgetChangeLimit(mctx.CurrentAllocations, proposed, e.Config.MaxBudgetChangePct))
			checks = append(checks, guardrails.MinimumChannelFloor(proposed, e.Config.MinChannelFloorPct))
		}

		allPassed := true
		for _, c := range checks {
			if !c.Passed {
				allPassed = false
				break
			}
		}

		if allPassed {
			passing = append(passing, passed{eval: evalu, checks: checks})
		} else {
			result.GuardrailRejections++
		}
	}

	// Step 5: persist.
	var proposals []*domain.OptimizationProposal
	for _, p := range passing {
		methodRow, err := e.ensureMethodRow(ctx, p.eval)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		checksJSON := make([]map[string]any, len(p.checks))
		for i, c := range p.checks {
			checksJSON[i] = map[string]any{
				"rule_name": c.RuleName,
				"passed":    c.Passed,
				"message":   c.Message,
			}
		}

		proposal := &domain.OptimizationProposal{
			ID:              uuid.NewString(),
			CampaignID:      campaignID,
			MethodID:        methodRow.ID,
			Status:          domain.ProposalPending,
			Confidence:      p.eval.Confidence,
			Priority:        p.eval.Priority,
			ActionType:      p.eval.ActionType,
			ActionPayload:   p.eval.ActionPayload,
			Reasoning:       p.eval.Reasoning,
			TriggerData:     p.eval.TriggerData,
			GuardrailChecks: map[string]any{"checks": checksJSON},
			ExpiresAt:       now.Add(e.Config.ProposalTTL),
			CreatedAt:       now,
		}
		if _, err := e.Proposals.Create(ctx, proposal); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		proposals = append(proposals, proposal)
	}
	result.ProposalsCreated = len(proposals)

	// Step 6: confidence calibration.
	for _, p := range proposals {
		p.Confidence = adjustConfidence(p.Confidence, snapshotCount, len(rawMetrics))
	}

	// Step 7: routing.
	for _, p := range proposals {
		if p.Confidence >= e.Config.AutoApproveThreshold {
			p.Status = domain.ProposalAutoApproved
			approvedBy := "engine"
			p.ApprovedBy = &approvedBy
			approvedAt := now
			p.ApprovedAt = &approvedAt
			result.ProposalsAutoApproved++
		} else {
			result.ProposalsQueued++
		}
	}

	// Step 8: commit.
	for _, p := range proposals {
		if err := e.Proposals.Update(ctx, p); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.Success = true
	result.Message = fmt.Sprintf(
		"Created %d proposal(s): %d auto-approved, %d queued",
		result.ProposalsCreated, result.ProposalsAutoApproved, result.ProposalsQueued,
	)
	logger.Info("engine: run complete",
		"campaign_id", campaignID,
		"proposals_created", result.ProposalsCreated,
		"auto_approved", result.ProposalsAutoApproved,
		"guardrail_rejections", result.GuardrailRejections,
	)
	return result
}

func (e *Engine) buildContext(campaign *domain.Campaign, kpiRows []domain.DerivedKPI, rawMetrics []domain.RawMetric, trendRows []domain.TrendIndicator) methods.MethodContext {
	campaignKPIs := map[domain.KPIName]float64{}
	channelKPIs := map[string]map[domain.KPIName]float64{}
	for _, k := range kpiRows {
		if k.Channel == nil {
			campaignKPIs[k.KPIName] = k.KPIValue
		} else {
			if channelKPIs[*k.Channel] == nil {
				channelKPIs[*k.Channel] = map[domain.KPIName]float64{}
			}
			channelKPIs[*k.Channel][k.KPIName] = k.KPIValue
		}
	}

	channelTotals := map[string]methods.ChannelTotals{}
	latestSpend := map[string]float64{}
	latestWindowEnd := map[string]time.Time{}
	for _, rm := range rawMetrics {
		t := channelTotals[rm.Channel]
		switch rm.MetricName {
		case domain.MetricSpend:
			t.Spend += rm.MetricValue
		case domain.MetricImpressions:
			t.Impressions += rm.MetricValue
		case domain.MetricClicks:
			t.Clicks += rm.MetricValue
		case domain.MetricConversions:
			t.Conversions += rm.MetricValue
		case domain.MetricRevenue:
			t.Revenue += rm.MetricValue
		}
		channelTotals[rm.Channel] = t

		if rm.MetricName == domain.MetricSpend && rm.WindowEnd != nil {
			if rm.WindowEnd.After(latestWindowEnd[rm.Channel]) {
				latestWindowEnd[rm.Channel] = *rm.WindowEnd
				latestSpend[rm.Channel] = rm.MetricValue
			}
		}
	}

	var channelData []methods.ChannelData
	currentAllocations := map[string]float64{}
	for channel, kpis := range channelKPIs {
		channelData = append(channelData, methods.ChannelData{
			Channel: channel,
			KPIs:    kpis,
			Totals:  channelTotals[channel],
		})
		currentAllocations[channel] = latestSpend[channel]
	}

	var targetCAC *float64
	if campaign.TargetCAC != nil {
		v := campaign.TargetCAC.Float64()
		targetCAC = &v
	}

	trends := make([]methods.TrendSummary, 0, len(trendRows))
	for _, t := range trendRows {
		channel := ""
		if t.Channel != nil {
			channel = *t.Channel
		}
		trends = append(trends, methods.TrendSummary{
			Channel:       channel,
			KPIName:       t.KPIName,
			Direction:     t.Direction,
			Magnitude:     t.Magnitude,
			CurrentValue:  t.CurrentValue,
			PreviousValue: t.PreviousValue,
			PeriodDays:    t.PeriodDays,
			Confidence:    t.Confidence,
		})
	}

	return methods.MethodContext{
		CampaignID:         campaign.ID,
		KPIs:               campaignKPIs,
		Trends:             trends,
		ChannelData:        channelData,
		CurrentAllocations: currentAllocations,
		CampaignConfig: methods.CampaignConfig{
			Objective: campaign.Objective,
			TargetCAC: targetCAC,
		},
	}
}

func (e *Engine) ensureMethodRow(ctx context.Context, eval methods.MethodEvaluation) (*domain.OptimizationMethod, error) {
	name := string(eval.ActionType)
	row, err := e.Methods.GetByName(ctx, name)
	if err == nil {
		return row, nil
	}
	if err != store.ErrMethodNotFound {
		return nil, err
	}

	row = &domain.OptimizationMethod{
		ID:                uuid.NewString(),
		Name:              name,
		Description:       fmt.Sprintf("Auto-registered method for %s", name),
		MethodType:        domain.MethodReactive,
		TriggerConditions: map[string]any{},
		Config:            map[string]any{},
		IsActive:          true,
		CooldownMinutes:   e.Config.DefaultCooldownMinutes,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	id, err := e.Methods.Create(ctx, row)
	if err != nil {
		return nil, err
	}
	row.ID = id
	return row, nil
}

// adjustConfidence lowers confidence when the underlying data is sparse.
func adjustConfidence(confidence float64, snapshotCount, rawMetricCount int) float64 {
	if snapshotCount < 5 {
		confidence *= 0.8
	} else if snapshotCount < 10 {
		confidence *= 0.9
	}
	if rawMetricCount < 10 {
		confidence *= 0.85
	}
	return domain.Round4(domain.Clamp01(confidence))
}

// allocationsFromPayload extracts a channel→amount allocation map from a
// method's action payload. The payload is produced in-process by a Method
// (map[string]float64) but may also arrive as map[string]any after a
// JSONB round-trip, so both shapes are accepted.
func allocationsFromPayload(payload map[string]any) map[string]float64 {
	raw, ok := payload["new_allocations"]
	if !ok {
		raw, ok = payload["reductions"]
	}
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case map[string]float64:
		return v
	case map[string]any:
		out := make(map[string]float64, len(v))
		for k, val := range v {
			if f, ok := val.(float64); ok {
				out[k] = f
			}
		}
		return out
	default:
		return nil
	}
}
