// Package verifier implements the Outcome Verifier: compares a proposal's
// predicted impact against KPIs measured after the verification window
// elapses, scores the accuracy, and feeds the running method-stats average
// that future confidence calibration reads from.
package verifier

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/metrics"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
	"github.com/ignite/campaign-optimizer/internal/pkg/logger"
)

const defaultVerificationWindowHours = 24

// Result is the outcome of verifying a single executed proposal. A pending
// (too-soon) outcome is reported via Pending, not Error, so callers can
// distinguish "not ready yet" from a real failure.
type Result struct {
	Success       bool           `json:"success"`
	ProposalID    string         `json:"proposal_id"`
	LearningID    string         `json:"learning_id,omitempty"`
	AccuracyScore *float64       `json:"accuracy_score,omitempty"`
	Pending       bool           `json:"pending,omitempty"`
	Error         string         `json:"error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// BatchResult aggregates verification across every eligible proposal in a campaign.
type BatchResult struct {
	Total    int      `json:"total"`
	Verified int      `json:"verified"`
	Pending  int      `json:"pending"`
	Failed   int      `json:"failed"`
	Records  []Result `json:"records"`
}

// Verifier runs the verification pass against the stores.
type Verifier struct {
	Proposals store.ProposalStore
	Learnings store.LearningStore
	Methods   store.MethodStore
	Snapshots store.SnapshotStore

	Collector *metrics.Collector
	KPIs      *metrics.Calculator

	VerificationWindowHours int
}

// New wires a Verifier from its store dependencies.
func New(proposals store.ProposalStore, learnings store.LearningStore, methodStore store.MethodStore, snapshots store.SnapshotStore, rawMetrics store.RawMetricStore, derivedKPIs store.DerivedKPIStore, verificationWindowHours int) *Verifier {
	if verificationWindowHours <= 0 {
		verificationWindowHours = defaultVerificationWindowHours
	}
	return &Verifier{
		Proposals:               proposals,
		Learnings:               learnings,
		Methods:                 methodStore,
		Snapshots:               snapshots,
		Collector:               metrics.NewCollector(snapshots, rawMetrics),
		KPIs:                    metrics.NewCalculator(rawMetrics, derivedKPIs),
		VerificationWindowHours: verificationWindowHours,
	}
}

// VerifyProposal verifies a single executed proposal, creating a durable
// learning record the first time it succeeds. Repeat calls after a verified
// record exists return that record's result (idempotent).
func (v *Verifier) VerifyProposal(ctx context.Context, proposalID string) Result {
	proposal, err := v.Proposals.Get(ctx, proposalID)
	if err != nil {
		return Result{Success: false, ProposalID: proposalID, Error: "Proposal not found"}
	}

	if proposal.Status != domain.ProposalExecuted || proposal.ExecutedAt == nil {
		return Result{
			Success:    false,
			ProposalID: proposalID,
			Error:      fmt.Sprintf("Proposal must be executed to verify (status: %s)", proposal.Status),
		}
	}

	now := time.Now().UTC()
	window := time.Duration(v.VerificationWindowHours) * time.Hour
	elapsed := now.Sub(*proposal.ExecutedAt)
	if elapsed < window {
		remaining := window - elapsed
		return Result{
			Success:    false,
			ProposalID: proposalID,
			Pending:    true,
			Details: map[string]any{
				"status":                 "pending",
				"message":                fmt.Sprintf("Verification window not reached. %s remaining.", remaining),
				"executed_at":            proposal.ExecutedAt.Format(time.RFC3339),
				"earliest_verification":  proposal.ExecutedAt.Add(window).Format(time.RFC3339),
			},
		}
	}

	if existing, err := v.Learnings.GetVerified(ctx, proposalID); err == nil && existing != nil {
		return Result{
			Success:       true,
			ProposalID:    proposalID,
			LearningID:    existing.ID,
			AccuracyScore: existing.AccuracyScore,
			Details:       map[string]any{"idempotent": true, "already_verified": true},
		}
	}

	predicted := extractPredictedImpact(proposal)
	actual, err := v.collectActualImpact(ctx, proposal.CampaignID)
	if err != nil {
		return Result{Success: false, ProposalID: proposalID, Error: err.Error()}
	}

	accuracy := computeAccuracyScore(predicted, actual)

	learning := &domain.OptimizationLearning{
		ID:                 uuid.NewString(),
		CampaignID:         proposal.CampaignID,
		ProposalID:         proposal.ID,
		MethodID:           proposal.MethodID,
		PredictedImpact:    predicted,
		ActualImpact:       actual,
		AccuracyScore:      &accuracy,
		VerificationStatus: domain.VerificationVerified,
		VerifiedAt:         &now,
		Details: map[string]any{
			"action_type":               string(proposal.ActionType),
			"confidence":                proposal.Confidence,
			"verification_window_hours": v.VerificationWindowHours,
		},
		CreatedAt: now,
	}
	learningID, err := v.Learnings.Create(ctx, learning)
	if err != nil {
		return Result{Success: false, ProposalID: proposalID, Error: err.Error()}
	}
	learning.ID = learningID

	if method, err := v.Methods.Get(ctx, proposal.MethodID); err == nil && method != nil {
		v.updateMethodStats(ctx, method, accuracy)
	}

	return Result{
		Success:       true,
		ProposalID:    proposalID,
		LearningID:    learningID,
		AccuracyScore: &accuracy,
		Details: map[string]any{
			"predicted_impact": predicted,
			"actual_impact":    actual,
		},
	}
}

// VerifyBatch verifies every executed proposal for a campaign whose
// execution falls within maxAgeHours.
func (v *Verifier) VerifyBatch(ctx context.Context, campaignID string, maxAgeHours int) (BatchResult, error) {
	if maxAgeHours <= 0 {
		maxAgeHours = 48
	}
	cutoff := time.Now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour)

	executed, err := v.Proposals.ListExecutedSince(ctx, campaignID, cutoff)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Total: len(executed)}
	for _, p := range executed {
		vr := v.VerifyProposal(ctx, p.ID)
		result.Records = append(result.Records, vr)
		switch {
		case vr.Pending:
			result.Pending++
		case vr.Success:
			result.Verified++
		default:
			result.Failed++
		}
	}
	return result, nil
}

func extractPredictedImpact(proposal *domain.OptimizationProposal) map[string]any {
	payload := proposal.ActionPayload
	if payload == nil {
		payload = map[string]any{}
	}
	predicted := map[string]any{"action_type": string(proposal.ActionType)}

	switch proposal.ActionType {
	case domain.ActionBudgetReallocation:
		predicted["new_allocations"] = payload["new_allocations"]
		predicted["reductions"] = payload["reductions"]
		predicted["expected_improvement"] = "efficiency"
	case domain.ActionCreativeRefresh:
		predicted["channels"] = payload["channels"]
		predicted["fatigued_channels"] = payload["fatigued_channels"]
		predicted["expected_improvement"] = "ctr"
	default:
		predicted["payload"] = payload
	}
	return predicted
}

func (v *Verifier) collectActualImpact(ctx context.Context, campaignID string) (map[string]any, error) {
	snapshotCount, err := v.Snapshots.Count(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if snapshotCount == 0 {
		return map[string]any{"error": "no_snapshots", "message": "No snapshot data available"}, nil
	}

	var zeroWindow store.Window
	rawMetrics, err := v.Collector.Collect(ctx, campaignID, zeroWindow)
	if err != nil {
		return nil, err
	}
	kpiRows, err := v.KPIs.Compute(ctx, campaignID, rawMetrics, zeroWindow)
	if err != nil {
		return nil, err
	}

	campaignKPIs := map[string]float64{}
	channelKPIs := map[string]map[string]float64{}
	for _, k := range kpiRows {
		if k.Channel == nil {
			campaignKPIs[string(k.KPIName)] = k.KPIValue
		} else {
			if channelKPIs[*k.Channel] == nil {
				channelKPIs[*k.Channel] = map[string]float64{}
			}
			channelKPIs[*k.Channel][string(k.KPIName)] = k.KPIValue
		}
	}

	return map[string]any{
		"snapshot_count":    snapshotCount,
		"raw_metrics_count": len(rawMetrics),
		"campaign_kpis":     campaignKPIs,
		"channel_kpis":      channelKPIs,
	}, nil
}

// computeAccuracyScore compares predicted to actual impact. Budget
// reallocations score on post-execution ROAS (falling back to CPA);
// creative refreshes score on CTR. Anything else, or insufficient data,
// gets the neutral 0.5 score.
func computeAccuracyScore(predicted, actual map[string]any) float64 {
	if _, hasErr := actual["error"]; hasErr {
		return 0.5
	}

	campaignKPIs, _ := actual["campaign_kpis"].(map[string]float64)
	actionType, _ := predicted["action_type"].(string)

	switch actionType {
	case string(domain.ActionBudgetReallocation):
		if roas, ok := campaignKPIs["roas"]; ok && roas > 0 {
			return domain.Round4(math.Min(1.0, math.Max(0.0, roas/3.0)))
		}
		if cpa, ok := campaignKPIs["cpa"]; ok && cpa > 0 {
			return domain.Round4(math.Min(1.0, math.Max(0.0, 30.0/math.Max(cpa, 1.0))))
		}
	case string(domain.ActionCreativeRefresh):
		if ctr, ok := campaignKPIs["ctr"]; ok && ctr > 0 {
			return domain.Round4(math.Min(1.0, math.Max(0.0, ctr/0.02)))
		}
	}
	return 0.5
}

func (v *Verifier) updateMethodStats(ctx context.Context, method *domain.OptimizationMethod, accuracy float64) {
	stats := method.Stats
	total := stats.TotalExecutions + 1
	successful := stats.SuccessfulExecutions
	if accuracy >= 0.5 {
		successful++
	}
	newAvg := ((stats.AvgAccuracy * float64(stats.TotalExecutions)) + accuracy) / float64(total)
	now := time.Now().UTC()

	stats.TotalExecutions = total
	stats.SuccessfulExecutions = successful
	stats.AvgAccuracy = domain.Round4(newAvg)
	stats.LastVerifiedAt = &now

	if err := v.Methods.UpdateStats(ctx, method.ID, stats); err != nil {
		logger.Warn("verifier: method stats update failed", "method_id", method.ID, "error", err.Error())
	}
}
