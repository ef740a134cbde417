package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/methods"
	"github.com/ignite/campaign-optimizer/internal/optimization/store/storetest"
)

func newTestEngine(mem *storetest.Mem, registry *methods.Registry, cfg Config) *Engine {
	return New(
		registry,
		mem.CampaignStore(),
		mem.SnapshotStore(),
		mem.RawMetricStore(),
		mem.DerivedKPIStore(),
		mem.TrendStore(),
		mem.MethodStore(),
		mem.ProposalStore(),
		cfg,
	)
}

func seedCampaign(mem *storetest.Mem, id string) {
	mem.Campaigns[id] = domain.Campaign{
		ID:        id,
		Name:      "Spring Launch",
		Objective: domain.ObjectivePaidConversions,
		CreatedAt: time.Now().UTC(),
	}
}

func seedSnapshot(mem *storetest.Mem, campaignID, channel string, daysAgo int, spend float64, impressions, clicks, conversions int64, revenue float64) {
	now := time.Now().UTC()
	mem.Snapshots = append(mem.Snapshots, domain.ChannelSnapshot{
		CampaignID:  campaignID,
		Channel:     channel,
		WindowStart: now.AddDate(0, 0, -daysAgo-1),
		WindowEnd:   now.AddDate(0, 0, -daysAgo),
		Spend:       domain.NewMoney(spend),
		Impressions: impressions,
		Clicks:      clicks,
		Conversions: conversions,
		Revenue:     domain.NewMoney(revenue),
		CreatedAt:   now,
	})
}

func seedPreviousKPI(mem *storetest.Mem, campaignID, channel string, name domain.KPIName, value float64) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -9)
	end := start.Add(12 * time.Hour)
	ch := channel
	mem.DerivedKPIs = append(mem.DerivedKPIs, domain.DerivedKPI{
		CampaignID:  campaignID,
		Channel:     &ch,
		KPIName:     name,
		KPIValue:    value,
		WindowStart: &start,
		WindowEnd:   &end,
		ComputedAt:  now,
	})
}

func TestEngine_Run_MissingCampaign(t *testing.T) {
	mem := storetest.NewMem()
	e := newTestEngine(mem, methods.BuildDefaultRegistry(), DefaultConfig())

	result := e.Run(context.Background(), "missing")
	if result.Success {
		t.Fatal("expected failure for a missing campaign")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "not found") {
		t.Errorf("errors = %v, want campaign-not-found", result.Errors)
	}
}

func TestEngine_Run_NoSnapshots(t *testing.T) {
	mem := storetest.NewMem()
	seedCampaign(mem, "c1")
	e := newTestEngine(mem, methods.BuildDefaultRegistry(), DefaultConfig())

	result := e.Run(context.Background(), "c1")
	if result.Success {
		t.Fatal("expected failure without snapshots")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "No channel snapshots") {
		t.Errorf("errors = %v, want no-channel-snapshots", result.Errors)
	}
}

func TestEngine_Run_NoEvaluations(t *testing.T) {
	mem := storetest.NewMem()
	seedCampaign(mem, "c1")
	seedSnapshot(mem, "c1", "meta", 1, 1000, 100000, 1000, 20, 1000)

	e := newTestEngine(mem, methods.NewRegistry(), DefaultConfig())
	result := e.Run(context.Background(), "c1")
	if !result.Success {
		t.Fatalf("expected success with empty registry, errors: %v", result.Errors)
	}
	if result.ProposalsCreated != 0 || result.MethodEvaluations != 0 {
		t.Errorf("expected nothing triggered, got %+v", result)
	}
	if len(mem.RawMetrics) == 0 || len(mem.DerivedKPIs) == 0 {
		t.Error("expected collect/derive stages to persist even when no method fires")
	}
}

// Two channels with a sharp efficiency gap and a seeded CPA baseline: the
// CPA-spike and budget-reallocation methods both fire, survive guardrails
// (the change cap is loosened to admit the 80% reduction), and land as
// pending proposals after sparse-data calibration pulls their confidence
// below the auto-approve threshold.
func TestEngine_Run_CreatesProposals(t *testing.T) {
	mem := storetest.NewMem()
	seedCampaign(mem, "c1")
	seedSnapshot(mem, "c1", "meta", 1, 3000, 300000, 3000, 60, 3000)
	seedSnapshot(mem, "c1", "google", 1, 2000, 200000, 2000, 133, 6000)
	seedPreviousKPI(mem, "c1", "meta", domain.KPICPA, 25)

	cfg := DefaultConfig()
	cfg.MaxBudgetChangePct = 0.90
	e := newTestEngine(mem, methods.BuildDefaultRegistry(), cfg)

	result := e.Run(context.Background(), "c1")
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.MethodEvaluations != 2 {
		t.Errorf("method_evaluations = %d, want 2 (cpa_spike + budget_reallocation)", result.MethodEvaluations)
	}
	if result.ProposalsCreated != 2 {
		t.Fatalf("proposals_created = %d, want 2", result.ProposalsCreated)
	}
	if result.GuardrailRejections != 0 {
		t.Errorf("guardrail_rejections = %d, want 0", result.GuardrailRejections)
	}
	if result.ProposalsQueued != 2 || result.ProposalsAutoApproved != 0 {
		t.Errorf("queued=%d auto=%d, want 2/0 after sparse-data calibration", result.ProposalsQueued, result.ProposalsAutoApproved)
	}

	var spike *domain.OptimizationProposal
	for _, p := range mem.Proposals {
		if p.ActionType != domain.ActionBudgetReallocation {
			t.Errorf("action_type = %s, want budget_reallocation", p.ActionType)
		}
		if p.Status != domain.ProposalPending {
			t.Errorf("status = %s, want pending", p.Status)
		}
		checks, _ := p.GuardrailChecks["checks"].([]map[string]any)
		if len(checks) != 4 {
			t.Errorf("expected 4 guardrail checks recorded, got %d", len(checks))
		}
		for _, c := range checks {
			if passed, _ := c["passed"].(bool); !passed {
				t.Errorf("persisted proposal carries a failing guardrail check: %v", c)
			}
		}
		if p.Priority == 2 {
			spike = p
		}
		ttl := time.Until(p.ExpiresAt)
		if ttl < 23*time.Hour || ttl > 25*time.Hour {
			t.Errorf("expires_at %.1fh out, want ~24h", ttl.Hours())
		}
	}
	if spike == nil {
		t.Fatal("missing the priority-2 CPA-spike proposal")
	}

	reductions, ok := spike.ActionPayload["reductions"].(map[string]float64)
	if !ok {
		t.Fatalf("reductions payload missing: %+v", spike.ActionPayload)
	}
	// 20% of the latest meta spend of $3000.
	if reductions["meta"] != 600 {
		t.Errorf("reductions[meta] = %v, want 600", reductions["meta"])
	}

	// Method identity rows are materialized lazily, keyed by action type.
	found := false
	for _, m := range mem.Methods {
		if m.Name == string(domain.ActionBudgetReallocation) {
			found = true
		}
	}
	if !found {
		t.Error("expected a lazily-created optimization method row")
	}
}

// With the default 20% change cap, both the CPA-spike cut (80% reduction on
// meta) and the rebalance (25% boost on google) are over-large moves.
func TestEngine_Run_GuardrailBlocksLargeMoves(t *testing.T) {
	mem := storetest.NewMem()
	seedCampaign(mem, "c1")
	seedSnapshot(mem, "c1", "meta", 1, 3000, 300000, 3000, 60, 3000)
	seedSnapshot(mem, "c1", "google", 1, 2000, 200000, 2000, 133, 6000)
	seedPreviousKPI(mem, "c1", "meta", domain.KPICPA, 25)

	e := newTestEngine(mem, methods.BuildDefaultRegistry(), DefaultConfig())
	result := e.Run(context.Background(), "c1")
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.GuardrailRejections != 2 {
		t.Errorf("guardrail_rejections = %d, want 2", result.GuardrailRejections)
	}
	if result.ProposalsCreated != 0 {
		t.Errorf("proposals_created = %d, want 0", result.ProposalsCreated)
	}
	if len(mem.Proposals) != 0 {
		t.Errorf("expected no proposals persisted, got %d", len(mem.Proposals))
	}
}

// Ten snapshots of dense data: no sparsity calibration applies, the
// efficiency-spread confidence of 0.90 clears the 0.85 threshold, and the
// proposal auto-approves. A second back-to-back run creates nothing — the
// cooldown guardrail blocks the same action type.
func TestEngine_Run_AutoApprovesAndCoolsDown(t *testing.T) {
	mem := storetest.NewMem()
	seedCampaign(mem, "c1")
	for day := 1; day <= 5; day++ {
		seedSnapshot(mem, "c1", "meta", day, 600, 60000, 600, 12, 600)
		seedSnapshot(mem, "c1", "google", day, 400, 40000, 400, 27, 1200)
	}

	cfg := DefaultConfig()
	cfg.MaxBudgetChangePct = 0.90
	e := newTestEngine(mem, methods.BuildDefaultRegistry(), cfg)

	result := e.Run(context.Background(), "c1")
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.ProposalsCreated != 1 || result.ProposalsAutoApproved != 1 {
		t.Fatalf("created=%d auto=%d, want 1/1", result.ProposalsCreated, result.ProposalsAutoApproved)
	}

	for _, p := range mem.Proposals {
		if p.Status != domain.ProposalAutoApproved {
			t.Errorf("status = %s, want auto_approved", p.Status)
		}
		if p.Confidence < cfg.AutoApproveThreshold {
			t.Errorf("confidence %v below auto-approve threshold", p.Confidence)
		}
		if p.ApprovedBy == nil || *p.ApprovedBy != "engine" {
			t.Errorf("approved_by = %v, want engine", p.ApprovedBy)
		}
		if p.ApprovedAt == nil {
			t.Error("approved_at not set")
		}
	}

	second := e.Run(context.Background(), "c1")
	if !second.Success {
		t.Fatalf("second run failed: %v", second.Errors)
	}
	if second.ProposalsCreated != 0 {
		t.Errorf("second run created %d proposals, want 0 (cooldown)", second.ProposalsCreated)
	}
	if second.GuardrailRejections == 0 {
		t.Error("expected the cooldown guardrail to reject the repeat evaluation")
	}
}

func TestAdjustConfidence(t *testing.T) {
	cases := []struct {
		name          string
		confidence    float64
		snapshots     int
		rawMetrics    int
		want          float64
	}{
		{"dense data untouched", 0.90, 12, 60, 0.90},
		{"very sparse snapshots", 0.90, 3, 15, 0.72},
		{"somewhat sparse snapshots", 0.90, 7, 35, 0.81},
		{"both factors compound", 0.90, 3, 5, 0.612},
		{"clamped to one", 1.5, 12, 60, 1.0},
	}
	for _, c := range cases {
		if got := adjustConfidence(c.confidence, c.snapshots, c.rawMetrics); got != c.want {
			t.Errorf("%s: adjustConfidence(%v, %d, %d) = %v, want %v", c.name, c.confidence, c.snapshots, c.rawMetrics, got, c.want)
		}
	}
}

func TestAllocationsFromPayload(t *testing.T) {
	direct := allocationsFromPayload(map[string]any{"new_allocations": map[string]float64{"meta": 2500}})
	if direct["meta"] != 2500 {
		t.Errorf("typed map not passed through: %v", direct)
	}
	roundTripped := allocationsFromPayload(map[string]any{"reductions": map[string]any{"meta": 600.0}})
	if roundTripped["meta"] != 600 {
		t.Errorf("JSON-shaped map not converted: %v", roundTripped)
	}
	if got := allocationsFromPayload(map[string]any{"channels": []string{"meta"}}); got != nil {
		t.Errorf("expected nil for a payload without allocations, got %v", got)
	}
}
