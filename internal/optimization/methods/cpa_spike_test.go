package methods

import (
	"testing"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

func TestCPASpike_CheckPreconditions(t *testing.T) {
	m := NewCPASpike()

	ok, _ := m.CheckPreconditions(MethodContext{})
	if ok {
		t.Error("expected preconditions to fail with no channel data")
	}

	ctx := MethodContext{
		ChannelData: []ChannelData{{Channel: "meta"}},
		KPIs:        map[domain.KPIName]float64{domain.KPICPA: 25},
	}
	ok, _ = m.CheckPreconditions(ctx)
	if !ok {
		t.Error("expected preconditions to pass with channel data and campaign CPA")
	}
}

func TestCPASpike_Evaluate_FiresOnSpike(t *testing.T) {
	m := NewCPASpike()
	ctx := MethodContext{
		KPIs: map[domain.KPIName]float64{domain.KPICPA: 20},
		ChannelData: []ChannelData{
			{
				Channel: "meta",
				KPIs:    map[domain.KPIName]float64{domain.KPICPA: 30},
				Totals:  ChannelTotals{Spend: 500},
			},
		},
		Trends: []TrendSummary{
			{Channel: "meta", KPIName: domain.KPICPA, PreviousValue: 20},
		},
		CurrentAllocations: map[string]float64{"meta": 500},
	}

	eval := m.Evaluate(ctx)
	if eval == nil {
		t.Fatal("expected method to fire on a 50% CPA spike")
	}
	if eval.ActionType != domain.ActionBudgetReallocation {
		t.Errorf("expected budget_reallocation action, got %s", eval.ActionType)
	}
	reductions, ok := eval.ActionPayload["reductions"].(map[string]float64)
	if !ok || reductions["meta"] <= 0 {
		t.Errorf("expected a positive reduction for meta, got %+v", eval.ActionPayload["reductions"])
	}
}

func TestCPASpike_Evaluate_IgnoresLowSpendChannels(t *testing.T) {
	m := NewCPASpike()
	ctx := MethodContext{
		KPIs: map[domain.KPIName]float64{domain.KPICPA: 20},
		ChannelData: []ChannelData{
			{
				Channel: "meta",
				KPIs:    map[domain.KPIName]float64{domain.KPICPA: 40},
				Totals:  ChannelTotals{Spend: 10}, // below MinChannelSpend default of 100
			},
		},
		CurrentAllocations: map[string]float64{"meta": 500},
	}

	eval := m.Evaluate(ctx)
	if eval != nil {
		t.Fatalf("expected no fire for low-spend channel, got %+v", eval)
	}
}

func TestCPASpike_Evaluate_NoFireWithoutSpike(t *testing.T) {
	m := NewCPASpike()
	ctx := MethodContext{
		KPIs: map[domain.KPIName]float64{domain.KPICPA: 20},
		ChannelData: []ChannelData{
			{
				Channel: "meta",
				KPIs:    map[domain.KPIName]float64{domain.KPICPA: 21},
				Totals:  ChannelTotals{Spend: 500},
			},
		},
		Trends:             []TrendSummary{{Channel: "meta", KPIName: domain.KPICPA, PreviousValue: 20}},
		CurrentAllocations: map[string]float64{"meta": 500},
	}

	eval := m.Evaluate(ctx)
	if eval != nil {
		t.Fatalf("expected no fire for a 5%% CPA increase, got %+v", eval)
	}
}
