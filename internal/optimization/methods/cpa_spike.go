package methods

import (
	"fmt"
	"math"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

const (
	defaultCPASpikeThreshold    = 0.30
	defaultMinChannelSpend      = 100.0
	defaultBudgetReductionPct   = 0.20
)

// CPASpike is a reactive method that detects per-channel CPA spikes
// relative to their baseline and proposes a budget cut on the affected
// channels.
type CPASpike struct {
	SpikeThreshold    float64
	MinChannelSpend   float64
	BudgetReductionPct float64
}

// NewCPASpike builds the method with its default thresholds.
func NewCPASpike() *CPASpike {
	return &CPASpike{
		SpikeThreshold:     defaultCPASpikeThreshold,
		MinChannelSpend:    defaultMinChannelSpend,
		BudgetReductionPct: defaultBudgetReductionPct,
	}
}

func (m *CPASpike) Name() string                     { return "cpa_spike" }
func (m *CPASpike) Description() string              { return "Detect CPA spikes and reduce budget on affected channels" }
func (m *CPASpike) MethodType() domain.MethodType     { return domain.MethodReactive }

func (m *CPASpike) CheckPreconditions(ctx MethodContext) (bool, string) {
	if len(ctx.ChannelData) == 0 {
		return false, "No channel data available"
	}
	if ctx.KPIs[domain.KPICPA] == 0 {
		return false, "Campaign-level CPA not available"
	}
	return true, ""
}

type cpaAffectedChannel struct {
	Channel     string  `json:"channel"`
	CurrentCPA  float64 `json:"current_cpa"`
	PreviousCPA float64 `json:"previous_cpa"`
	PctChange   float64 `json:"pct_change"`
	Spend       float64 `json:"spend"`
}

func (m *CPASpike) Evaluate(ctx MethodContext) *MethodEvaluation {
	campaignCPA := ctx.KPIs[domain.KPICPA]
	if campaignCPA <= 0 {
		return nil
	}

	var affected []cpaAffectedChannel
	for _, ch := range ctx.ChannelData {
		channelCPA, ok := ch.KPIs[domain.KPICPA]
		if !ok || ch.Totals.Spend < m.MinChannelSpend {
			continue
		}

		previousCPA := m.previousCPA(ctx, ch.Channel)
		if previousCPA <= 0 {
			previousCPA = campaignCPA
		}

		pctChange := (channelCPA - previousCPA) / previousCPA
		if pctChange >= m.SpikeThreshold {
			affected = append(affected, cpaAffectedChannel{
				Channel:     ch.Channel,
				CurrentCPA:  channelCPA,
				PreviousCPA: previousCPA,
				PctChange:   domain.Round4(pctChange),
				Spend:       ch.Totals.Spend,
			})
		}
	}

	if len(affected) == 0 {
		return nil
	}

	reductions := map[string]float64{}
	for _, a := range affected {
		current, ok := ctx.CurrentAllocations[a.Channel]
		if ok && current > 0 {
			reductions[a.Channel] = domain.NewMoney(current).Mul(m.BudgetReductionPct).Float64()
		}
	}
	if len(reductions) == 0 {
		return nil
	}

	maxChange := affected[0].PctChange
	for _, a := range affected[1:] {
		if a.PctChange > maxChange {
			maxChange = a.PctChange
		}
	}
	confidence := domain.Round4(math.Min(0.95, domain.Clamp01(0.6+maxChange)))

	affectedGeneric := make([]map[string]any, len(affected))
	for i, a := range affected {
		affectedGeneric[i] = map[string]any{
			"channel":      a.Channel,
			"current_cpa":  a.CurrentCPA,
			"previous_cpa": a.PreviousCPA,
			"pct_change":   a.PctChange,
			"spend":        a.Spend,
		}
	}

	return &MethodEvaluation{
		ShouldFire: true,
		Confidence: confidence,
		Priority:   2,
		ActionType: domain.ActionBudgetReallocation,
		ActionPayload: map[string]any{
			"reductions":        reductions,
			"affected_channels": affectedGeneric,
			"reduction_pct":     m.BudgetReductionPct,
		},
		Reasoning: fmt.Sprintf(
			"CPA spike detected on %d channel(s). Largest increase: %.0f%%. Proposing %.0f%% budget reduction.",
			len(affected), maxChange*100, m.BudgetReductionPct*100,
		),
		TriggerData: map[string]any{
			"campaign_cpa":      campaignCPA,
			"affected_channels": affectedGeneric,
		},
	}
}

func (m *CPASpike) previousCPA(ctx MethodContext, channel string) float64 {
	for _, t := range ctx.Trends {
		if t.Channel == channel && t.KPIName == domain.KPICPA {
			return t.PreviousValue
		}
	}
	return 0
}
