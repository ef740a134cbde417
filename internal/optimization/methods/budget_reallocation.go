package methods

import (
	"fmt"
	"math"
	"sort"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

const (
	defaultEfficiencySpreadThreshold = 0.20
	defaultMinChannels               = 2
	maxBudgetMovePct                 = 0.10
)

// BudgetReallocation is a proactive method that shifts budget from the
// lowest efficiency_index channels to the highest when the spread between
// them exceeds a threshold.
type BudgetReallocation struct {
	EfficiencySpreadThreshold float64
	MinChannels               int
}

// NewBudgetReallocation builds the method with its default thresholds.
func NewBudgetReallocation() *BudgetReallocation {
	return &BudgetReallocation{
		EfficiencySpreadThreshold: defaultEfficiencySpreadThreshold,
		MinChannels:               defaultMinChannels,
	}
}

func (m *BudgetReallocation) Name() string                 { return "budget_reallocation" }
func (m *BudgetReallocation) Description() string          { return "Shift budget from underperforming to top-performing channels" }
func (m *BudgetReallocation) MethodType() domain.MethodType { return domain.MethodProactive }

func (m *BudgetReallocation) CheckPreconditions(ctx MethodContext) (bool, string) {
	if len(ctx.ChannelData) < m.MinChannels {
		return false, fmt.Sprintf("Need at least %d channels, got %d", m.MinChannels, len(ctx.ChannelData))
	}
	if len(ctx.CurrentAllocations) == 0 {
		return false, "No current budget allocations available"
	}
	return true, ""
}

type scoredChannel struct {
	Channel         string  `json:"channel"`
	EfficiencyIndex float64 `json:"efficiency_index"`
	CAC             float64 `json:"cac,omitempty"`
	ROAS            float64 `json:"roas,omitempty"`
}

func (m *BudgetReallocation) Evaluate(ctx MethodContext) *MethodEvaluation {
	var scored []scoredChannel
	for _, ch := range ctx.ChannelData {
		efficiency, ok := ch.KPIs[domain.KPIEfficiencyIndex]
		if !ok {
			continue
		}
		cac := ch.KPIs[domain.KPICPA]
		scored = append(scored, scoredChannel{
			Channel:         ch.Channel,
			EfficiencyIndex: efficiency,
			CAC:             cac,
			ROAS:            ch.KPIs[domain.KPIROAS],
		})
	}

	if len(scored) < m.MinChannels {
		return nil
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].EfficiencyIndex > scored[j].EfficiencyIndex })
	best := scored[0]
	worst := scored[len(scored)-1]

	spread := best.EfficiencyIndex - worst.EfficiencyIndex
	var relativeSpread float64
	if best.EfficiencyIndex > 0 {
		relativeSpread = spread / best.EfficiencyIndex
	}

	if relativeSpread < m.EfficiencySpreadThreshold {
		return nil
	}

	tierSize := len(scored) / 4
	if tierSize < 1 {
		tierSize = 1
	}
	topTier := scored[:tierSize]
	bottomTier := scored[len(scored)-tierSize:]

	var totalBudget float64
	for _, v := range ctx.CurrentAllocations {
		totalBudget += v
	}
	if totalBudget <= 0 {
		return nil
	}

	moveAmount := domain.RoundRatio(totalBudget * maxBudgetMovePct)
	reductionPerChannel := moveAmount / float64(len(bottomTier))
	increasePerChannel := moveAmount / float64(len(topTier))

	newAllocations := make(map[string]float64, len(ctx.CurrentAllocations))
	for k, v := range ctx.CurrentAllocations {
		newAllocations[k] = v
	}
	for _, ch := range bottomTier {
		current := newAllocations[ch.Channel]
		newAllocations[ch.Channel] = math.Round(math.Max(0, current-reductionPerChannel)*100) / 100
	}
	for _, ch := range topTier {
		current := newAllocations[ch.Channel]
		newAllocations[ch.Channel] = math.Round((current+increasePerChannel)*100) / 100
	}

	confidence := domain.Round4(math.Min(0.90, 0.5+relativeSpread))

	topNames := channelNames(topTier)
	bottomNames := channelNames(bottomTier)

	return &MethodEvaluation{
		ShouldFire: true,
		Confidence: confidence,
		Priority:   5,
		ActionType: domain.ActionBudgetReallocation,
		ActionPayload: map[string]any{
			"new_allocations": newAllocations,
			"top_tier":        topNames,
			"bottom_tier":     bottomNames,
			"move_amount":     moveAmount,
		},
		Reasoning: fmt.Sprintf(
			"Efficiency spread of %.0f%% between best (%s) and worst (%s) channels exceeds %.0f%% threshold. Proposing to shift $%.2f from bottom to top tier.",
			relativeSpread*100, best.Channel, worst.Channel, m.EfficiencySpreadThreshold*100, moveAmount,
		),
		TriggerData: map[string]any{
			"scored_channels": scored,
			"relative_spread": domain.Round4(relativeSpread),
			"best_channel":    best,
			"worst_channel":   worst,
		},
	}
}

func channelNames(channels []scoredChannel) []string {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Channel
	}
	return names
}
