package methods

import (
	"fmt"
	"math"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

const (
	defaultCTRDeclineThreshold = 0.15
	defaultMinImpressions      = 10_000
	defaultFatiguePeriodDays   = 7
)

// CreativeFatigue is an advisory proactive method that flags channels whose
// CTR is declining while impressions remain high, suggesting the audience is
// losing interest in the current creative.
type CreativeFatigue struct {
	CTRDeclineThreshold float64
	MinImpressions      float64
	PeriodDays          int
}

// NewCreativeFatigue builds the method with its default thresholds.
func NewCreativeFatigue() *CreativeFatigue {
	return &CreativeFatigue{
		CTRDeclineThreshold: defaultCTRDeclineThreshold,
		MinImpressions:      defaultMinImpressions,
		PeriodDays:          defaultFatiguePeriodDays,
	}
}

func (m *CreativeFatigue) Name() string        { return "creative_fatigue" }
func (m *CreativeFatigue) Description() string  { return "Detect creative fatigue from declining CTR and flag for creative rotation" }
func (m *CreativeFatigue) MethodType() domain.MethodType { return domain.MethodProactive }

func (m *CreativeFatigue) CheckPreconditions(ctx MethodContext) (bool, string) {
	if len(ctx.Trends) == 0 {
		return false, "No trend data available"
	}
	if len(ctx.ChannelData) == 0 {
		return false, "No channel data available"
	}
	return true, ""
}

type fatiguedChannel struct {
	Channel      string  `json:"channel"`
	CTRDecline   float64 `json:"ctr_decline"`
	CurrentCTR   float64 `json:"current_ctr"`
	PreviousCTR  float64 `json:"previous_ctr"`
	Impressions  float64 `json:"impressions"`
	PeriodDays   int     `json:"period_days"`
}

func (m *CreativeFatigue) Evaluate(ctx MethodContext) *MethodEvaluation {
	var fatigued []fatiguedChannel

	for _, t := range ctx.Trends {
		if t.KPIName != domain.KPICTR || t.Direction != domain.TrendDeclining {
			continue
		}

		magnitude := math.Abs(t.Magnitude)
		if magnitude < m.CTRDeclineThreshold {
			continue
		}

		impressions := m.channelImpressions(ctx, t.Channel)
		if impressions < m.MinImpressions {
			continue
		}

		periodDays := t.PeriodDays
		if periodDays == 0 {
			periodDays = m.PeriodDays
		}

		fatigued = append(fatigued, fatiguedChannel{
			Channel:     t.Channel,
			CTRDecline:  domain.Round4(magnitude),
			CurrentCTR:  t.CurrentValue,
			PreviousCTR: t.PreviousValue,
			Impressions: impressions,
			PeriodDays:  periodDays,
		})
	}

	if len(fatigued) == 0 {
		return nil
	}

	maxDecline := fatigued[0].CTRDecline
	for _, f := range fatigued[1:] {
		if f.CTRDecline > maxDecline {
			maxDecline = f.CTRDecline
		}
	}
	confidence := domain.Round4(math.Min(0.85, 0.4+maxDecline))

	channelNames := make([]string, len(fatigued))
	for i, f := range fatigued {
		channelNames[i] = f.Channel
	}

	return &MethodEvaluation{
		ShouldFire: true,
		Confidence: confidence,
		Priority:   6,
		ActionType: domain.ActionCreativeRefresh,
		ActionPayload: map[string]any{
			"channels":          channelNames,
			"fatigued_channels": fatigued,
		},
		Reasoning: fmt.Sprintf(
			"Creative fatigue detected on %d channel(s). CTR declining up to %.0f%% over %d days with sufficient impressions. Recommend creative rotation.",
			len(fatigued), maxDecline*100, fatigued[0].PeriodDays,
		),
		TriggerData: map[string]any{
			"fatigued_channels": fatigued,
		},
	}
}

func (m *CreativeFatigue) channelImpressions(ctx MethodContext, channel string) float64 {
	ch, ok := ctx.ChannelByName(channel)
	if !ok {
		return 0
	}
	return ch.Totals.Impressions
}
