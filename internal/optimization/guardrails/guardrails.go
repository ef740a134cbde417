// Package guardrails implements the four pure safety checks a proposal must
// pass before it is eligible for auto-approval or execution. Each check is a
// standalone function with no I/O, easily tested in isolation.
package guardrails

import (
	"fmt"
	"math"
	"time"
)

// CheckResult is the outcome of a single guardrail check.
type CheckResult struct {
	Passed   bool           `json:"passed"`
	RuleName string         `json:"rule_name"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

const (
	defaultMaxChangePct   = 0.20
	defaultMinFloorPct    = 0.05
	defaultMaxPerHour     = 3
	defaultCooldownMinutes = 60
)

// BudgetChangeLimit reports whether no single channel's proposed allocation
// changes by more than maxChangePct (default 20%) relative to its current
// allocation. A nil proposed map always passes.
func BudgetChangeLimit(current, proposed map[string]float64, maxChangePct float64) CheckResult {
	if maxChangePct <= 0 {
		maxChangePct = defaultMaxChangePct
	}
	if proposed == nil {
		return CheckResult{Passed: true, RuleName: "budget_change_limit", Message: "No allocation changes proposed"}
	}

	var violations []map[string]any
	for channel, curr := range current {
		prop, ok := proposed[channel]
		if !ok {
			prop = curr
		}
		if curr == 0 {
			continue
		}
		changePct := math.Abs(prop-curr) / curr
		if changePct > maxChangePct {
			violations = append(violations, map[string]any{
				"channel":    channel,
				"current":    curr,
				"proposed":   prop,
				"change_pct": round4(changePct),
			})
		}
	}

	if len(violations) > 0 {
		return CheckResult{
			Passed:   false,
			RuleName: "budget_change_limit",
			Message:  fmt.Sprintf("Budget change exceeds %.0f%% limit on %d channel(s)", maxChangePct*100, len(violations)),
			Details:  map[string]any{"violations": violations, "max_change_pct": maxChangePct},
		}
	}
	return CheckResult{Passed: true, RuleName: "budget_change_limit", Message: "All budget changes within limit"}
}

// MinimumChannelFloor reports whether no channel's proposed allocation drops
// below minFloorPct (default 5%) of the proposed total. Channels proposed at
// exactly zero are assumed intentionally paused and are exempt.
func MinimumChannelFloor(proposed map[string]float64, minFloorPct float64) CheckResult {
	if minFloorPct <= 0 {
		minFloorPct = defaultMinFloorPct
	}
	if proposed == nil {
		return CheckResult{Passed: true, RuleName: "minimum_channel_floor", Message: "No allocation changes proposed"}
	}

	var total float64
	for _, v := range proposed {
		total += v
	}
	if total <= 0 {
		return CheckResult{Passed: true, RuleName: "minimum_channel_floor", Message: "Total budget is zero"}
	}

	var violations []map[string]any
	for channel, amount := range proposed {
		if amount <= 0 {
			continue
		}
		share := amount / total
		if share < minFloorPct {
			violations = append(violations, map[string]any{
				"channel": channel,
				"amount":  amount,
				"share":   round4(share),
			})
		}
	}

	if len(violations) > 0 {
		return CheckResult{
			Passed:   false,
			RuleName: "minimum_channel_floor",
			Message:  fmt.Sprintf("%d channel(s) below %.0f%% floor", len(violations), minFloorPct*100),
			Details:  map[string]any{"violations": violations, "min_floor_pct": minFloorPct},
		}
	}
	return CheckResult{Passed: true, RuleName: "minimum_channel_floor", Message: "All channels above minimum floor"}
}

// RateLimit reports whether fewer than maxPerHour (default 3) proposals have
// been created for this campaign in the trailing hour.
func RateLimit(recentProposalTimes []time.Time, maxPerHour int) CheckResult {
	if maxPerHour <= 0 {
		maxPerHour = defaultMaxPerHour
	}
	now := time.Now().UTC()
	oneHourAgo := now.Add(-time.Hour)

	recentCount := 0
	for _, t := range recentProposalTimes {
		if !t.Before(oneHourAgo) {
			recentCount++
		}
	}

	if recentCount >= maxPerHour {
		return CheckResult{
			Passed:   false,
			RuleName: "rate_limit",
			Message:  fmt.Sprintf("Rate limit reached: %d proposals in the last hour (max %d)", recentCount, maxPerHour),
			Details:  map[string]any{"recent_count": recentCount, "max_per_hour": maxPerHour},
		}
	}

	return CheckResult{
		Passed:   true,
		RuleName: "rate_limit",
		Message:  fmt.Sprintf("%d/%d proposals in last hour", recentCount, maxPerHour),
		Details:  map[string]any{"recent_count": recentCount, "max_per_hour": maxPerHour},
	}
}

// Cooldown reports whether a method is outside its cooldown window since it
// last fired. A nil lastFiredAt always passes.
func Cooldown(methodName string, lastFiredAt *time.Time, cooldownMinutes int) CheckResult {
	if cooldownMinutes <= 0 {
		cooldownMinutes = defaultCooldownMinutes
	}
	if lastFiredAt == nil {
		return CheckResult{Passed: true, RuleName: "cooldown", Message: fmt.Sprintf("Method %q has not fired before", methodName)}
	}

	now := time.Now().UTC()
	elapsed := now.Sub(*lastFiredAt)
	cooldown := time.Duration(cooldownMinutes) * time.Minute

	if elapsed < cooldown {
		remaining := cooldown - elapsed
		return CheckResult{
			Passed:   false,
			RuleName: "cooldown",
			Message:  fmt.Sprintf("Method %q is in cooldown. %.0f minutes remaining.", methodName, remaining.Minutes()),
			Details: map[string]any{
				"method_name":       methodName,
				"last_fired_at":     lastFiredAt.Format(time.RFC3339),
				"cooldown_minutes":  cooldownMinutes,
				"remaining_seconds": remaining.Seconds(),
			},
		}
	}

	return CheckResult{
		Passed:   true,
		RuleName: "cooldown",
		Message:  fmt.Sprintf("Method %q cooldown has elapsed", methodName),
		Details: map[string]any{
			"method_name":     methodName,
			"cooldown_minutes": cooldownMinutes,
			"elapsed_minutes":  round4(elapsed.Minutes()),
		},
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
