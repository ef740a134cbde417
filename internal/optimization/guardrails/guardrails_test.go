package guardrails

import (
	"testing"
	"time"
)

func TestBudgetChangeLimit(t *testing.T) {
	tests := []struct {
		name     string
		current  map[string]float64
		proposed map[string]float64
		maxPct   float64
		want     bool
	}{
		{
			name:     "nil proposed always passes",
			current:  map[string]float64{"meta": 100},
			proposed: nil,
			want:     true,
		},
		{
			name:     "within limit passes",
			current:  map[string]float64{"meta": 100},
			proposed: map[string]float64{"meta": 110},
			maxPct:   0.2,
			want:     true,
		},
		{
			name:     "exceeds limit fails",
			current:  map[string]float64{"meta": 100},
			proposed: map[string]float64{"meta": 150},
			maxPct:   0.2,
			want:     false,
		},
		{
			name:     "zero current is exempt from division",
			current:  map[string]float64{"tiktok": 0},
			proposed: map[string]float64{"tiktok": 50},
			maxPct:   0.2,
			want:     true,
		},
		{
			name:     "default threshold applies when maxPct unset",
			current:  map[string]float64{"meta": 100},
			proposed: map[string]float64{"meta": 125},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BudgetChangeLimit(tt.current, tt.proposed, tt.maxPct)
			if got.Passed != tt.want {
				t.Errorf("BudgetChangeLimit() passed = %v, want %v (%s)", got.Passed, tt.want, got.Message)
			}
			if got.RuleName != "budget_change_limit" {
				t.Errorf("expected rule name budget_change_limit, got %s", got.RuleName)
			}
		})
	}
}

func TestMinimumChannelFloor(t *testing.T) {
	tests := []struct {
		name     string
		proposed map[string]float64
		minPct   float64
		want     bool
	}{
		{
			name:     "nil proposed always passes",
			proposed: nil,
			want:     true,
		},
		{
			name:     "zero total passes",
			proposed: map[string]float64{"meta": 0, "tiktok": 0},
			want:     true,
		},
		{
			name:     "paused channel at zero is exempt",
			proposed: map[string]float64{"meta": 950, "tiktok": 0},
			minPct:   0.05,
			want:     true,
		},
		{
			name:     "channel below floor fails",
			proposed: map[string]float64{"meta": 970, "tiktok": 30},
			minPct:   0.05,
			want:     false,
		},
		{
			name:     "all channels above floor passes",
			proposed: map[string]float64{"meta": 600, "tiktok": 400},
			minPct:   0.05,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinimumChannelFloor(tt.proposed, tt.minPct)
			if got.Passed != tt.want {
				t.Errorf("MinimumChannelFloor() passed = %v, want %v (%s)", got.Passed, tt.want, got.Message)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		times   []time.Time
		maxPer  int
		want    bool
	}{
		{
			name:   "no recent proposals passes",
			times:  nil,
			maxPer: 3,
			want:   true,
		},
		{
			name:   "under limit passes",
			times:  []time.Time{now.Add(-10 * time.Minute), now.Add(-20 * time.Minute)},
			maxPer: 3,
			want:   true,
		},
		{
			name:   "at limit fails",
			times:  []time.Time{now.Add(-10 * time.Minute), now.Add(-20 * time.Minute), now.Add(-30 * time.Minute)},
			maxPer: 3,
			want:   false,
		},
		{
			name:   "stale proposals outside window don't count",
			times:  []time.Time{now.Add(-2 * time.Hour), now.Add(-3 * time.Hour)},
			maxPer: 1,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RateLimit(tt.times, tt.maxPer)
			if got.Passed != tt.want {
				t.Errorf("RateLimit() passed = %v, want %v (%s)", got.Passed, tt.want, got.Message)
			}
		})
	}
}

func TestCooldown(t *testing.T) {
	now := time.Now().UTC()

	t.Run("nil last fired always passes", func(t *testing.T) {
		got := Cooldown("budget_reallocation", nil, 60)
		if !got.Passed {
			t.Errorf("expected pass, got %s", got.Message)
		}
	})

	t.Run("within cooldown fails", func(t *testing.T) {
		lastFired := now.Add(-10 * time.Minute)
		got := Cooldown("budget_reallocation", &lastFired, 60)
		if got.Passed {
			t.Error("expected fail, method just fired")
		}
	})

	t.Run("elapsed cooldown passes", func(t *testing.T) {
		lastFired := now.Add(-90 * time.Minute)
		got := Cooldown("budget_reallocation", &lastFired, 60)
		if !got.Passed {
			t.Errorf("expected pass, got %s", got.Message)
		}
	})

	t.Run("default cooldown used when unset", func(t *testing.T) {
		lastFired := now.Add(-30 * time.Minute)
		got := Cooldown("cpa_spike", &lastFired, 0)
		if got.Passed {
			t.Error("expected fail under default 60-minute cooldown")
		}
	})
}
