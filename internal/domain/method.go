package domain

import "time"

// MethodType classifies whether a method fires in reaction to a detected
// problem (reactive) or opportunistically re-balances healthy spend (proactive).
type MethodType string

const (
	MethodReactive  MethodType = "reactive"
	MethodProactive MethodType = "proactive"
)

// MethodStats tracks running accuracy/success statistics for a method,
// updated by the Outcome Verifier after each learning record.
type MethodStats struct {
	TotalExecutions     int        `json:"total_executions"`
	SuccessfulExecutions int       `json:"successful_executions"`
	AvgAccuracy         float64    `json:"avg_accuracy"`
	LastVerifiedAt      *time.Time `json:"last_verified_at,omitempty"`
}

// OptimizationMethod is the persisted identity and running record for a
// pluggable analyzer. A row is created lazily the first time the method
// emits a surviving proposal.
type OptimizationMethod struct {
	ID               string         `json:"id" db:"id"`
	Name             string         `json:"name" db:"name"`
	Description      string         `json:"description" db:"description"`
	MethodType       MethodType     `json:"method_type" db:"method_type"`
	TriggerConditions map[string]any `json:"trigger_conditions" db:"trigger_conditions"`
	Config           map[string]any `json:"config" db:"config"`
	IsActive         bool           `json:"is_active" db:"is_active"`
	CooldownMinutes  int            `json:"cooldown_minutes" db:"cooldown_minutes"`
	Stats            MethodStats    `json:"stats" db:"stats"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}
