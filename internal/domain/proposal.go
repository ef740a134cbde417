package domain

import "time"

// ProposalStatus enumerates the lifecycle of an OptimizationProposal.
type ProposalStatus string

const (
	ProposalPending      ProposalStatus = "pending"
	ProposalAutoApproved ProposalStatus = "auto_approved"
	ProposalApproved     ProposalStatus = "approved"
	ProposalRejected     ProposalStatus = "rejected"
	ProposalExecuted     ProposalStatus = "executed"
	ProposalFailed       ProposalStatus = "failed"
	ProposalExpired      ProposalStatus = "expired"
)

// ActionType is the closed set of proposal actions. Unknown values are a
// domain error at execution time, not an extension point.
type ActionType string

const (
	ActionBudgetReallocation ActionType = "budget_reallocation"
	ActionPauseChannel       ActionType = "pause_channel"
	ActionResumeChannel      ActionType = "resume_channel"
	ActionCreativeRefresh    ActionType = "creative_refresh"
)

// IsPlatformAction reports whether the action requires a platform adapter call.
func (a ActionType) IsPlatformAction() bool {
	switch a {
	case ActionBudgetReallocation, ActionPauseChannel, ActionResumeChannel:
		return true
	default:
		return false
	}
}

// IsAdvisoryAction reports whether the action is recorded without calling a platform.
func (a ActionType) IsAdvisoryAction() bool {
	return a == ActionCreativeRefresh
}

// OptimizationProposal is a durable, guardrail-passed recommendation emitted
// by a method and routed to auto-approval or human review.
type OptimizationProposal struct {
	ID              string         `json:"id" db:"id"`
	CampaignID      string         `json:"campaign_id" db:"campaign_id"`
	MethodID        string         `json:"method_id" db:"method_id"`
	Status          ProposalStatus `json:"status" db:"status"`
	Confidence      float64        `json:"confidence" db:"confidence"`
	Priority        int            `json:"priority" db:"priority"`
	ActionType      ActionType     `json:"action_type" db:"action_type"`
	ActionPayload   map[string]any `json:"action_payload" db:"action_payload"`
	Reasoning       string         `json:"reasoning" db:"reasoning"`
	TriggerData     map[string]any `json:"trigger_data" db:"trigger_data"`
	GuardrailChecks map[string]any `json:"guardrail_checks" db:"guardrail_checks"`
	ExecutionResult map[string]any `json:"execution_result,omitempty" db:"execution_result"`
	ApprovedBy      *string        `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	ExecutedAt      *time.Time     `json:"executed_at,omitempty" db:"executed_at"`
	ExpiresAt       time.Time      `json:"expires_at" db:"expires_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// IsExecutable reports whether the proposal may be dispatched to the executor
// without the force override.
func (p *OptimizationProposal) IsExecutable() bool {
	return p.Status == ProposalApproved || p.Status == ProposalAutoApproved
}
