package domain

import "time"

// ExecutionStatus enumerates the lifecycle of an Execution row.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPaused    ExecutionStatus = "paused"
)

// Execution is the audit-trail row for one proposal's (or direct agent
// request's) dispatch to a platform. Owned by its Proposal via
// IdempotencyKey, not a foreign key, so it survives proposal deletion.
type Execution struct {
	ID                string          `json:"id" db:"id"`
	CampaignID        string          `json:"campaign_id" db:"campaign_id"`
	Platform          string          `json:"platform" db:"platform"`
	Status            ExecutionStatus `json:"status" db:"status"`
	ExecutionPlan     map[string]any  `json:"execution_plan" db:"execution_plan"`
	ExternalCampaignID *string        `json:"external_campaign_id,omitempty" db:"external_campaign_id"`
	ExternalIDs       map[string]any  `json:"external_ids" db:"external_ids"`
	Links             map[string]any  `json:"links" db:"links"`
	IdempotencyKey    string          `json:"idempotency_key" db:"idempotency_key"`
	ErrorMessage      *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// ExecutionActionStatus enumerates the status of one sub-operation.
type ExecutionActionStatus string

const (
	ExecutionActionPending   ExecutionActionStatus = "pending"
	ExecutionActionCompleted ExecutionActionStatus = "completed"
	ExecutionActionFailed    ExecutionActionStatus = "failed"
)

// ExecutionActionType is the closed set of platform sub-operations.
type ExecutionActionType string

const (
	ExecutionActionCreateCampaign ExecutionActionType = "create_campaign"
	ExecutionActionUpdateBudget  ExecutionActionType = "update_budget"
	ExecutionActionPauseCampaign ExecutionActionType = "pause_campaign"
	ExecutionActionResumeCampaign ExecutionActionType = "resume_campaign"
)

// ExecutionAction is one sub-operation against a platform, recorded for
// audit. IdempotencyKey is unique within its parent Execution, not globally.
type ExecutionAction struct {
	ID             string                `json:"id" db:"id"`
	ExecutionID    string                `json:"execution_id" db:"execution_id"`
	ActionType     ExecutionActionType   `json:"action_type" db:"action_type"`
	IdempotencyKey string                `json:"idempotency_key" db:"idempotency_key"`
	Request        map[string]any        `json:"request" db:"request"`
	Response       map[string]any        `json:"response,omitempty" db:"response"`
	Status         ExecutionActionStatus `json:"status" db:"status"`
	ErrorMessage   *string               `json:"error_message,omitempty" db:"error_message"`
	DurationMS     int64                 `json:"duration_ms" db:"duration_ms"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
}
