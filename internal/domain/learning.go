package domain

import "time"

// VerificationStatus enumerates the state of an OptimizationLearning row.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// OptimizationLearning is the post-verification record comparing a
// proposal's predicted impact to its measured actual impact. At most one
// row per proposal_id may carry VerificationVerified.
type OptimizationLearning struct {
	ID                 string             `json:"id" db:"id"`
	CampaignID         string             `json:"campaign_id" db:"campaign_id"`
	ProposalID         string             `json:"proposal_id" db:"proposal_id"`
	MethodID           string             `json:"method_id" db:"method_id"`
	PredictedImpact    map[string]any     `json:"predicted_impact" db:"predicted_impact"`
	ActualImpact       map[string]any     `json:"actual_impact,omitempty" db:"actual_impact"`
	AccuracyScore      *float64           `json:"accuracy_score,omitempty" db:"accuracy_score"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty" db:"verified_at"`
	Details            map[string]any     `json:"details" db:"details"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
}

// MonitorRunStatus enumerates how a full observe/decide/act/verify cycle concluded.
type MonitorRunStatus string

const (
	MonitorRunCompleted MonitorRunStatus = "completed"
	MonitorRunPartial   MonitorRunStatus = "partial"
	MonitorRunFailed    MonitorRunStatus = "failed"
)

// MonitorRun is the single audit row written once per run_cycle call.
type MonitorRun struct {
	ID                  string           `json:"id" db:"id"`
	CampaignID          string           `json:"campaign_id" db:"campaign_id"`
	Status              MonitorRunStatus `json:"status" db:"status"`
	EngineSummary       map[string]any   `json:"engine_summary" db:"engine_summary"`
	ExecutionSummary    map[string]any   `json:"execution_summary" db:"execution_summary"`
	VerificationSummary map[string]any   `json:"verification_summary" db:"verification_summary"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}
