// Package executor implements the Action Executor: the bridge from an
// approved OptimizationProposal to a concrete platform-adapter call, with a
// durable Execution/ExecutionAction audit trail and idempotent replay.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/platform"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
	"github.com/ignite/campaign-optimizer/internal/pkg/logger"
)

var platformActions = map[domain.ActionType]bool{
	domain.ActionBudgetReallocation: true,
	domain.ActionPauseChannel:       true,
	domain.ActionResumeChannel:      true,
}

// Record is the outcome of executing a single proposal.
type Record struct {
	Success        bool           `json:"success"`
	ProposalID     string         `json:"proposal_id"`
	ExecutionID    string         `json:"execution_id,omitempty"`
	Error          string         `json:"error,omitempty"`
	PlatformResult map[string]any `json:"platform_result,omitempty"`
}

// BatchResult aggregates the outcome of executing multiple proposals.
type BatchResult struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Records   []Record `json:"records"`
}

// Executor dispatches approved proposals to platform adapters.
type Executor struct {
	Proposals store.ProposalStore
	Executions store.ExecutionStore
	Platforms *platform.Factory
}

// New builds an Executor.
func New(proposals store.ProposalStore, executions store.ExecutionStore, platforms *platform.Factory) *Executor {
	return &Executor{Proposals: proposals, Executions: executions, Platforms: platforms}
}

// ExecuteProposal executes a single approved/auto_approved proposal. When
// force is true, the status gate is skipped (used by tests and manual retry).
func (e *Executor) ExecuteProposal(ctx context.Context, proposalID string, force bool) Record {
	proposal, err := e.Proposals.Get(ctx, proposalID)
	if err != nil {
		return Record{Success: false, ProposalID: proposalID, Error: "Proposal not found"}
	}

	if !force && !proposal.IsExecutable() {
		return Record{
			Success:    false,
			ProposalID: proposalID,
			Error:      fmt.Sprintf("Proposal status must be approved or auto_approved, got %q", proposal.Status),
		}
	}

	idempotencyKey := fmt.Sprintf("opt-proposal-%s", proposal.ID)
	if existing, err := e.Executions.GetByIdempotencyKey(ctx, idempotencyKey); err == nil && existing != nil {
		return Record{
			Success:        true,
			ProposalID:     proposalID,
			ExecutionID:    existing.ID,
			PlatformResult: existing.ExecutionPlan,
		}
	}

	var record Record
	switch {
	case proposal.ActionType.IsAdvisoryAction():
		record = e.executeAdvisory(ctx, proposal, idempotencyKey)
	case platformActions[proposal.ActionType]:
		record = e.executePlatformAction(ctx, proposal, idempotencyKey)
	default:
		logger.Error("executor: unknown action type", "proposal_id", proposalID, "action_type", string(proposal.ActionType))
		record = Record{Success: false, ProposalID: proposalID, Error: fmt.Sprintf("Unknown action_type: %s", proposal.ActionType)}
		proposal.Status = domain.ProposalFailed
		proposal.ExecutionResult = map[string]any{"error": record.Error}
		_ = e.Proposals.Update(ctx, proposal)
		return record
	}

	return record
}

// ExecuteBatch executes multiple proposals, continuing past individual failures.
func (e *Executor) ExecuteBatch(ctx context.Context, proposalIDs []string) BatchResult {
	result := BatchResult{Total: len(proposalIDs)}
	for _, id := range proposalIDs {
		record := e.ExecuteProposal(ctx, id, false)
		result.Records = append(result.Records, record)
		if record.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	return result
}

func (e *Executor) executeAdvisory(ctx context.Context, proposal *domain.OptimizationProposal, idempotencyKey string) Record {
	now := time.Now().UTC()

	executionPlan := map[string]any{
		"action_type": string(proposal.ActionType),
		"advisory":    true,
		"reasoning":   proposal.Reasoning,
		"payload":     proposal.ActionPayload,
	}

	execution := &domain.Execution{
		ID:             uuid.NewString(),
		CampaignID:     proposal.CampaignID,
		Platform:       "advisory",
		Status:         domain.ExecutionCompleted,
		ExecutionPlan:  executionPlan,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	executionID, err := e.Executions.Create(ctx, execution)
	if err != nil {
		return Record{Success: false, ProposalID: proposal.ID, Error: err.Error()}
	}
	execution.ID = executionID

	action := &domain.ExecutionAction{
		ID:             uuid.NewString(),
		ExecutionID:    executionID,
		ActionType:     domain.ExecutionActionType(proposal.ActionType),
		IdempotencyKey: idempotencyKey + "-advisory",
		Request:        map[string]any{"advisory": true, "payload": proposal.ActionPayload},
		Response:       map[string]any{"status": "noted", "message": "Advisory action recorded"},
		Status:         domain.ExecutionActionCompleted,
		CreatedAt:      now,
	}
	if _, err := e.Executions.InsertAction(ctx, action); err != nil {
		return Record{Success: false, ProposalID: proposal.ID, Error: err.Error()}
	}

	proposal.Status = domain.ProposalExecuted
	proposal.ExecutedAt = &now
	proposal.ExecutionResult = map[string]any{
		"advisory":     true,
		"execution_id": executionID,
		"message":      "Advisory action recorded — no platform changes made",
	}
	if err := e.Proposals.Update(ctx, proposal); err != nil {
		return Record{Success: false, ProposalID: proposal.ID, Error: err.Error()}
	}

	return Record{Success: true, ProposalID: proposal.ID, ExecutionID: executionID, PlatformResult: executionPlan}
}

func (e *Executor) executePlatformAction(ctx context.Context, proposal *domain.OptimizationProposal, idempotencyKey string) Record {
	now := time.Now().UTC()
	payload := proposal.ActionPayload
	if payload == nil {
		payload = map[string]any{}
	}

	platformName := platform.Meta
	if raw, ok := payload["platform"].(string); ok {
		platformName = platform.ParseName(raw)
	}

	adapter := e.Platforms.Adapter(platformName)

	executionPlan := map[string]any{
		"action_type": string(proposal.ActionType),
		"platform":    string(platformName),
		"payload":     payload,
	}

	execution := &domain.Execution{
		ID:             uuid.NewString(),
		CampaignID:     proposal.CampaignID,
		Platform:       string(platformName),
		Status:         domain.ExecutionRunning,
		ExecutionPlan:  executionPlan,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	executionID, err := e.Executions.Create(ctx, execution)
	if err != nil {
		return Record{Success: false, ProposalID: proposal.ID, Error: err.Error()}
	}
	execution.ID = executionID

	var results []map[string]any
	var overallSuccess bool
	switch proposal.ActionType {
	case domain.ActionBudgetReallocation:
		results, overallSuccess = e.executeBudgetReallocation(ctx, adapter, platformName, execution, payload)
	case domain.ActionPauseChannel:
		results, overallSuccess = e.executeChannelToggle(ctx, adapter, platformName, execution, payload, domain.ExecutionActionPauseCampaign)
	case domain.ActionResumeChannel:
		results, overallSuccess = e.executeChannelToggle(ctx, adapter, platformName, execution, payload, domain.ExecutionActionResumeCampaign)
	}

	execution.Status = domain.ExecutionCompleted
	if !overallSuccess {
		execution.Status = domain.ExecutionFailed
	}
	execution.UpdatedAt = time.Now().UTC()
	_ = e.Executions.Update(ctx, execution)

	proposal.Status = domain.ProposalExecuted
	if !overallSuccess {
		proposal.Status = domain.ProposalFailed
	}
	proposal.ExecutedAt = &now
	proposal.ExecutionResult = map[string]any{
		"execution_id": executionID,
		"success":      overallSuccess,
		"results":      results,
	}
	_ = e.Proposals.Update(ctx, proposal)

	record := Record{
		Success:        overallSuccess,
		ProposalID:     proposal.ID,
		ExecutionID:    executionID,
		PlatformResult: map[string]any{"results": results},
	}
	if !overallSuccess {
		record.Error = "One or more platform operations failed"
		logger.Warn("executor: platform dispatch failed",
			"proposal_id", proposal.ID,
			"execution_id", executionID,
			"platform", string(platformName),
		)
	}
	return record
}

func (e *Executor) executeBudgetReallocation(ctx context.Context, adapter platform.Adapter, platformName platform.Name, execution *domain.Execution, payload map[string]any) ([]map[string]any, bool) {
	newAllocations := stringFloatMap(payload["new_allocations"])
	externalIDs := stringStringMap(payload["external_campaign_ids"])

	var results []map[string]any
	overallSuccess := true

	for channel, newBudget := range newAllocations {
		extID := externalIDFor(externalIDs, channel)
		result := adapter.UpdateBudget(ctx, extID, newBudget, platformName)
		if !result.Success {
			overallSuccess = false
		}
		results = append(results, map[string]any{"channel": channel, "success": result.Success, "result": result})

		e.recordAction(ctx, execution, domain.ExecutionActionUpdateBudget, fmt.Sprintf("%s-budget-%s", execution.IdempotencyKey, channel),
			map[string]any{"channel": channel, "external_campaign_id": extID, "new_budget": newBudget}, result)
	}

	return results, overallSuccess
}

func (e *Executor) executeChannelToggle(ctx context.Context, adapter platform.Adapter, platformName platform.Name, execution *domain.Execution, payload map[string]any, actionType domain.ExecutionActionType) ([]map[string]any, bool) {
	affected := stringSlice(payload["affected_channels"])
	externalIDs := stringStringMap(payload["external_campaign_ids"])

	var results []map[string]any
	overallSuccess := true
	suffix := "pause"
	if actionType == domain.ExecutionActionResumeCampaign {
		suffix = "resume"
	}

	for _, channel := range affected {
		extID := externalIDFor(externalIDs, channel)
		var result platform.ExecutionResult
		if actionType == domain.ExecutionActionPauseCampaign {
			result = adapter.PauseCampaign(ctx, extID, platformName)
		} else {
			result = adapter.ResumeCampaign(ctx, extID, platformName)
		}
		if !result.Success {
			overallSuccess = false
		}
		results = append(results, map[string]any{"channel": channel, "success": result.Success, "result": result})

		e.recordAction(ctx, execution, actionType, fmt.Sprintf("%s-%s-%s", execution.IdempotencyKey, suffix, channel),
			map[string]any{"channel": channel, "external_campaign_id": extID}, result)
	}

	return results, overallSuccess
}

func (e *Executor) recordAction(ctx context.Context, execution *domain.Execution, actionType domain.ExecutionActionType, idempotencyKey string, request map[string]any, result platform.ExecutionResult) {
	status := domain.ExecutionActionCompleted
	var errMsg *string
	if !result.Success {
		status = domain.ExecutionActionFailed
		msg := result.Error
		errMsg = &msg
	}

	action := &domain.ExecutionAction{
		ID:             uuid.NewString(),
		ExecutionID:    execution.ID,
		ActionType:     actionType,
		IdempotencyKey: idempotencyKey,
		Request:        request,
		Response:       map[string]any{"result": result},
		Status:         status,
		ErrorMessage:   errMsg,
		CreatedAt:      time.Now().UTC(),
	}
	_, _ = e.Executions.InsertAction(ctx, action)
}

func externalIDFor(externalIDs map[string]string, channel string) string {
	if id, ok := externalIDs[channel]; ok {
		return id
	}
	return "campaign-" + channel
}

func stringFloatMap(v any) map[string]float64 {
	switch m := v.(type) {
	case map[string]float64:
		return m
	case map[string]any:
		out := make(map[string]float64, len(m))
		for k, val := range m {
			if f, ok := val.(float64); ok {
				out[k] = f
			}
		}
		return out
	default:
		return nil
	}
}

func stringStringMap(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
