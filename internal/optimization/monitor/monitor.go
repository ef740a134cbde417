// Package monitor orchestrates the full observe/decide/act/verify cycle for
// a campaign and records a single audit row per call.
package monitor

import (
	"context"
	"fmt"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/engine"
	"github.com/ignite/campaign-optimizer/internal/optimization/executor"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
	"github.com/ignite/campaign-optimizer/internal/optimization/verifier"
	"github.com/ignite/campaign-optimizer/internal/pkg/logger"
)

const verificationBatchMaxAgeHours = 48

// RunResult aggregates the outcome of all three phases of a cycle.
type RunResult struct {
	CampaignID          string                 `json:"campaign_id"`
	MonitorRunID        string                 `json:"monitor_run_id,omitempty"`
	EngineResult        *engine.Result         `json:"engine_result,omitempty"`
	ExecutionResult     *executor.BatchResult  `json:"execution_result,omitempty"`
	VerificationResult  *verifier.BatchResult  `json:"verification_result,omitempty"`
	Success             bool                   `json:"success"`
	Errors              []string               `json:"errors,omitempty"`
}

// Monitor wires the engine, executor, and verifier into one cycle and
// persists a MonitorRun audit row for every invocation.
type Monitor struct {
	Engine      *engine.Engine
	Executor    *executor.Executor
	Verifier    *verifier.Verifier
	Proposals   store.ProposalStore
	MonitorRuns store.MonitorRunStore
}

// New wires a Monitor from its already-constructed collaborators.
func New(eng *engine.Engine, exec *executor.Executor, verif *verifier.Verifier, proposals store.ProposalStore, monitorRuns store.MonitorRunStore) *Monitor {
	return &Monitor{
		Engine:      eng,
		Executor:    exec,
		Verifier:    verif,
		Proposals:   proposals,
		MonitorRuns: monitorRuns,
	}
}

// RunCycle executes the full optimization lifecycle for a campaign:
// observe & decide (engine), act (executor on auto-approved proposals), and
// verify (verifier on recently executed proposals). A failure in one phase
// does not stop the others; every phase's error is collected.
func (m *Monitor) RunCycle(ctx context.Context, campaignID string) *RunResult {
	result := &RunResult{CampaignID: campaignID, Success: true}

	engineResult := m.Engine.Run(ctx, campaignID)
	result.EngineResult = engineResult
	if !engineResult.Success {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("Engine phase failed: %s", engineResult.Message))
	}

	execResult, execErr := m.runExecutionPhase(ctx, campaignID)
	if execErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Execution phase failed: %s", execErr.Error()))
	} else if execResult != nil {
		result.ExecutionResult = execResult
		if execResult.Failed > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Execution phase: %d/%d failed", execResult.Failed, execResult.Total))
		}
	}

	verifyResult, verifyErr := m.Verifier.VerifyBatch(ctx, campaignID, verificationBatchMaxAgeHours)
	if verifyErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Verification phase failed: %s", verifyErr.Error()))
	} else {
		result.VerificationResult = &verifyResult
	}

	status := domain.MonitorRunCompleted
	if len(result.Errors) > 0 {
		if engineResult.Success {
			status = domain.MonitorRunPartial
		} else {
			status = domain.MonitorRunFailed
		}
	}

	monitorRun := &domain.MonitorRun{
		CampaignID:          campaignID,
		Status:              status,
		EngineSummary:       engineSummary(engineResult),
		ExecutionSummary:    executionSummary(result.ExecutionResult),
		VerificationSummary: verificationSummary(result.VerificationResult),
	}
	if id, err := m.MonitorRuns.Create(ctx, monitorRun); err == nil {
		result.MonitorRunID = id
	} else {
		logger.Error("monitor: failed to record run", "campaign_id", campaignID, "error", err.Error())
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to record monitor run: %s", err.Error()))
	}

	logger.Info("monitor: cycle finished", "campaign_id", campaignID, "status", string(status), "errors", len(result.Errors))
	return result
}

// runExecutionPhase executes every auto_approved-but-not-yet-executed
// proposal for the campaign as a batch.
func (m *Monitor) runExecutionPhase(ctx context.Context, campaignID string) (*executor.BatchResult, error) {
	pending, err := m.Proposals.ListExecutable(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}
	batch := m.Executor.ExecuteBatch(ctx, ids)
	return &batch, nil
}

func engineSummary(r *engine.Result) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	return map[string]any{
		"success":                 r.Success,
		"proposals_created":       r.ProposalsCreated,
		"proposals_auto_approved": r.ProposalsAutoApproved,
		"proposals_queued":        r.ProposalsQueued,
		"guardrail_rejections":    r.GuardrailRejections,
		"method_evaluations":      r.MethodEvaluations,
	}
}

func executionSummary(r *executor.BatchResult) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	return map[string]any{
		"total":     r.Total,
		"succeeded": r.Succeeded,
		"failed":    r.Failed,
	}
}

func verificationSummary(r *verifier.BatchResult) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	return map[string]any{
		"total":    r.Total,
		"verified": r.Verified,
		"pending":  r.Pending,
		"failed":   r.Failed,
	}
}
