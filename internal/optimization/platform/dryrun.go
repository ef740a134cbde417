package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DryRunAdapter simulates platform API calls with realistic fake responses.
// Used for development, testing, and validating execution plans before
// connecting real platform APIs.
type DryRunAdapter struct {
	mu      sync.Mutex
	created map[string]ExecutionPlan // idempotency cache
}

// NewDryRunAdapter builds an empty simulator.
func NewDryRunAdapter() *DryRunAdapter {
	return &DryRunAdapter{created: map[string]ExecutionPlan{}}
}

func (a *DryRunAdapter) ValidatePlan(_ context.Context, plan ExecutionPlan) []ValidationIssue {
	var issues []ValidationIssue
	if plan.TotalBudget <= 0 {
		issues = append(issues, ValidationIssue{Field: "total_budget", Message: "Budget must be positive", Severity: "error"})
	}
	if plan.CampaignName == "" {
		issues = append(issues, ValidationIssue{Field: "campaign_name", Message: "Campaign name is required", Severity: "error"})
	}
	if len(plan.AdSets) == 0 {
		issues = append(issues, ValidationIssue{Field: "ad_sets", Message: "At least one ad set is required", Severity: "warning"})
	}
	return issues
}

func (a *DryRunAdapter) CreateCampaign(ctx context.Context, plan ExecutionPlan, idempotencyKey string) ExecutionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.created[idempotencyKey]; ok {
		shortKey := idempotencyKey
		if len(shortKey) > 8 {
			shortKey = shortKey[:8]
		}
		extID := "dry-run-" + shortKey
		return ExecutionResult{
			Success:            true,
			Platform:           plan.Platform,
			ExternalCampaignID: extID,
			ExternalIDs:        map[string]string{"campaign": extID},
			RawResponse:        map[string]any{"note": "idempotent_replay"},
		}
	}

	issues := a.ValidatePlan(ctx, plan)
	var errs []ValidationIssue
	for _, i := range issues {
		if i.Severity == "error" {
			errs = append(errs, i)
		}
	}
	if len(errs) > 0 {
		return ExecutionResult{
			Success:          false,
			Platform:         plan.Platform,
			ValidationIssues: issues,
			Error:            "Validation failed",
		}
	}

	extID := "dry-run-" + uuid.NewString()[:8]
	a.created[idempotencyKey] = plan

	externalIDs := map[string]string{"campaign": extID}
	for _, adSet := range plan.AdSets {
		externalIDs[adSet.Name] = "dry-run-adset-" + uuid.NewString()[:6]
	}

	return ExecutionResult{
		Success:            true,
		Platform:           plan.Platform,
		ExternalCampaignID: extID,
		ExternalIDs:        externalIDs,
		Links:              map[string]string{"campaign_url": fmt.Sprintf("https://dry-run.example.com/campaigns/%s", extID)},
		RawResponse: map[string]any{
			"dry_run": true,
			"plan_summary": map[string]any{
				"name":    plan.CampaignName,
				"budget":  plan.TotalBudget,
				"ad_sets": len(plan.AdSets),
			},
		},
	}
}

func (a *DryRunAdapter) PauseCampaign(_ context.Context, externalCampaignID string, platform Name) ExecutionResult {
	return ExecutionResult{
		Success:            true,
		Platform:           platform,
		ExternalCampaignID: externalCampaignID,
		RawResponse:        map[string]any{"status": "paused", "dry_run": true},
	}
}

func (a *DryRunAdapter) ResumeCampaign(_ context.Context, externalCampaignID string, platform Name) ExecutionResult {
	return ExecutionResult{
		Success:            true,
		Platform:           platform,
		ExternalCampaignID: externalCampaignID,
		RawResponse:        map[string]any{"status": "active", "dry_run": true},
	}
}

func (a *DryRunAdapter) UpdateBudget(_ context.Context, externalCampaignID string, newBudget float64, platform Name) ExecutionResult {
	if newBudget <= 0 {
		return ExecutionResult{
			Success:            false,
			Platform:           platform,
			ExternalCampaignID: externalCampaignID,
			Error:              "Budget must be positive",
		}
	}
	return ExecutionResult{
		Success:            true,
		Platform:           platform,
		ExternalCampaignID: externalCampaignID,
		RawResponse: map[string]any{
			"new_budget": newBudget,
			"status":     "budget_updated",
			"dry_run":    true,
		},
	}
}
