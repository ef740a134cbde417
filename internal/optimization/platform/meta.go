package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	_ "golang.org/x/image/webp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ignite/campaign-optimizer/internal/pkg/httpretry"
	"github.com/ignite/campaign-optimizer/internal/pkg/logger"
)

const metaGraphBaseURL = "https://graph.facebook.com/v21.0"

// MetaAdapter calls the Meta Marketing API directly over HTTPS. It does not
// depend on a platform SDK: requests are built and signed with a
// client-credentials OAuth2 token and sent through the shared retrying HTTP
// client.
type MetaAdapter struct {
	AdAccountID string
	PageID      string
	BaseURL     string

	tokenSource oauth2.TokenSource
	httpClient  httpretry.HTTPDoer
}

// MetaConfig carries the credentials needed to mint an app access token.
type MetaConfig struct {
	AppID       string
	AppSecret   string
	AdAccountID string
	PageID      string
}

// NewMetaAdapter builds an adapter backed by a client-credentials token
// source and the shared retrying HTTP client.
func NewMetaAdapter(cfg MetaConfig) *MetaAdapter {
	tokenSource := (&clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		TokenURL:     metaGraphBaseURL + "/oauth/access_token",
	}).TokenSource(context.Background())

	return &MetaAdapter{
		AdAccountID: cfg.AdAccountID,
		PageID:      cfg.PageID,
		BaseURL:     metaGraphBaseURL,
		tokenSource: tokenSource,
		httpClient:  httpretry.NewRetryClient(nil, 3),
	}
}

func (a *MetaAdapter) ValidatePlan(ctx context.Context, plan ExecutionPlan) []ValidationIssue {
	var issues []ValidationIssue
	if plan.TotalBudget <= 0 {
		issues = append(issues, ValidationIssue{Field: "total_budget", Message: "Budget must be positive", Severity: "error"})
	}
	if plan.CampaignName == "" {
		issues = append(issues, ValidationIssue{Field: "campaign_name", Message: "Campaign name is required", Severity: "error"})
	}
	for _, adSet := range plan.AdSets {
		if err := a.validateCreativeImage(adSet); err != nil {
			issues = append(issues, ValidationIssue{Field: "ad_sets." + adSet.Name + ".creative", Message: err.Error(), Severity: "error"})
		}
	}
	return issues
}

// validateCreativeImage decodes the ad set's referenced creative image (if
// any) to confirm it is a real, well-formed image before Meta rejects the
// upload outright.
func (a *MetaAdapter) validateCreativeImage(adSet AdSetSpec) error {
	raw, ok := adSet.Creative["image_bytes"]
	if !ok {
		return nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return fmt.Errorf("creative.image_bytes must be raw bytes")
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("invalid creative image: %w", err)
	}
	return nil
}

func (a *MetaAdapter) CreateCampaign(ctx context.Context, plan ExecutionPlan, idempotencyKey string) ExecutionResult {
	issues := a.ValidatePlan(ctx, plan)
	var errs []ValidationIssue
	for _, i := range issues {
		if i.Severity == "error" {
			errs = append(errs, i)
		}
	}
	if len(errs) > 0 {
		return ExecutionResult{Success: false, Platform: Meta, ValidationIssues: issues, Error: "Validation failed"}
	}

	body := map[string]any{
		"name":              plan.CampaignName,
		"objective":         plan.Objective,
		"status":            "PAUSED",
		"daily_budget":      int64(plan.TotalBudget * 100),
		"special_ad_categories": []string{},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/%s/campaigns", a.AdAccountID), body, &resp); err != nil {
		logger.Error("meta adapter: create campaign failed", "error", err.Error(), "idempotency_key", idempotencyKey)
		return errorResult(Meta, "%s", err.Error())
	}

	return ExecutionResult{
		Success:            true,
		Platform:           Meta,
		ExternalCampaignID: resp.ID,
		ExternalIDs:        map[string]string{"campaign": resp.ID},
		Links:              map[string]string{"campaign_url": fmt.Sprintf("https://www.facebook.com/adsmanager/manage/campaigns?act=%s&campaign_ids=%s", a.AdAccountID, resp.ID)},
	}
}

func (a *MetaAdapter) PauseCampaign(ctx context.Context, externalCampaignID string, platform Name) ExecutionResult {
	return a.setStatus(ctx, externalCampaignID, "PAUSED")
}

func (a *MetaAdapter) ResumeCampaign(ctx context.Context, externalCampaignID string, platform Name) ExecutionResult {
	return a.setStatus(ctx, externalCampaignID, "ACTIVE")
}

func (a *MetaAdapter) setStatus(ctx context.Context, externalCampaignID, status string) ExecutionResult {
	if err := a.do(ctx, http.MethodPost, "/"+externalCampaignID, map[string]any{"status": status}, nil); err != nil {
		return errorResult(Meta, "%s", err.Error())
	}
	return ExecutionResult{
		Success:            true,
		Platform:           Meta,
		ExternalCampaignID: externalCampaignID,
		RawResponse:        map[string]any{"status": status},
	}
}

func (a *MetaAdapter) UpdateBudget(ctx context.Context, externalCampaignID string, newBudget float64, platform Name) ExecutionResult {
	if newBudget <= 0 {
		return ExecutionResult{Success: false, Platform: Meta, ExternalCampaignID: externalCampaignID, Error: "Budget must be positive"}
	}
	body := map[string]any{"daily_budget": int64(newBudget * 100)}
	if err := a.do(ctx, http.MethodPost, "/"+externalCampaignID, body, nil); err != nil {
		return errorResult(Meta, "%s", err.Error())
	}
	return ExecutionResult{
		Success:            true,
		Platform:           Meta,
		ExternalCampaignID: externalCampaignID,
		RawResponse:        map[string]any{"new_budget": newBudget, "status": "budget_updated"},
	}
}

func (a *MetaAdapter) do(ctx context.Context, method, path string, body map[string]any, out any) error {
	token, err := a.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("meta adapter: token: %w", err)
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("meta adapter: encode body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("meta adapter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("meta adapter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return fmt.Errorf("meta api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("meta api error: status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("meta adapter: decode response: %w", err)
		}
	}
	return nil
}
