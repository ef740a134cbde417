package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/engine"
	"github.com/ignite/campaign-optimizer/internal/optimization/executor"
	"github.com/ignite/campaign-optimizer/internal/optimization/monitor"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
	"github.com/ignite/campaign-optimizer/internal/optimization/verifier"
)

// OptimizationHandlers serves the performance-monitoring and optimization
// HTTP surface: trigger the engine, inspect metrics/KPIs/trends, review and
// act on proposals, and read back learnings and monitor-run history.
type OptimizationHandlers struct {
	Campaigns  store.CampaignStore
	RawMetrics store.RawMetricStore
	KPIs       store.DerivedKPIStore
	Trends     store.TrendIndicatorStore
	Proposals  store.ProposalStore
	Methods    store.MethodStore
	Learnings  store.LearningStore
	MonitorRuns store.MonitorRunStore

	Engine   *engine.Engine
	Executor *executor.Executor
	Verifier *verifier.Verifier
	Monitor  *monitor.Monitor
}

// NewOptimizationHandlers wires the handler set from its store and
// optimization-core dependencies.
func NewOptimizationHandlers(
	campaigns store.CampaignStore,
	rawMetrics store.RawMetricStore,
	kpis store.DerivedKPIStore,
	trends store.TrendIndicatorStore,
	proposals store.ProposalStore,
	methodStore store.MethodStore,
	learnings store.LearningStore,
	monitorRuns store.MonitorRunStore,
	eng *engine.Engine,
	exec *executor.Executor,
	verif *verifier.Verifier,
	mon *monitor.Monitor,
) *OptimizationHandlers {
	return &OptimizationHandlers{
		Campaigns:   campaigns,
		RawMetrics:  rawMetrics,
		KPIs:        kpis,
		Trends:      trends,
		Proposals:   proposals,
		Methods:     methodStore,
		Learnings:   learnings,
		MonitorRuns: monitorRuns,
		Engine:      eng,
		Executor:    exec,
		Verifier:    verif,
		Monitor:     mon,
	}
}

func (h *OptimizationHandlers) campaignOr404(w http.ResponseWriter, r *http.Request, campaignID string) bool {
	if _, err := h.Campaigns.Get(r.Context(), campaignID); err != nil {
		respondError(w, http.StatusNotFound, "Campaign not found")
		return false
	}
	return true
}

// RegisterOptimizationRoutes mounts the optimization HTTP surface under
// /optimization (with /campaigns, /proposals, and /methods groups beneath it)
// within the given router. Callers
// mount this under the shared /api sub-router alongside the rest of the
// feature-area route groups.
func RegisterOptimizationRoutes(r chi.Router, h *OptimizationHandlers) {
	r.Route("/optimization", func(r chi.Router) {
		r.Post("/campaigns/{campaignID}/run", h.RunOptimization)
		r.Get("/campaigns/{campaignID}", h.GetCampaign)
		r.Get("/campaigns/{campaignID}/metrics", h.GetCampaignMetrics)
		r.Get("/campaigns/{campaignID}/kpis", h.ListCampaignKPIs)
		r.Get("/campaigns/{campaignID}/trends", h.ListCampaignTrends)
		r.Get("/campaigns/{campaignID}/proposals", h.ListCampaignProposals)
		r.Get("/campaigns/{campaignID}/learnings", h.ListCampaignLearnings)
		r.Post("/campaigns/{campaignID}/monitor", h.RunMonitor)
		r.Get("/campaigns/{campaignID}/monitor-runs", h.ListMonitorRuns)

		r.Get("/proposals/{proposalID}", h.GetProposal)
		r.Post("/proposals/{proposalID}/approve", h.ApproveProposal)
		r.Post("/proposals/{proposalID}/execute", h.ExecuteProposal)
		r.Post("/proposals/{proposalID}/verify", h.VerifyProposal)

		r.Get("/methods", h.ListMethods)
		r.Patch("/methods/{methodID}", h.UpdateMethod)
	})
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// RunOptimization triggers the decision engine for a campaign.
//
//	POST /api/optimization/campaigns/{campaignID}/run
func (h *OptimizationHandlers) RunOptimization(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	result := h.Engine.Run(r.Context(), campaignID)
	respondJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// Campaign read-through
// ---------------------------------------------------------------------------

// GetCampaign returns the campaign record the optimization core reads.
//
//	GET /api/optimization/campaigns/{campaignID}
func (h *OptimizationHandlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	campaign, err := h.Campaigns.Get(r.Context(), campaignID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Campaign not found")
		return
	}
	respondJSON(w, http.StatusOK, campaign)
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

type channelMetricsOut struct {
	Channel string             `json:"channel"`
	KPIs    map[string]float64 `json:"kpis"`
}

type campaignMetricsSnapshotOut struct {
	CampaignID      string              `json:"campaign_id"`
	KPIs            map[string]float64  `json:"kpis"`
	ChannelData     []channelMetricsOut `json:"channel_data"`
	RawMetricsCount int                 `json:"raw_metrics_count"`
	KPICount        int                 `json:"kpi_count"`
	TrendCount      int                 `json:"trend_count"`
}

// GetCampaignMetrics returns the current metrics snapshot for a campaign:
// the latest campaign-level KPI values plus a per-channel breakdown.
//
//	GET /api/optimization/campaigns/{campaignID}/metrics
func (h *OptimizationHandlers) GetCampaignMetrics(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	ctx := r.Context()

	var zeroWindow store.Window
	rawMetrics, err := h.RawMetrics.List(ctx, campaignID, zeroWindow)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	kpiRows, err := h.KPIs.List(ctx, campaignID, zeroWindow)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	trendRows, err := h.Trends.List(ctx, campaignID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	kpiDict := map[string]float64{}
	channelOrder := []string{}
	channelDict := map[string]map[string]float64{}
	for _, k := range kpiRows {
		// Rows arrive oldest first, so later rows overwrite earlier ones.
		if k.Channel == nil {
			kpiDict[string(k.KPIName)] = k.KPIValue
			continue
		}
		if _, seen := channelDict[*k.Channel]; !seen {
			channelDict[*k.Channel] = map[string]float64{}
			channelOrder = append(channelOrder, *k.Channel)
		}
		channelDict[*k.Channel][string(k.KPIName)] = k.KPIValue
	}

	channelData := make([]channelMetricsOut, 0, len(channelOrder))
	for _, ch := range channelOrder {
		channelData = append(channelData, channelMetricsOut{Channel: ch, KPIs: channelDict[ch]})
	}

	respondJSON(w, http.StatusOK, campaignMetricsSnapshotOut{
		CampaignID:      campaignID,
		KPIs:            kpiDict,
		ChannelData:     channelData,
		RawMetricsCount: len(rawMetrics),
		KPICount:        len(kpiRows),
		TrendCount:      len(trendRows),
	})
}

// ---------------------------------------------------------------------------
// KPIs
// ---------------------------------------------------------------------------

// ListCampaignKPIs lists every derived KPI row for a campaign.
//
//	GET /api/optimization/campaigns/{campaignID}/kpis
func (h *OptimizationHandlers) ListCampaignKPIs(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	var zeroWindow store.Window
	rows, err := h.KPIs.List(r.Context(), campaignID, zeroWindow)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// ---------------------------------------------------------------------------
// Trends
// ---------------------------------------------------------------------------

// ListCampaignTrends lists every trend indicator computed for a campaign.
//
//	GET /api/optimization/campaigns/{campaignID}/trends
func (h *OptimizationHandlers) ListCampaignTrends(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	rows, err := h.Trends.List(r.Context(), campaignID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// ---------------------------------------------------------------------------
// Proposals
// ---------------------------------------------------------------------------

// ListCampaignProposals lists proposals for a campaign, optionally filtered
// by ?status=.
//
//	GET /api/optimization/campaigns/{campaignID}/proposals
func (h *OptimizationHandlers) ListCampaignProposals(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	status := r.URL.Query().Get("status")
	rows, err := h.Proposals.ListByCampaign(r.Context(), campaignID, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// GetProposal returns a single proposal by id.
//
//	GET /api/optimization/proposals/{proposalID}
func (h *OptimizationHandlers) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := chi.URLParam(r, "proposalID")
	p, err := h.Proposals.Get(r.Context(), proposalID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Proposal not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type approveProposalRequest struct {
	Action     string `json:"action"`
	ApprovedBy string `json:"approved_by"`
}

// ApproveProposal approves or rejects a pending proposal.
//
//	POST /api/optimization/proposals/{proposalID}/approve
func (h *OptimizationHandlers) ApproveProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := chi.URLParam(r, "proposalID")
	p, err := h.Proposals.Get(r.Context(), proposalID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Proposal not found")
		return
	}

	var payload approveProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	now := time.Now().UTC()
	switch payload.Action {
	case "approve":
		p.Status = domain.ProposalApproved
	case "reject":
		p.Status = domain.ProposalRejected
	default:
		respondError(w, http.StatusUnprocessableEntity, "action must be 'approve' or 'reject'")
		return
	}
	approvedBy := payload.ApprovedBy
	p.ApprovedBy = &approvedBy
	p.ApprovedAt = &now

	if err := h.Proposals.Update(r.Context(), p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// ListMethods lists every registered optimization method.
//
//	GET /api/optimization/methods
func (h *OptimizationHandlers) ListMethods(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Methods.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

type updateMethodConfigRequest struct {
	IsActive        *bool          `json:"is_active,omitempty"`
	CooldownMinutes *int           `json:"cooldown_minutes,omitempty"`
	ConfigJSON      map[string]any `json:"config_json,omitempty"`
}

// UpdateMethod updates a method's active flag, cooldown, or config.
//
//	PATCH /api/optimization/methods/{methodID}
func (h *OptimizationHandlers) UpdateMethod(w http.ResponseWriter, r *http.Request) {
	methodID := chi.URLParam(r, "methodID")
	if _, err := h.Methods.Get(r.Context(), methodID); err != nil {
		respondError(w, http.StatusNotFound, "Method not found")
		return
	}

	var payload updateMethodConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Methods.UpdateSettings(r.Context(), methodID, payload.IsActive, payload.CooldownMinutes, payload.ConfigJSON); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := h.Methods.Get(r.Context(), methodID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

type executeProposalRequest struct {
	Force bool `json:"force"`
}

// ExecuteProposal dispatches an approved proposal to its platform adapter.
//
//	POST /api/optimization/proposals/{proposalID}/execute
func (h *OptimizationHandlers) ExecuteProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := chi.URLParam(r, "proposalID")
	proposal, err := h.Proposals.Get(r.Context(), proposalID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Proposal not found")
		return
	}

	var payload executeProposalRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	if !payload.Force && !proposal.IsExecutable() {
		respondError(w, http.StatusBadRequest, "Proposal must be approved to execute (current: "+string(proposal.Status)+")")
		return
	}

	record := h.Executor.ExecuteProposal(r.Context(), proposalID, payload.Force)
	respondJSON(w, http.StatusOK, record)
}

// ---------------------------------------------------------------------------
// Verify
// ---------------------------------------------------------------------------

// VerifyProposal verifies the outcome of an executed proposal.
//
//	POST /api/optimization/proposals/{proposalID}/verify?verification_window_hours=24
func (h *OptimizationHandlers) VerifyProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := chi.URLParam(r, "proposalID")
	if _, err := h.Proposals.Get(r.Context(), proposalID); err != nil {
		respondError(w, http.StatusNotFound, "Proposal not found")
		return
	}

	if windowParam := r.URL.Query().Get("verification_window_hours"); windowParam != "" {
		if hours, err := strconv.Atoi(windowParam); err == nil {
			h.Verifier.VerificationWindowHours = hours
		}
	}

	result := h.Verifier.VerifyProposal(r.Context(), proposalID)
	respondJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// Learnings
// ---------------------------------------------------------------------------

// ListCampaignLearnings lists every learning record for a campaign.
//
//	GET /api/optimization/campaigns/{campaignID}/learnings
func (h *OptimizationHandlers) ListCampaignLearnings(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	rows, err := h.Learnings.ListByCampaign(r.Context(), campaignID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// ---------------------------------------------------------------------------
// Monitor
// ---------------------------------------------------------------------------

// RunMonitor runs the full observe/decide/act/verify cycle for a campaign.
//
//	POST /api/optimization/campaigns/{campaignID}/monitor
func (h *OptimizationHandlers) RunMonitor(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	result := h.Monitor.RunCycle(r.Context(), campaignID)
	respondJSON(w, http.StatusOK, result)
}

// ListMonitorRuns lists every monitor run recorded for a campaign.
//
//	GET /api/optimization/campaigns/{campaignID}/monitor-runs
func (h *OptimizationHandlers) ListMonitorRuns(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !h.campaignOr404(w, r, campaignID) {
		return
	}
	rows, err := h.MonitorRuns.ListByCampaign(r.Context(), campaignID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
