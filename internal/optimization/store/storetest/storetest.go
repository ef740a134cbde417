// Package storetest provides an in-memory implementation of every store
// interface, for exercising the optimization core without a live Postgres.
// Filtering semantics mirror the postgres repositories: explicit windows
// match on overlap, and rows with no recorded window match any window.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// Mem holds every entity in plain slices and maps. Fields are exported so
// tests can seed and inspect state directly; mutate only between calls.
type Mem struct {
	mu sync.Mutex

	Campaigns   map[string]domain.Campaign
	Snapshots   []domain.ChannelSnapshot
	RawMetrics  []domain.RawMetric
	DerivedKPIs []domain.DerivedKPI
	Trends      []domain.TrendIndicator
	Methods     map[string]*domain.OptimizationMethod
	Proposals   map[string]*domain.OptimizationProposal
	Executions  map[string]*domain.Execution
	Actions     []domain.ExecutionAction
	Learnings   map[string]*domain.OptimizationLearning
	MonitorRuns []domain.MonitorRun

	seq int
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		Campaigns:  map[string]domain.Campaign{},
		Methods:    map[string]*domain.OptimizationMethod{},
		Proposals:  map[string]*domain.OptimizationProposal{},
		Executions: map[string]*domain.Execution{},
		Learnings:  map[string]*domain.OptimizationLearning{},
	}
}

func (m *Mem) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// matchesWindow applies the null-permissive overlap filter the postgres
// repositories use for raw_metrics and derived_kpis.
func matchesWindow(start, end *time.Time, w store.Window) bool {
	if !w.Start.IsZero() && end != nil && end.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && start != nil && start.After(w.End) {
		return false
	}
	return true
}

// --- CampaignStore ---

func (m *Mem) Get(_ context.Context, campaignID string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Campaigns[campaignID]
	if !ok {
		return nil, store.ErrCampaignNotFound
	}
	out := c
	return &out, nil
}

func (m *Mem) ListActive(_ context.Context) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []domain.Campaign
	for _, c := range m.Campaigns {
		if c.WindowEnd == nil || c.WindowEnd.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// CampaignStore returns m as a store.CampaignStore.
func (m *Mem) CampaignStore() store.CampaignStore { return m }

// RawMetricStore returns m as a store.RawMetricStore.
func (m *Mem) RawMetricStore() store.RawMetricStore { return m }

// --- SnapshotStore ---

// SnapshotStore returns a view implementing store.SnapshotStore. The
// indirection exists because Mem.Get is taken by CampaignStore.
func (m *Mem) SnapshotStore() store.SnapshotStore { return snapshotView{m} }

type snapshotView struct{ m *Mem }

func (v snapshotView) Count(_ context.Context, campaignID string) (int, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	n := 0
	for _, s := range v.m.Snapshots {
		if s.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

func (v snapshotView) List(_ context.Context, campaignID string, w store.Window) ([]domain.ChannelSnapshot, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.ChannelSnapshot
	for _, s := range v.m.Snapshots {
		if s.CampaignID != campaignID {
			continue
		}
		if !w.Start.IsZero() && s.WindowEnd.Before(w.Start) {
			continue
		}
		if !w.End.IsZero() && s.WindowStart.After(w.End) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// --- RawMetricStore ---

func (m *Mem) InsertBatch(_ context.Context, rows []domain.RawMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = m.nextID("raw")
		}
		m.RawMetrics = append(m.RawMetrics, r)
	}
	return nil
}

func (m *Mem) List(_ context.Context, campaignID string, w store.Window) ([]domain.RawMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RawMetric
	for _, r := range m.RawMetrics {
		if r.CampaignID != campaignID {
			continue
		}
		if !matchesWindow(r.WindowStart, r.WindowEnd, w) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// --- DerivedKPIStore ---

func (m *Mem) DerivedKPIStore() store.DerivedKPIStore { return kpiView{m} }

type kpiView struct{ m *Mem }

func (v kpiView) InsertBatch(_ context.Context, rows []domain.DerivedKPI) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = v.m.nextID("kpi")
		}
		v.m.DerivedKPIs = append(v.m.DerivedKPIs, r)
	}
	return nil
}

func (v kpiView) List(_ context.Context, campaignID string, w store.Window) ([]domain.DerivedKPI, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.DerivedKPI
	for _, r := range v.m.DerivedKPIs {
		if r.CampaignID != campaignID {
			continue
		}
		if !matchesWindow(r.WindowStart, r.WindowEnd, w) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// --- TrendIndicatorStore ---

func (m *Mem) TrendStore() store.TrendIndicatorStore { return trendView{m} }

type trendView struct{ m *Mem }

func (v trendView) InsertBatch(_ context.Context, rows []domain.TrendIndicator) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = v.m.nextID("trend")
		}
		v.m.Trends = append(v.m.Trends, r)
	}
	return nil
}

func (v trendView) List(_ context.Context, campaignID string) ([]domain.TrendIndicator, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.TrendIndicator
	for _, r := range v.m.Trends {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- MethodStore ---

func (m *Mem) MethodStore() store.MethodStore { return methodView{m} }

type methodView struct{ m *Mem }

func (v methodView) GetByName(_ context.Context, name string) (*domain.OptimizationMethod, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, method := range v.m.Methods {
		if method.Name == name {
			out := *method
			return &out, nil
		}
	}
	return nil, store.ErrMethodNotFound
}

func (v methodView) Get(_ context.Context, id string) (*domain.OptimizationMethod, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	method, ok := v.m.Methods[id]
	if !ok {
		return nil, store.ErrMethodNotFound
	}
	out := *method
	return &out, nil
}

func (v methodView) Create(_ context.Context, method *domain.OptimizationMethod) (string, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if method.ID == "" {
		method.ID = v.m.nextID("method")
	}
	cp := *method
	v.m.Methods[method.ID] = &cp
	return method.ID, nil
}

func (v methodView) List(_ context.Context) ([]domain.OptimizationMethod, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.OptimizationMethod
	for _, method := range v.m.Methods {
		out = append(out, *method)
	}
	return out, nil
}

func (v methodView) UpdateConfig(_ context.Context, id string, config map[string]any) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	method, ok := v.m.Methods[id]
	if !ok {
		return store.ErrMethodNotFound
	}
	method.Config = config
	return nil
}

func (v methodView) UpdateStats(_ context.Context, id string, stats domain.MethodStats) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	method, ok := v.m.Methods[id]
	if !ok {
		return store.ErrMethodNotFound
	}
	method.Stats = stats
	return nil
}

func (v methodView) UpdateSettings(_ context.Context, id string, isActive *bool, cooldownMinutes *int, config map[string]any) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	method, ok := v.m.Methods[id]
	if !ok {
		return store.ErrMethodNotFound
	}
	if isActive != nil {
		method.IsActive = *isActive
	}
	if cooldownMinutes != nil {
		method.CooldownMinutes = *cooldownMinutes
	}
	if config != nil {
		method.Config = config
	}
	return nil
}

// --- ProposalStore ---

func (m *Mem) ProposalStore() store.ProposalStore { return proposalView{m} }

type proposalView struct{ m *Mem }

func (v proposalView) Create(_ context.Context, p *domain.OptimizationProposal) (string, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if p.ID == "" {
		p.ID = v.m.nextID("proposal")
	}
	cp := *p
	v.m.Proposals[p.ID] = &cp
	return p.ID, nil
}

func (v proposalView) Get(_ context.Context, id string) (*domain.OptimizationProposal, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	p, ok := v.m.Proposals[id]
	if !ok {
		return nil, store.ErrProposalNotFound
	}
	out := *p
	return &out, nil
}

func (v proposalView) Update(_ context.Context, p *domain.OptimizationProposal) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.Proposals[p.ID]; !ok {
		return store.ErrProposalNotFound
	}
	cp := *p
	v.m.Proposals[p.ID] = &cp
	return nil
}

func (v proposalView) ListByCampaign(_ context.Context, campaignID string, status string) ([]domain.OptimizationProposal, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.OptimizationProposal
	for _, p := range v.m.Proposals {
		if p.CampaignID != campaignID {
			continue
		}
		if status != "" && string(p.Status) != status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (v proposalView) RecentCreatedAt(_ context.Context, campaignID string, since time.Time) ([]time.Time, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []time.Time
	for _, p := range v.m.Proposals {
		if p.CampaignID == campaignID && !p.CreatedAt.Before(since) {
			out = append(out, p.CreatedAt)
		}
	}
	return out, nil
}

func (v proposalView) LastFiredAt(_ context.Context, campaignID, actionType string) (*time.Time, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var last *time.Time
	for _, p := range v.m.Proposals {
		if p.CampaignID != campaignID || string(p.ActionType) != actionType {
			continue
		}
		if last == nil || p.CreatedAt.After(*last) {
			t := p.CreatedAt
			last = &t
		}
	}
	return last, nil
}

func (v proposalView) ListExecutable(_ context.Context, campaignID string) ([]domain.OptimizationProposal, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.OptimizationProposal
	for _, p := range v.m.Proposals {
		if p.CampaignID == campaignID && p.Status == domain.ProposalAutoApproved && p.ExecutedAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (v proposalView) ListExecutedSince(_ context.Context, campaignID string, since time.Time) ([]domain.OptimizationProposal, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.OptimizationProposal
	for _, p := range v.m.Proposals {
		if p.CampaignID != campaignID || p.Status != domain.ProposalExecuted || p.ExecutedAt == nil {
			continue
		}
		if p.ExecutedAt.Before(since) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// --- ExecutionStore ---

func (m *Mem) ExecutionStore() store.ExecutionStore { return executionView{m} }

type executionView struct{ m *Mem }

func (v executionView) GetByIdempotencyKey(_ context.Context, key string) (*domain.Execution, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, e := range v.m.Executions {
		if e.IdempotencyKey == key {
			out := *e
			return &out, nil
		}
	}
	return nil, store.ErrExecutionNotFound
}

func (v executionView) Create(_ context.Context, e *domain.Execution) (string, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, existing := range v.m.Executions {
		if existing.IdempotencyKey == e.IdempotencyKey {
			return "", fmt.Errorf("duplicate idempotency key %q", e.IdempotencyKey)
		}
	}
	if e.ID == "" {
		e.ID = v.m.nextID("exec")
	}
	cp := *e
	v.m.Executions[e.ID] = &cp
	return e.ID, nil
}

func (v executionView) Update(_ context.Context, e *domain.Execution) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.Executions[e.ID]; !ok {
		return store.ErrExecutionNotFound
	}
	cp := *e
	v.m.Executions[e.ID] = &cp
	return nil
}

func (v executionView) InsertAction(_ context.Context, a *domain.ExecutionAction) (string, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if a.ID == "" {
		a.ID = v.m.nextID("action")
	}
	v.m.Actions = append(v.m.Actions, *a)
	return a.ID, nil
}

// ActionsFor returns the recorded sub-actions for one execution.
func (m *Mem) ActionsFor(executionID string) []domain.ExecutionAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutionAction
	for _, a := range m.Actions {
		if a.ExecutionID == executionID {
			out = append(out, a)
		}
	}
	return out
}

// --- LearningStore ---

func (m *Mem) LearningStore() store.LearningStore { return learningView{m} }

type learningView struct{ m *Mem }

func (v learningView) GetVerified(_ context.Context, proposalID string) (*domain.OptimizationLearning, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, l := range v.m.Learnings {
		if l.ProposalID == proposalID && l.VerificationStatus == domain.VerificationVerified {
			out := *l
			return &out, nil
		}
	}
	return nil, store.ErrLearningNotFound
}

func (v learningView) Create(_ context.Context, l *domain.OptimizationLearning) (string, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if l.ID == "" {
		l.ID = v.m.nextID("learning")
	}
	cp := *l
	v.m.Learnings[l.ID] = &cp
	return l.ID, nil
}

func (v learningView) ListByCampaign(_ context.Context, campaignID string) ([]domain.OptimizationLearning, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.OptimizationLearning
	for _, l := range v.m.Learnings {
		if l.CampaignID == campaignID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// --- MonitorRunStore ---

func (m *Mem) MonitorRunStore() store.MonitorRunStore { return monitorRunView{m} }

type monitorRunView struct{ m *Mem }

func (v monitorRunView) Create(_ context.Context, r *domain.MonitorRun) (string, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if r.ID == "" {
		r.ID = v.m.nextID("run")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	v.m.MonitorRuns = append(v.m.MonitorRuns, *r)
	return r.ID, nil
}

func (v monitorRunView) Get(_ context.Context, id string) (*domain.MonitorRun, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, r := range v.m.MonitorRuns {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, store.ErrMonitorRunNotFound
}

func (v monitorRunView) ListByCampaign(_ context.Context, campaignID string) ([]domain.MonitorRun, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []domain.MonitorRun
	for _, r := range v.m.MonitorRuns {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}
