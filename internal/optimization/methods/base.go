// Package methods implements the pluggable Optimization Method registry:
// a Method capability set, an immutable MethodContext snapshot, and the
// three built-in reactive/proactive analyzers.
package methods

import (
	"fmt"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

// ChannelTotals is the raw per-channel dimension sum a method may read.
type ChannelTotals struct {
	Spend       float64 `json:"spend"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// ChannelData bundles one channel's KPIs and raw totals for method consumption.
type ChannelData struct {
	Channel string
	KPIs    map[domain.KPIName]float64
	Totals  ChannelTotals
}

// TrendSummary is the flattened view of a TrendIndicator a method reads;
// Channel is "" for campaign-level trends.
type TrendSummary struct {
	Channel       string
	KPIName       domain.KPIName
	Direction     domain.TrendDirection
	Magnitude     float64
	CurrentValue  float64
	PreviousValue float64
	PeriodDays    int
	Confidence    float64
}

// CampaignConfig is the subset of campaign metadata methods may read.
type CampaignConfig struct {
	Objective domain.Objective
	TargetCAC *float64
}

// MethodContext is the immutable snapshot passed to every method. Methods
// must not perform I/O — everything they need is already here.
type MethodContext struct {
	CampaignID          string
	KPIs                map[domain.KPIName]float64 // campaign-level
	Trends              []TrendSummary
	ChannelData         []ChannelData
	CurrentAllocations  map[string]float64
	CampaignConfig      CampaignConfig
}

// MethodEvaluation is a method's output when it fires. A method that does
// not trigger returns (nil, nil) from Evaluate.
type MethodEvaluation struct {
	MethodName    string
	ShouldFire    bool
	Confidence    float64
	Priority      int
	ActionType    domain.ActionType
	ActionPayload map[string]any
	Reasoning     string
	TriggerData   map[string]any
}

// Method is the capability set every pluggable analyzer implements.
type Method interface {
	Name() string
	Description() string
	MethodType() domain.MethodType
	// CheckPreconditions reports whether ctx has enough data for this
	// method to run; a false result short-circuits Evaluate.
	CheckPreconditions(ctx MethodContext) (bool, string)
	// Evaluate inspects ctx and returns a MethodEvaluation if it fires, or
	// nil if it does not trigger.
	Evaluate(ctx MethodContext) *MethodEvaluation
}

// Registry is a name-keyed container of registered methods.
type Registry struct {
	order   []string
	methods map[string]Method
}

// NewRegistry creates an empty method registry.
func NewRegistry() *Registry {
	return &Registry{methods: map[string]Method{}}
}

// Register adds a method, overwriting any existing method with the same name.
func (r *Registry) Register(m Method) {
	if _, exists := r.methods[m.Name()]; !exists {
		r.order = append(r.order, m.Name())
	}
	r.methods[m.Name()] = m
}

// Get returns the method registered under name, if any.
func (r *Registry) Get(name string) (Method, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// List returns all registered methods in registration order.
func (r *Registry) List() []Method {
	out := make([]Method, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.methods[name])
	}
	return out
}

// EvaluateAll runs every registered method in registration order. A method
// whose preconditions fail is silently dropped. A method that panics is
// trapped so one broken method never prevents the others from running; its
// error is appended to errs rather than raised.
func (r *Registry) EvaluateAll(ctx MethodContext) (evaluations []MethodEvaluation, errs []error) {
	for _, name := range r.order {
		m := r.methods[name]
		eval, err := r.runOne(m, ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if eval != nil {
			evaluations = append(evaluations, *eval)
		}
	}
	return evaluations, errs
}

func (r *Registry) runOne(m Method, ctx MethodContext) (eval *MethodEvaluation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("method %q panicked: %v", m.Name(), rec)
		}
	}()

	ok, _ := m.CheckPreconditions(ctx)
	if !ok {
		return nil, nil
	}
	result := m.Evaluate(ctx)
	if result != nil && result.ShouldFire {
		result.MethodName = m.Name()
		return result, nil
	}
	return nil, nil
}

// ChannelByName finds a channel's data within ctx, if present.
func (c MethodContext) ChannelByName(name string) (ChannelData, bool) {
	for _, ch := range c.ChannelData {
		if ch.Channel == name {
			return ch, true
		}
	}
	return ChannelData{}, false
}
