package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store/storetest"
)

func seedKPI(mem *storetest.Mem, campaignID string, channel *string, name domain.KPIName, value float64, daysAgo int) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -daysAgo)
	end := start.Add(12 * time.Hour)
	mem.DerivedKPIs = append(mem.DerivedKPIs, domain.DerivedKPI{
		CampaignID:  campaignID,
		Channel:     channel,
		KPIName:     name,
		KPIValue:    value,
		WindowStart: &start,
		WindowEnd:   &end,
		ComputedAt:  now,
	})
}

func findTrend(rows []domain.TrendIndicator, channel string, name domain.KPIName) (domain.TrendIndicator, bool) {
	for _, r := range rows {
		ch := ""
		if r.Channel != nil {
			ch = *r.Channel
		}
		if ch == channel && r.KPIName == name {
			return r, true
		}
	}
	return domain.TrendIndicator{}, false
}

func TestAnalyzer_ClassifiesDirections(t *testing.T) {
	mem := storetest.NewMem()
	meta := "meta"
	google := "google"

	// Halved CTR: declining with magnitude 0.5.
	seedKPI(mem, "c1", &meta, domain.KPICTR, 0.01, 3)
	seedKPI(mem, "c1", &meta, domain.KPICTR, 0.02, 9)
	// Raw numeric increase: improving, even though a rising CPA would be bad.
	seedKPI(mem, "c1", &meta, domain.KPIROAS, 1.03, 3)
	seedKPI(mem, "c1", &meta, domain.KPIROAS, 1.00, 9)
	// Within the ±2% dead band: stable.
	seedKPI(mem, "c1", &google, domain.KPICPA, 20.2, 3)
	seedKPI(mem, "c1", &google, domain.KPICPA, 20.0, 9)

	a := NewAnalyzer(mem.DerivedKPIStore(), mem.TrendStore())
	rows, err := a.Analyze(context.Background(), "c1", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 trend rows, got %d", len(rows))
	}
	if len(mem.Trends) != 3 {
		t.Errorf("expected trends persisted, got %d", len(mem.Trends))
	}

	ctr, ok := findTrend(rows, "meta", domain.KPICTR)
	if !ok {
		t.Fatal("missing (meta, ctr) trend")
	}
	if ctr.Direction != domain.TrendDeclining {
		t.Errorf("ctr direction = %s, want declining", ctr.Direction)
	}
	if !almostEqual(ctr.Magnitude, 0.5) {
		t.Errorf("ctr magnitude = %v, want 0.5", ctr.Magnitude)
	}
	if !almostEqual(ctr.Confidence, 0.9) {
		t.Errorf("ctr confidence = %v, want 0.9 (capped)", ctr.Confidence)
	}
	if ctr.PeriodDays != 7 {
		t.Errorf("period_days = %d, want 7", ctr.PeriodDays)
	}

	roas, ok := findTrend(rows, "meta", domain.KPIROAS)
	if !ok {
		t.Fatal("missing (meta, roas) trend")
	}
	if roas.Direction != domain.TrendImproving {
		t.Errorf("roas direction = %s, want improving", roas.Direction)
	}
	if !almostEqual(roas.Confidence, 0.53) {
		t.Errorf("roas confidence = %v, want 0.53", roas.Confidence)
	}

	cpa, ok := findTrend(rows, "google", domain.KPICPA)
	if !ok {
		t.Fatal("missing (google, cpa) trend")
	}
	if cpa.Direction != domain.TrendStable {
		t.Errorf("cpa direction = %s, want stable at +1%% change", cpa.Direction)
	}
}

func TestAnalyzer_SkipsKeysWithoutBothPeriods(t *testing.T) {
	mem := storetest.NewMem()
	meta := "meta"

	// Zero previous value: skipped.
	seedKPI(mem, "c1", &meta, domain.KPIROAS, 2.0, 3)
	seedKPI(mem, "c1", &meta, domain.KPIROAS, 0.0, 9)
	// Current period only: skipped.
	seedKPI(mem, "c1", &meta, domain.KPICTR, 0.01, 3)
	// Previous period only: skipped.
	seedKPI(mem, "c1", &meta, domain.KPICVR, 0.02, 9)

	a := NewAnalyzer(mem.DerivedKPIStore(), mem.TrendStore())
	rows, err := a.Analyze(context.Background(), "c1", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no trend rows, got %d", len(rows))
	}
}

func TestAnalyzer_AveragesSameKeyRowsWithinPeriod(t *testing.T) {
	mem := storetest.NewMem()
	meta := "meta"

	seedKPI(mem, "c1", &meta, domain.KPICVR, 0.02, 2)
	seedKPI(mem, "c1", &meta, domain.KPICVR, 0.04, 4)
	seedKPI(mem, "c1", &meta, domain.KPICVR, 0.03, 9)

	a := NewAnalyzer(mem.DerivedKPIStore(), mem.TrendStore())
	rows, err := a.Analyze(context.Background(), "c1", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	cvr, ok := findTrend(rows, "meta", domain.KPICVR)
	if !ok {
		t.Fatal("missing (meta, cvr) trend")
	}
	// Current bucket averages 0.02 and 0.04 to 0.03 — equal to previous.
	if cvr.Direction != domain.TrendStable {
		t.Errorf("direction = %s, want stable", cvr.Direction)
	}
	if !almostEqual(cvr.CurrentValue, 0.03) {
		t.Errorf("current_value = %v, want averaged 0.03", cvr.CurrentValue)
	}
	if !almostEqual(cvr.PreviousValue, 0.03) {
		t.Errorf("previous_value = %v, want 0.03", cvr.PreviousValue)
	}
}
