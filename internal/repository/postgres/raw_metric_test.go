package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

func TestRawMetricRepo_InsertBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewRawMetricRepo(db)

	now := time.Now()
	rows := []domain.RawMetric{
		{CampaignID: "camp-1", Channel: "meta", MetricName: domain.MetricSpend, MetricValue: 120.5,
			MetricUnit: domain.UnitCurrency, Source: "collector", CollectedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO raw_metrics")
	mock.ExpectExec("INSERT INTO raw_metrics").
		WithArgs(sqlmock.AnyArg(), "camp-1", "meta", domain.MetricSpend, 120.5, domain.UnitCurrency,
			"collector", now, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.InsertBatch(context.Background(), rows); err != nil {
		t.Fatalf("InsertBatch() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRawMetricRepo_List_WindowFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewRawMetricRepo(db)

	now := time.Now()
	w := store.Window{Start: now.Add(-time.Hour), End: now}

	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "channel", "metric_name", "metric_value", "metric_unit",
		"source", "collected_at", "window_start", "window_end",
	}).AddRow("rm-1", "camp-1", "meta", "clicks", 42.0, "count", "collector", now, nil, nil)

	mock.ExpectQuery("AND \\(window_end IS NULL OR window_end >= \\$2\\).*AND \\(window_start IS NULL OR window_start <= \\$3\\)").
		WithArgs("camp-1", w.Start, w.End).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "camp-1", w)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 || got[0].MetricName != domain.MetricClicks {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestRawMetricRepo_List_UnboundedWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewRawMetricRepo(db)

	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "channel", "metric_name", "metric_value", "metric_unit",
		"source", "collected_at", "window_start", "window_end",
	})

	mock.ExpectQuery("SELECT id, campaign_id, channel, metric_name, metric_value, metric_unit").
		WithArgs("camp-1").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "camp-1", store.Window{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}
