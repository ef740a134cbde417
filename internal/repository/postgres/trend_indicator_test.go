package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

func TestTrendIndicatorRepo_InsertBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewTrendIndicatorRepo(db)

	now := time.Now()
	rows := []domain.TrendIndicator{
		{
			CampaignID: "camp-1", KPIName: domain.KPICPA, Direction: domain.TrendDeclining,
			Magnitude: 0.12, PeriodDays: 7, CurrentValue: 22.5, PreviousValue: 20.0,
			Confidence: 0.8, ComputedAt: now,
		},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO trend_indicators")
	mock.ExpectExec("INSERT INTO trend_indicators").
		WithArgs(sqlmock.AnyArg(), "camp-1", nil, "cpa", "declining", 0.12, 7, 22.5, 20.0, 0.8, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.InsertBatch(context.Background(), rows); err != nil {
		t.Fatalf("InsertBatch() error: %v", err)
	}
	if rows[0].ID == "" {
		t.Error("expected ID to be generated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrendIndicatorRepo_InsertBatch_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewTrendIndicatorRepo(db)

	if err := repo.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("InsertBatch(nil) error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrendIndicatorRepo_InsertBatch_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewTrendIndicatorRepo(db)

	rows := []domain.TrendIndicator{
		{ID: "t-1", CampaignID: "camp-1", KPIName: domain.KPIROAS, Direction: domain.TrendStable, ComputedAt: time.Now()},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO trend_indicators")
	mock.ExpectExec("INSERT INTO trend_indicators").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	if err := repo.InsertBatch(context.Background(), rows); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrendIndicatorRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewTrendIndicatorRepo(db)

	now := time.Now()
	channel := "meta"
	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "channel", "kpi_name", "direction", "magnitude", "period_days",
		"current_value", "previous_value", "confidence", "computed_at",
	}).
		AddRow("t-1", "camp-1", channel, "ctr", "improving", 0.05, 7, 0.021, 0.020, 0.9, now).
		AddRow("t-2", "camp-1", nil, "roas", "stable", 0.0, 14, 2.1, 2.1, 0.95, now)

	mock.ExpectQuery("SELECT id, campaign_id, channel, kpi_name, direction, magnitude, period_days").
		WithArgs("camp-1").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trend indicators, got %d", len(got))
	}
	if got[0].Channel == nil || *got[0].Channel != "meta" {
		t.Errorf("expected channel meta, got %v", got[0].Channel)
	}
	if got[1].Channel != nil {
		t.Errorf("expected campaign-level (nil channel), got %v", got[1].Channel)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
