package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

func TestMonitorRunRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMonitorRunRepo(db)

	run := &domain.MonitorRun{
		CampaignID:    "camp-1",
		Status:        domain.MonitorRunCompleted,
		EngineSummary: map[string]any{"proposals_created": 2},
	}

	mock.ExpectExec("INSERT INTO monitor_runs").
		WithArgs(sqlmock.AnyArg(), "camp-1", domain.MonitorRunCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.Create(context.Background(), run)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if id == "" {
		t.Error("expected generated ID")
	}
}

func TestMonitorRunRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMonitorRunRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "status", "engine_summary", "execution_summary",
		"verification_summary", "created_at",
	}).AddRow("run-1", "camp-1", "completed", []byte(`{"proposals_created":1}`), []byte(`{}`), []byte(`{}`), now)

	mock.ExpectQuery("SELECT id, campaign_id, status, engine_summary, execution_summary").
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := repo.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if run.Status != domain.MonitorRunCompleted {
		t.Errorf("expected completed status, got %s", run.Status)
	}
	if run.EngineSummary["proposals_created"] != float64(1) {
		t.Errorf("expected proposals_created=1, got %v", run.EngineSummary["proposals_created"])
	}
}

func TestMonitorRunRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMonitorRunRepo(db)

	mock.ExpectQuery("SELECT id, campaign_id, status, engine_summary, execution_summary").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "campaign_id", "status", "engine_summary", "execution_summary",
			"verification_summary", "created_at",
		}))

	_, err = repo.Get(context.Background(), "missing")
	if err != store.ErrMonitorRunNotFound {
		t.Fatalf("expected ErrMonitorRunNotFound, got %v", err)
	}
}

func TestMonitorRunRepo_ListByCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMonitorRunRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "status", "engine_summary", "execution_summary",
		"verification_summary", "created_at",
	}).
		AddRow("run-2", "camp-1", "completed", []byte(`{}`), []byte(`{}`), []byte(`{}`), now).
		AddRow("run-1", "camp-1", "partial", []byte(`{}`), []byte(`{}`), []byte(`{}`), now.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, campaign_id, status, engine_summary, execution_summary").
		WithArgs("camp-1").
		WillReturnRows(rows)

	got, err := repo.ListByCampaign(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("ListByCampaign() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].ID != "run-2" {
		t.Errorf("expected most recent run first, got %s", got[0].ID)
	}
}
