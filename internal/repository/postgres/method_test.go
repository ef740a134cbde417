package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

func methodRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "method_type", "trigger_conditions", "config",
		"is_active", "cooldown_minutes", "stats", "created_at", "updated_at",
	}).AddRow("m-1", "budget_reallocation", "", "reactive", []byte(`{}`), []byte(`{"max_shift_pct":0.2}`),
		true, 60, []byte(`{"total_executions":3,"successful_executions":2,"avg_accuracy":0.75}`), now, now)
}

func TestMethodRepo_GetByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMethodRepo(db)

	mock.ExpectQuery("SELECT .* FROM optimization_methods WHERE name = \\$1").
		WithArgs("budget_reallocation").
		WillReturnRows(methodRow())

	m, err := repo.GetByName(context.Background(), "budget_reallocation")
	if err != nil {
		t.Fatalf("GetByName() error: %v", err)
	}
	if m.Name != "budget_reallocation" || m.MethodType != domain.MethodReactive {
		t.Errorf("unexpected method: %+v", m)
	}
	if m.Config["max_shift_pct"] != 0.2 {
		t.Errorf("expected config max_shift_pct=0.2, got %v", m.Config["max_shift_pct"])
	}
	if m.Stats.TotalExecutions != 3 || m.Stats.SuccessfulExecutions != 2 {
		t.Errorf("unexpected stats: %+v", m.Stats)
	}
}

func TestMethodRepo_GetByName_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMethodRepo(db)

	mock.ExpectQuery("SELECT .* FROM optimization_methods WHERE name = \\$1").
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "method_type", "trigger_conditions", "config",
			"is_active", "cooldown_minutes", "stats", "created_at", "updated_at",
		}))

	_, err = repo.GetByName(context.Background(), "unknown")
	if err != store.ErrMethodNotFound {
		t.Fatalf("expected ErrMethodNotFound, got %v", err)
	}
}

func TestMethodRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMethodRepo(db)

	m := &domain.OptimizationMethod{
		Name:       "pause_underperformer",
		MethodType: domain.MethodReactive,
		Config:     map[string]any{},
	}

	mock.ExpectExec("INSERT INTO optimization_methods").
		WithArgs(sqlmock.AnyArg(), "pause_underperformer", "", domain.MethodReactive,
			sqlmock.AnyArg(), sqlmock.AnyArg(), false, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.Create(context.Background(), m)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if id == "" {
		t.Error("expected generated ID")
	}
}

func TestMethodRepo_UpdateSettings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMethodRepo(db)

	mock.ExpectQuery("SELECT .* FROM optimization_methods WHERE id = \\$1").
		WithArgs("m-1").
		WillReturnRows(methodRow())

	mock.ExpectExec("UPDATE optimization_methods").
		WithArgs(false, 120, sqlmock.AnyArg(), "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	isActive := false
	cooldown := 120
	if err := repo.UpdateSettings(context.Background(), "m-1", &isActive, &cooldown, nil); err != nil {
		t.Fatalf("UpdateSettings() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMethodRepo_UpdateSettings_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMethodRepo(db)

	mock.ExpectQuery("SELECT .* FROM optimization_methods WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "method_type", "trigger_conditions", "config",
			"is_active", "cooldown_minutes", "stats", "created_at", "updated_at",
		}))

	err = repo.UpdateSettings(context.Background(), "missing", nil, nil, nil)
	if err != store.ErrMethodNotFound {
		t.Fatalf("expected ErrMethodNotFound, got %v", err)
	}
}

func TestMethodRepo_UpdateStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewMethodRepo(db)

	mock.ExpectExec("UPDATE optimization_methods SET stats").
		WithArgs(sqlmock.AnyArg(), "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats := domain.MethodStats{TotalExecutions: 5, SuccessfulExecutions: 4, AvgAccuracy: 0.8}
	if err := repo.UpdateStats(context.Background(), "m-1", stats); err != nil {
		t.Fatalf("UpdateStats() error: %v", err)
	}
}
