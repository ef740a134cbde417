package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

func executionColumns() []string {
	return []string{
		"id", "campaign_id", "platform", "status", "execution_plan", "external_campaign_id",
		"external_ids", "links", "idempotency_key", "error_message", "created_at", "updated_at",
	}
}

func TestExecutionRepo_GetByIdempotencyKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewExecutionRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows(executionColumns()).
		AddRow("e-1", "camp-1", "meta", "completed", []byte(`{}`), nil, []byte(`{}`), []byte(`{}`), "key-1", nil, now, now)

	mock.ExpectQuery("SELECT .* FROM executions WHERE idempotency_key = \\$1").
		WithArgs("key-1").
		WillReturnRows(rows)

	e, err := repo.GetByIdempotencyKey(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("GetByIdempotencyKey() error: %v", err)
	}
	if e.Status != domain.ExecutionCompleted || e.Platform != "meta" {
		t.Errorf("unexpected execution: %+v", e)
	}
}

func TestExecutionRepo_GetByIdempotencyKey_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewExecutionRepo(db)

	mock.ExpectQuery("SELECT .* FROM executions WHERE idempotency_key = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(executionColumns()))

	_, err = repo.GetByIdempotencyKey(context.Background(), "missing")
	if err != store.ErrExecutionNotFound {
		t.Fatalf("expected ErrExecutionNotFound, got %v", err)
	}
}

func TestExecutionRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewExecutionRepo(db)

	e := &domain.Execution{
		CampaignID: "camp-1", Platform: "meta", Status: domain.ExecutionPending,
		IdempotencyKey: "key-1", ExecutionPlan: map[string]any{"action": "pause_channel"},
	}

	mock.ExpectExec("INSERT INTO executions").
		WithArgs(sqlmock.AnyArg(), "camp-1", "meta", domain.ExecutionPending, sqlmock.AnyArg(), nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "key-1", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.Create(context.Background(), e)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if id == "" {
		t.Error("expected generated ID")
	}
}

func TestExecutionRepo_Update_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewExecutionRepo(db)

	mock.ExpectExec("UPDATE executions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := &domain.Execution{ID: "missing", Status: domain.ExecutionFailed}
	err = repo.Update(context.Background(), e)
	if err != store.ErrExecutionNotFound {
		t.Fatalf("expected ErrExecutionNotFound, got %v", err)
	}
}

func TestExecutionRepo_InsertAction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewExecutionRepo(db)

	a := &domain.ExecutionAction{
		ExecutionID: "e-1", ActionType: domain.ExecutionActionUpdateBudget,
		IdempotencyKey: "act-1", Status: domain.ExecutionActionCompleted, DurationMS: 120,
	}

	mock.ExpectExec("INSERT INTO execution_actions").
		WithArgs(sqlmock.AnyArg(), "e-1", domain.ExecutionActionUpdateBudget, "act-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), domain.ExecutionActionCompleted, nil, int64(120)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.InsertAction(context.Background(), a)
	if err != nil {
		t.Fatalf("InsertAction() error: %v", err)
	}
	if id == "" {
		t.Error("expected generated ID")
	}
}
