package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

func TestSnapshotRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSnapshotRepo(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM channel_snapshots WHERE campaign_id = \\$1").
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7, got %d", n)
	}
}

func TestSnapshotRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSnapshotRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "channel", "window_start", "window_end",
		"spend", "impressions", "clicks", "conversions", "revenue", "created_at",
	}).AddRow("s-1", "camp-1", "meta", now.Add(-time.Hour), now, 100.50, int64(1000), int64(30), int64(5), 250.00, now)

	mock.ExpectQuery("SELECT id, campaign_id, channel, window_start, window_end").
		WithArgs("camp-1").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "camp-1", store.Window{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(got))
	}
	if got[0].Spend.Float64() != 100.50 {
		t.Errorf("expected spend 100.50, got %v", got[0].Spend.Float64())
	}
	if got[0].Revenue.Float64() != 250.00 {
		t.Errorf("expected revenue 250.00, got %v", got[0].Revenue.Float64())
	}
}

func TestSnapshotRepo_List_WithWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSnapshotRepo(db)

	now := time.Now()
	w := store.Window{Start: now.Add(-24 * time.Hour), End: now}

	mock.ExpectQuery("AND window_end >= \\$2.*AND window_start <= \\$3").
		WithArgs("camp-1", w.Start, w.End).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "campaign_id", "channel", "window_start", "window_end",
			"spend", "impressions", "clicks", "conversions", "revenue", "created_at",
		}))

	got, err := repo.List(context.Background(), "camp-1", w)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}
