package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := NewRedisLock(client, "campaign:1", time.Minute)

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected to acquire lock, got ok=%v err=%v", ok, err)
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
}

func TestRedisLock_SecondAcquireFailsWhileHeld(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first := NewRedisLock(client, "campaign:1", time.Minute)
	second := NewRedisLock(client, "campaign:1", time.Minute)

	ok, err := first.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = second.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second acquire to fail while lock is held")
	}
}

func TestRedisLock_ReleaseOnlyIfOwned(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first := NewRedisLock(client, "campaign:1", time.Minute)
	second := NewRedisLock(client, "campaign:1", time.Minute)

	if ok, err := first.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	// second never owned the lock, its Release must be a no-op
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	// first should still be able to acquire its own lock again via a fresh instance,
	// proving second's Release didn't delete it
	third := NewRedisLock(client, "campaign:1", time.Minute)
	ok, err := third.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected lock to still be held by first after second's no-op release")
	}
}

func TestRedisLock_Extend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := NewRedisLock(client, "campaign:1", time.Second)
	if ok, err := lock.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("expected acquire to succeed, got ok=%v err=%v", ok, err)
	}

	if err := lock.Extend(context.Background(), time.Minute); err != nil {
		t.Fatalf("Extend() error: %v", err)
	}

	mr.FastForward(2 * time.Second)

	other := NewRedisLock(client, "campaign:1", time.Minute)
	if ok, _ := other.Acquire(context.Background()); ok {
		t.Error("expected extended lock to still be held after original TTL would have expired")
	}
}

func TestPGAdvisoryLock_Acquire(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "campaign:1")

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed, got ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGAdvisoryLock_AcquireContended(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "campaign:1")

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected acquire to fail when lock is held elsewhere")
	}
}

func TestPGAdvisoryLock_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "campaign:1")

	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewPGAdvisoryLock_DeterministicLockID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	a := NewPGAdvisoryLock(db, "campaign:42")
	b := NewPGAdvisoryLock(db, "campaign:42")
	c := NewPGAdvisoryLock(db, "campaign:43")

	if a.lockID != b.lockID {
		t.Errorf("expected same key to produce the same lock ID, got %d and %d", a.lockID, b.lockID)
	}
	if a.lockID == c.lockID {
		t.Error("expected different keys to produce different lock IDs")
	}
}

func TestNewLock_ChoosesRedisWhenClientProvided(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := NewLock(client, nil, "campaign:1", time.Minute)
	if _, ok := lock.(*RedisLock); !ok {
		t.Errorf("expected a RedisLock when a redis client is provided, got %T", lock)
	}
}

func TestNewLock_FallsBackToPostgres(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	lock := NewLock(nil, db, "campaign:1", time.Minute)
	if _, ok := lock.(*PGAdvisoryLock); !ok {
		t.Errorf("expected a PGAdvisoryLock when no redis client is provided, got %T", lock)
	}
}
