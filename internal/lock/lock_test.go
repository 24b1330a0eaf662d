package lock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/staminads/staminads/internal/settings"
)

func newLease(t *testing.T, holder string) (*Lease, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	st := &settings.Store{DB: conn, Database: "staminads_system", Table: "settings"}
	return New(st, holder, 5*time.Minute), mock
}

func lockRows(holder string, age time.Duration) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"value", "updated_at"}).
		AddRow(holder, time.Now().UTC().Add(-age))
}

func TestTryAcquireWhenAbsent(t *testing.T) {
	l, mock := newLease(t, "web-1")
	mock.ExpectQuery("SELECT value, updated_at").
		WithArgs(settings.LockKey).
		WillReturnRows(sqlmock.NewRows([]string{"value", "updated_at"}))
	mock.ExpectExec("INSERT INTO staminads_system.settings").
		WithArgs(settings.LockKey, "web-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	st, err := l.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !st.Acquired || st.Holder != "web-1" || st.Previous != "" {
		t.Fatalf("unexpected status: %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTryAcquireHeldByFreshHolder(t *testing.T) {
	l, mock := newLease(t, "web-2")
	mock.ExpectQuery("SELECT value, updated_at").
		WithArgs(settings.LockKey).
		WillReturnRows(lockRows("web-1", 30*time.Second))

	st, err := l.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if st.Acquired {
		t.Fatal("must not acquire a fresh lease")
	}
	if st.Holder != "web-1" {
		t.Fatalf("expected current holder web-1, got %q", st.Holder)
	}
	// No insert may follow a fresh-holder read.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTryAcquireReclaimsStaleLease(t *testing.T) {
	l, mock := newLease(t, "web-2")
	mock.ExpectQuery("SELECT value, updated_at").
		WithArgs(settings.LockKey).
		WillReturnRows(lockRows("web-1", 10*time.Minute))
	mock.ExpectExec("INSERT INTO staminads_system.settings").
		WithArgs(settings.LockKey, "web-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	st, err := l.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !st.Acquired || st.Previous != "web-1" {
		t.Fatalf("expected stale reclaim from web-1: %+v", st)
	}
	if st.Age < 10*time.Minute {
		t.Fatalf("age not reported: %v", st.Age)
	}
}

func TestTryAcquireIsIdempotentWhileHeld(t *testing.T) {
	l, mock := newLease(t, "web-1")
	mock.ExpectQuery("SELECT value, updated_at").
		WithArgs(settings.LockKey).
		WillReturnRows(sqlmock.NewRows([]string{"value", "updated_at"}))
	mock.ExpectExec("INSERT INTO staminads_system.settings").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if _, err := l.TryAcquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	st, err := l.TryAcquire(context.Background())
	if err != nil || !st.Acquired {
		t.Fatalf("second acquire while held: %+v, %v", st, err)
	}
	// Only the first acquire touched the database.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReleaseDeletesOnlyWhenHeld(t *testing.T) {
	l, mock := newLease(t, "web-1")

	// Not held: release is a no-op.
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("release unheld: %v", err)
	}

	mock.ExpectQuery("SELECT value, updated_at").
		WillReturnRows(sqlmock.NewRows([]string{"value", "updated_at"}))
	mock.ExpectExec("INSERT INTO staminads_system.settings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM staminads_system.settings WHERE key").
		WithArgs(settings.LockKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := l.TryAcquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	// A second release after the first must not issue another delete.
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("double release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
