package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

// constraintError produces a real UNIQUE-violation error from the driver.
func constraintError(t *testing.T) error {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	const insert = `INSERT INTO users (username, identity_hash, status, avatar_url, member_since)
		VALUES ('u', 'h', 'provisional', '', CURRENT_TIMESTAMP)`
	if _, err := db.conn.ExecContext(ctx, insert); err != nil {
		t.Fatalf("seeding row: %v", err)
	}

	_, err := db.conn.ExecContext(ctx, insert)
	if err == nil {
		t.Fatal("duplicate insert did not fail")
	}
	return err
}

// lockContentionError produces a real SQLITE_BUSY by writing while another
// connection holds the write lock. busy_timeout is forced to zero so the
// contended write fails immediately instead of waiting.
func lockContentionError(t *testing.T) error {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "contention.db")

	holder, err := New(path)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { holder.Close() })

	contender, err := New(path)
	if err != nil {
		t.Fatalf("opening second connection: %v", err)
	}
	t.Cleanup(func() { contender.Close() })

	// Pin one connection and take the write lock on it.
	locking, err := holder.conn.Conn(ctx)
	if err != nil {
		t.Fatalf("pinning connection: %v", err)
	}
	t.Cleanup(func() { locking.Close() })
	if _, err := locking.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		t.Fatalf("taking write lock: %v", err)
	}
	t.Cleanup(func() { locking.ExecContext(ctx, `ROLLBACK`) })

	writer, err := contender.conn.Conn(ctx)
	if err != nil {
		t.Fatalf("pinning contender connection: %v", err)
	}
	t.Cleanup(func() { writer.Close() })
	if _, err := writer.ExecContext(ctx, `PRAGMA busy_timeout=0`); err != nil {
		t.Fatalf("disabling busy timeout: %v", err)
	}

	_, err = writer.ExecContext(ctx,
		`INSERT INTO posts (title, content, author, timestamp) VALUES ('t', 'c', 'a', CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Fatal("contended write did not fail")
	}
	return err
}

func TestErrorClassification(t *testing.T) {
	busy := lockContentionError(t)
	constraint := constraintError(t)

	if !isTransient(busy) {
		t.Errorf("lock contention not classified transient: %v", busy)
	}
	if isConstraint(busy) {
		t.Errorf("lock contention misclassified as constraint: %v", busy)
	}

	if !isConstraint(constraint) {
		t.Errorf("UNIQUE violation not classified as constraint: %v", constraint)
	}
	if isTransient(constraint) {
		t.Errorf("UNIQUE violation misclassified as transient: %v", constraint)
	}

	if isTransient(sql.ErrNoRows) || isConstraint(sql.ErrNoRows) {
		t.Error("sql.ErrNoRows must not match either class")
	}
	if isTransient(errors.New("disk gone")) {
		t.Error("a non-driver error must not be transient")
	}
}

func TestWithRetry_TransientThenSucceeds(t *testing.T) {
	busy := lockContentionError(t)

	attempts := 0
	got, err := withRetry(context.Background(), func() (int, error) {
		attempts++
		if attempts < maxStoreAttempts {
			return 0, busy
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if attempts != maxStoreAttempts {
		t.Errorf("attempts = %d, want %d", attempts, maxStoreAttempts)
	}
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	busy := lockContentionError(t)

	attempts := 0
	_, err := withRetry(context.Background(), func() (int, error) {
		attempts++
		return 0, busy
	})

	if err == nil {
		t.Fatal("withRetry() succeeded on an always-failing op")
	}
	if !isTransient(err) {
		t.Errorf("withRetry() returned %v, want the underlying lock error", err)
	}
	if attempts != maxStoreAttempts {
		t.Errorf("attempts = %d, want %d", attempts, maxStoreAttempts)
	}
}

func TestWithRetry_ConstraintIsPermanent(t *testing.T) {
	constraint := constraintError(t)

	attempts := 0
	_, err := withRetry(context.Background(), func() (int, error) {
		attempts++
		return 0, constraint
	})

	if !isConstraint(err) {
		t.Errorf("withRetry() returned %v, want the constraint error unwrapped", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 — constraint violations must not be retried", attempts)
	}
}

func TestWithRetry_PlainErrorIsPermanent(t *testing.T) {
	boom := errors.New("boom")

	attempts := 0
	_, err := withRetry(context.Background(), func() (int, error) {
		attempts++
		return 0, boom
	})

	if !errors.Is(err, boom) {
		t.Errorf("withRetry() returned %v, want the original error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
