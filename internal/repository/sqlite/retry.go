package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Writes occasionally hit SQLITE_BUSY when another connection holds the
// write lock. Those are the only failures worth retrying: constraint
// violations, not-found and everything else are permanent, so bounded retry
// never changes the observable outcome of an operation — it only rides out
// lock contention.
const maxStoreAttempts = 3

// withRetry runs op with exponential backoff, retrying only transient
// SQLite lock errors.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	wrapped := func() (T, error) {
		v, err := op()
		if err != nil && !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond

	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxStoreAttempts),
	)
}

// isTransient reports whether err is a lock-contention error worth retrying.
func isTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff { // primary result code
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// isConstraint reports whether err is a uniqueness/constraint violation.
// The repositories map these to apperror.Conflict so the service layer can
// surface "username taken" style rejections.
func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
