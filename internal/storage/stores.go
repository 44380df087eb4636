package storage

import (
	"context"
	"database/sql"
	"time"

	"bbledger/internal/log"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// runInTx runs fn on q when q is already a transaction, otherwise on a new
// transaction of db. Stores bound with WithTx therefore compose into the
// caller's unit of work instead of opening a nested one.
func runInTx(ctx context.Context, db *DB, q DBTX, fn func(q DBTX) error) error {
	if tx, ok := q.(*sql.Tx); ok {
		return fn(tx)
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(tx)
	})
}

// now is replaced in tests that need stable timestamps.
var now = func() time.Time {
	return time.Now().UTC()
}

func stampIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t.UTC()
}

// loggerFor returns the request logger reporting under component.
func loggerFor(ctx context.Context, component string) *log.Logger {
	return log.FromContext(ctx).WithComponent(component)
}
