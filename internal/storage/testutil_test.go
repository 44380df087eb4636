package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bbledger/internal/core"
)

const testUser = "user-1"

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func openAccount(t *testing.T, l *Ledger, name string, openingCents int64) core.Account {
	t.Helper()
	a, err := l.OpenAccount(context.Background(), core.Account{
		ID:     core.NewID(),
		UserID: testUser,
		Name:   name,
	}, core.Money{Cents: openingCents})
	require.NoError(t, err)
	return a
}

func balanceOf(t *testing.T, db *DB, accountID string) int64 {
	t.Helper()
	a, err := NewAccountStore(db).GetByID(context.Background(), testUser, accountID)
	require.NoError(t, err)
	return a.Balance.Cents
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
