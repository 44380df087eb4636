package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bbledger/internal/core"
)

func TestEnsureSchema_FreshDatabase(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"users", "user_interests", "categories", "accounts",
		"transactions", "budgets", "goals", "initialized"} {
		exists, err := tableExists(ctx, db.sql, table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	version, dirty, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestEnsureSchema_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	before, err := columnList(ctx, db.sql, "goals")
	require.NoError(t, err)

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	after, err := columnList(ctx, db.sql, "goals")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnsureSchema_UpgradesLegacyDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE accounts (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, name TEXT NOT NULL,
			balance_cents INTEGER NOT NULL DEFAULT 0, icon TEXT NOT NULL DEFAULT '', created_at TEXT NOT NULL)`,
		`CREATE TABLE transactions (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, type TEXT NOT NULL,
			title TEXT, category_id TEXT, amount_cents INTEGER NOT NULL, account_id TEXT NOT NULL,
			date TEXT NOT NULL, notes TEXT)`,
		`CREATE TABLE goals (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, title TEXT NOT NULL,
			emoji TEXT NOT NULL DEFAULT '', target_amount_cents INTEGER NOT NULL,
			current_amount INTEGER NOT NULL DEFAULT 0, target_date TEXT NOT NULL,
			account_id TEXT NOT NULL, created_at TEXT NOT NULL)`,
		`CREATE TABLE goal_contributions (id TEXT PRIMARY KEY, goal_id TEXT, amount_cents INTEGER)`,
		`INSERT INTO accounts VALUES ('acc-1', 'user-1', 'Savings', 5000, '', '2023-01-01T00:00:00Z')`,
		`INSERT INTO transactions VALUES ('tx-1', 'user-1', 'income', 'Gift', NULL, 5000, 'acc-1',
			'2023-01-02T00:00:00Z', NULL)`,
		`INSERT INTO goals VALUES ('goal-1', 'user-1', 'Bike', '🚲', 100000, 4200,
			'2024-06-01T00:00:00Z', 'acc-1', '2023-01-01T00:00:00Z')`,
	} {
		_, err := legacy.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, legacy.Close())

	db, err := Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureSchema(ctx))

	goalCols, err := columnSet(ctx, db.sql, "goals")
	require.NoError(t, err)
	assert.False(t, goalCols["current_amount"])
	assert.True(t, goalCols["include_balance"])
	assert.True(t, goalCols["status"])

	txCols, err := columnSet(ctx, db.sql, "transactions")
	require.NoError(t, err)
	assert.True(t, txCols["linked_transaction_id"])
	assert.True(t, txCols["synced"])

	exists, err := tableExists(ctx, db.sql, "goal_contributions")
	require.NoError(t, err)
	assert.False(t, exists)

	g, err := NewGoalStore(db).GetByID(ctx, "user-1", "goal-1")
	require.NoError(t, err)
	assert.Equal(t, "Bike", g.Title)
	assert.Equal(t, int64(100000), g.TargetAmount.Cents)
	assert.True(t, g.IncludeBalance)
	assert.False(t, g.Synced)

	a, err := NewAccountStore(db).GetByID(ctx, "user-1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), a.Balance.Cents)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	drift, err := NewLedger(db).AuditBalances(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func openLegacy(t *testing.T, stmts ...string) *DB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := legacy.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, legacy.Close())

	db, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

const legacyCategoriesDDL = `CREATE TABLE categories (id TEXT PRIMARY KEY, user_id TEXT NOT NULL,
	name TEXT NOT NULL, type TEXT NOT NULL, icon TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '', created_at TEXT NOT NULL)`

func TestEnsureSchema_NormalizesLegacyDates(t *testing.T) {
	db := openLegacy(t,
		legacyCategoriesDDL,
		`CREATE TABLE transactions (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, type TEXT NOT NULL,
			title TEXT, category_id TEXT, amount_cents INTEGER NOT NULL, account_id TEXT NOT NULL,
			date TEXT NOT NULL, notes TEXT)`,
		`INSERT INTO categories VALUES ('food', 'user-1', 'Food', 'expense', '', '', '2024-01-01')`,
		`INSERT INTO transactions VALUES ('tx-jun', 'user-1', 'expense', NULL, 'food', 700, 'acc-1', '2024-06-01', NULL)`,
		`INSERT INTO transactions VALUES ('tx-may', 'user-1', 'expense', NULL, 'food', 300, 'acc-1', '2024-05-01 10:00:00', NULL)`,
		`INSERT INTO transactions VALUES ('tx-apr', 'user-1', 'expense', NULL, 'food', 50, 'acc-1', '2024-04-30T23:30:00-01:00', NULL)`,
	)
	ctx := context.Background()
	l := NewLedger(db)
	month := func(m time.Month) (time.Time, time.Time) {
		start := time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}

	tests := []struct {
		month time.Month
		want  int64
	}{
		{time.April, 0},
		{time.May, 350},
		{time.June, 700},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			start, end := month(tt.month)
			got, err := l.SumByCategory(ctx, "user-1", "food", core.Expense, start, end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Cents)
		})
	}

	tx, err := l.GetByID(ctx, "user-1", "tx-may")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC), tx.Date)

	var raw string
	require.NoError(t, db.sql.QueryRow(`SELECT date FROM transactions WHERE id = 'tx-jun'`).Scan(&raw))
	assert.Equal(t, "2024-06-01T00:00:00.000000000Z", raw)
	require.NoError(t, db.sql.QueryRow(`SELECT created_at FROM categories WHERE id = 'food'`).Scan(&raw))
	assert.Equal(t, "2024-01-01T00:00:00.000000000Z", raw)

	require.NoError(t, db.EnsureSchema(ctx))
	start, end := month(time.May)
	got, err := l.SumByCategory(ctx, "user-1", "food", core.Expense, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(350), got.Cents)
}

func TestEnsureSchema_RebuildsSingletonInitialized(t *testing.T) {
	db := openLegacy(t,
		legacyCategoriesDDL,
		`CREATE TABLE initialized (id INTEGER PRIMARY KEY CHECK (id = 1), done INTEGER NOT NULL)`,
		`INSERT INTO initialized VALUES (1, 1)`,
		`INSERT INTO categories VALUES ('food', 'user-1', 'Food', 'expense', '', '', '2024-01-01T00:00:00Z')`,
	)
	ctx := context.Background()

	cols, err := columnSet(ctx, db.sql, "initialized")
	require.NoError(t, err)
	assert.True(t, cols["user_id"])
	assert.False(t, cols["done"])

	seeder := NewSeeder(db)
	seeded, err := seeder.SeedDefaultsIfFirstRun(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, seeded, "a user set up by the old marker is not seeded again")

	own, err := NewCategoryStore(db).ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, own, 1)

	seeded, err = seeder.SeedDefaultsIfFirstRun(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, seeded)
}

func TestEnsureSchema_RebuildsEmptySingletonInitialized(t *testing.T) {
	db := openLegacy(t,
		legacyCategoriesDDL,
		`CREATE TABLE initialized (id INTEGER PRIMARY KEY CHECK (id = 1), done INTEGER NOT NULL)`,
		`INSERT INTO categories VALUES ('food', 'user-1', 'Food', 'expense', '', '', '2024-01-01T00:00:00Z')`,
	)

	seeded, err := NewSeeder(db).SeedDefaultsIfFirstRun(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, seeded)
}
