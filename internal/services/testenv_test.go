package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bbledger/internal/core"
	"bbledger/internal/storage"
)

const testUser = "user-1"

type testEnv struct {
	db         *storage.DB
	ledger     *storage.Ledger
	accounts   *storage.AccountStore
	budgets    *storage.BudgetStore
	categories *storage.CategoryStore
	goals      *storage.GoalStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(ctx))

	return &testEnv{
		db:         db,
		ledger:     storage.NewLedger(db),
		accounts:   storage.NewAccountStore(db),
		budgets:    storage.NewBudgetStore(db),
		categories: storage.NewCategoryStore(db),
		goals:      storage.NewGoalStore(db),
	}
}

func (e *testEnv) account(t *testing.T, name string, openingCents int64) core.Account {
	t.Helper()
	a, err := e.ledger.OpenAccount(context.Background(), core.Account{
		ID: core.NewID(), UserID: testUser, Name: name,
	}, core.Money{Cents: openingCents})
	require.NoError(t, err)
	return a
}

func (e *testEnv) category(t *testing.T, id, name string, typ core.CategoryType) core.Category {
	t.Helper()
	c, err := e.categories.Create(context.Background(), core.Category{ID: id, UserID: testUser, Name: name, Type: typ})
	require.NoError(t, err)
	return c
}

func (e *testEnv) record(t *testing.T, typ core.TransactionType, cents int64, accountID string, categoryID *string, date time.Time) core.Transaction {
	t.Helper()
	tx, err := e.ledger.RecordSimple(context.Background(), core.Transaction{
		UserID: testUser, Type: typ, Amount: core.Money{Cents: cents},
		AccountID: accountID, CategoryID: categoryID, Date: date,
	})
	require.NoError(t, err)
	return tx
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
