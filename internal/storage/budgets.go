package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

const budgetColumns = `id, user_id, category_id, budget_limit_cents, month, year, created_at, synced`

// BudgetStore persists monthly limits. Spent amounts are derived by the
// aggregation layer and never stored.
type BudgetStore struct {
	db *DB
	q  DBTX
}

func NewBudgetStore(db *DB) *BudgetStore {
	return &BudgetStore{db: db, q: db.sql}
}

func (s *BudgetStore) WithTx(tx *sql.Tx) *BudgetStore {
	return &BudgetStore{db: s.db, q: tx}
}

func (s *BudgetStore) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = stampIfZero(b.CreatedAt)

	_, err := s.q.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.BudgetLimit.Cents, b.Month, b.Year,
		formatTime(b.CreatedAt), boolInt(b.Synced))
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to create budget", log.FieldOperation, log.OpCreate, "budget_id", b.ID, log.FieldUserID, b.UserID, log.FieldError, err)
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (s *BudgetStore) GetByID(ctx context.Context, userID, id string) (core.Budget, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+budgetColumns+`
		FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, &core.NotFoundError{Resource: "budget", ID: id}
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, err)
	}
	return b, nil
}

func (s *BudgetStore) ListByUser(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.list(ctx, `WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// ListForMonth returns the budgets of one month; month is zero based.
func (s *BudgetStore) ListForMonth(ctx context.Context, userID string, month, year int) ([]core.Budget, error) {
	return s.list(ctx, `WHERE user_id = ? AND month = ? AND year = ? ORDER BY created_at, id`, userID, month, year)
}

func (s *BudgetStore) list(ctx context.Context, where string, args ...any) ([]core.Budget, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *BudgetStore) Update(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `UPDATE budgets
		SET category_id = ?, budget_limit_cents = ?, month = ?, year = ?, synced = 0
		WHERE id = ? AND user_id = ?`,
		b.CategoryID, b.BudgetLimit.Cents, b.Month, b.Year, b.ID, b.UserID)
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to update budget", log.FieldOperation, log.OpUpdate, "budget_id", b.ID, log.FieldError, err)
		return fmt.Errorf("update budget: %w", err)
	}
	return nil
}

func (s *BudgetStore) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to delete budget", log.FieldOperation, log.OpDelete, "budget_id", id, log.FieldError, err)
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func scanBudget(r rowScanner) (core.Budget, error) {
	var (
		b         core.Budget
		createdAt string
		synced    int
	)
	if err := r.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.BudgetLimit.Cents, &b.Month, &b.Year, &createdAt, &synced); err != nil {
		return core.Budget{}, err
	}
	b.Synced = synced != 0
	var err error
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}
