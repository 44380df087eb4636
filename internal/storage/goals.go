package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

const goalColumns = `id, user_id, title, emoji, target_amount_cents, target_date, account_id,
	include_balance, monthly_contribution_cents, status, created_at, synced`

// GoalStore persists savings goals. A goal's current amount is the balance of
// its dedicated account and is never stored here.
type GoalStore struct {
	db *DB
	q  DBTX
}

func NewGoalStore(db *DB) *GoalStore {
	return &GoalStore{db: db, q: db.sql}
}

func (s *GoalStore) WithTx(tx *sql.Tx) *GoalStore {
	return &GoalStore{db: s.db, q: tx}
}

func (s *GoalStore) Create(ctx context.Context, g core.Goal) (core.Goal, error) {
	return insertGoal(ctx, s.q, g)
}

// CreateWithAccount creates the goal's dedicated account and the goal as a
// single unit. g.AccountID is overwritten with account.ID.
func (s *GoalStore) CreateWithAccount(ctx context.Context, g core.Goal, account core.Account) (core.Goal, core.Account, error) {
	if account.UserID == "" {
		account.UserID = g.UserID
	}
	if account.UserID != g.UserID {
		return core.Goal{}, core.Account{}, core.NewValidationError("goal.account_id", core.ErrUnknownRef)
	}
	g.AccountID = account.ID
	if err := account.Validate(); err != nil {
		return core.Goal{}, core.Account{}, err
	}
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, core.Account{}, err
	}

	err := runInTx(ctx, s.db, s.q, func(q DBTX) error {
		var err error
		if account, err = insertAccount(ctx, q, account); err != nil {
			return err
		}
		g, err = insertGoal(ctx, q, g)
		return err
	})
	if err != nil {
		return core.Goal{}, core.Account{}, &core.NotPersistedError{Op: "create goal", Err: err}
	}
	return g, account, nil
}

func insertGoal(ctx context.Context, q DBTX, g core.Goal) (core.Goal, error) {
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.CreatedAt = stampIfZero(g.CreatedAt)

	_, err := q.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, g.Emoji, g.TargetAmount.Cents, formatTime(g.TargetDate), g.AccountID,
		boolInt(g.IncludeBalance), g.MonthlyContribution.Cents, string(g.Status),
		formatTime(g.CreatedAt), boolInt(g.Synced))
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to create goal", log.FieldOperation, log.OpCreate, "goal_id", g.ID, log.FieldUserID, g.UserID, log.FieldError, err)
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) GetByID(ctx context.Context, userID, id string) (core.Goal, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+goalColumns+`
		FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, &core.NotFoundError{Resource: "goal", ID: id}
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %s: %w", id, err)
	}
	return g, nil
}

func (s *GoalStore) ListByUser(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+goalColumns+`
		FROM goals WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *GoalStore) Update(ctx context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `UPDATE goals
		SET title = ?, emoji = ?, target_amount_cents = ?, target_date = ?, account_id = ?,
		    include_balance = ?, monthly_contribution_cents = ?, status = ?, synced = 0
		WHERE id = ? AND user_id = ?`,
		g.Title, g.Emoji, g.TargetAmount.Cents, formatTime(g.TargetDate), g.AccountID,
		boolInt(g.IncludeBalance), g.MonthlyContribution.Cents, string(g.Status), g.ID, g.UserID)
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to update goal", log.FieldOperation, log.OpUpdate, "goal_id", g.ID, log.FieldError, err)
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

// Delete removes the goal only; its dedicated account and transactions stay.
func (s *GoalStore) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to delete goal", log.FieldOperation, log.OpDelete, "goal_id", id, log.FieldError, err)
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

func scanGoal(r rowScanner) (core.Goal, error) {
	var (
		g                     core.Goal
		targetDate, createdAt string
		status                string
		includeBalance        int
		synced                int
	)
	err := r.Scan(&g.ID, &g.UserID, &g.Title, &g.Emoji, &g.TargetAmount.Cents, &targetDate, &g.AccountID,
		&includeBalance, &g.MonthlyContribution.Cents, &status, &createdAt, &synced)
	if err != nil {
		return core.Goal{}, err
	}
	g.IncludeBalance = includeBalance != 0
	g.Status = core.GoalStatus(status)
	g.Synced = synced != 0
	if g.TargetDate, err = parseTime(targetDate); err != nil {
		return core.Goal{}, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}
