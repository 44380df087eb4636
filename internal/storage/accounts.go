package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

const accountColumns = `id, user_id, name, balance_cents, icon, created_at, updated_at, synced`

// AccountStore handles account metadata. The balance column is written only
// by the Ledger.
type AccountStore struct {
	db *DB
	q  DBTX
}

func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db, q: db.sql}
}

func (s *AccountStore) WithTx(tx *sql.Tx) *AccountStore {
	return &AccountStore{db: s.db, q: tx}
}

// Create inserts the account with a zero balance regardless of a.Balance.
// Use Ledger.OpenAccount for an opening balance.
func (s *AccountStore) Create(ctx context.Context, a core.Account) (core.Account, error) {
	return insertAccount(ctx, s.q, a)
}

func insertAccount(ctx context.Context, q DBTX, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	a.Balance = core.Money{}
	a.CreatedAt = stampIfZero(a.CreatedAt)
	a.UpdatedAt = a.CreatedAt

	_, err := q.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Icon, formatTime(a.CreatedAt), formatTime(a.UpdatedAt), boolInt(a.Synced))
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to create account", log.FieldOperation, log.OpCreate, log.FieldAccountID, a.ID, log.FieldUserID, a.UserID, log.FieldError, err)
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByID(ctx context.Context, userID, id string) (core.Account, error) {
	return getAccount(ctx, s.q, userID, id)
}

func getAccount(ctx context.Context, q DBTX, userID, id string) (core.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+`
		FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, &core.NotFoundError{Resource: "account", ID: id}
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

func (s *AccountStore) ListByUser(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+`
		FROM accounts WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update renames or re-icons an account. The balance is never written here.
func (s *AccountStore) Update(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `UPDATE accounts
		SET name = ?, icon = ?, updated_at = ?, synced = 0
		WHERE id = ? AND user_id = ?`,
		a.Name, a.Icon, formatTime(now()), a.ID, a.UserID)
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to update account", log.FieldOperation, log.OpUpdate, log.FieldAccountID, a.ID, log.FieldError, err)
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (s *AccountStore) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to delete account", log.FieldOperation, log.OpDelete, log.FieldAccountID, id, log.FieldError, err)
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func scanAccount(r rowScanner) (core.Account, error) {
	var (
		a                    core.Account
		createdAt, updatedAt string
		synced               int
	)
	if err := r.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance.Cents, &a.Icon, &createdAt, &updatedAt, &synced); err != nil {
		return core.Account{}, err
	}
	a.Synced = synced != 0
	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Account{}, err
	}
	// rows from before updated_at existed carry ''
	if updatedAt == "" {
		a.UpdatedAt = a.CreatedAt
	} else if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Account{}, err
	}
	return a, nil
}
