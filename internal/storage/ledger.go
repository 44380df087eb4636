package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

const transactionColumns = `id, user_id, type, title, category_id, amount_cents, account_id, date, notes,
	linked_transaction_id, synced`

const signedAmountSQL = `CASE WHEN t.type IN ('income', 'credit') THEN t.amount_cents ELSE -t.amount_cents END`

// Ledger records money movement. It is the only writer of account balances:
// every insert, update or delete of a transaction and the matching balance
// adjustments commit together or not at all.
type Ledger struct {
	db *DB
	q  DBTX
}

func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db, q: db.sql}
}

func (l *Ledger) WithTx(tx *sql.Tx) *Ledger {
	return &Ledger{db: l.db, q: tx}
}

// TransferParams describes a movement between two accounts of one user.
type TransferParams struct {
	UserID        string
	FromAccountID string
	ToAccountID   string
	Amount        core.Money
	Date          time.Time
	Title         *string
	Notes         *string
	CategoryID    *string
}

// CategoryTotal is the signed sum of a category's transactions. CategoryID
// is empty for uncategorised rows and rows whose category no longer exists.
type CategoryTotal struct {
	CategoryID string
	Name       string
	Total      core.Money
	Count      int
}

// TransactionView is a transaction joined with display names; missing
// references render as "Unknown".
type TransactionView struct {
	core.Transaction
	AccountName  string
	CategoryName string
}

type BalanceDrift struct {
	AccountID string
	Name      string
	Stored    core.Money
	Computed  core.Money
}

const unknownName = "Unknown"

// unit runs fn as one atomic unit. Validation and lookup failures pass
// through unchanged; anything else is reported as *core.NotPersistedError.
func (l *Ledger) unit(ctx context.Context, op string, fn func(q DBTX) error) error {
	err := runInTx(ctx, l.db, l.q, fn)
	if err == nil {
		return nil
	}
	if core.IsValidation(err) || core.IsNotFound(err) {
		return err
	}
	loggerFor(ctx, log.ComponentLedger).
		WithFields(log.NewFields().WithOperation(op).WithError(err)).
		ErrorContext(ctx, "Ledger operation rolled back")
	return &core.NotPersistedError{Op: op, Err: err}
}

// OpenAccount creates an account and, when opening is non-zero, records the
// opening balance as an income (or expense, if negative) transaction.
func (l *Ledger) OpenAccount(ctx context.Context, a core.Account, opening core.Money) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	err := l.unit(ctx, "open account", func(q DBTX) error {
		var err error
		if a, err = insertAccount(ctx, q, a); err != nil {
			return err
		}
		if opening.IsZero() {
			return nil
		}
		title := "Opening balance"
		t := core.Transaction{
			ID:        core.NewID(),
			UserID:    a.UserID,
			Type:      core.Income,
			Title:     &title,
			Amount:    opening,
			AccountID: a.ID,
			Date:      a.CreatedAt,
		}
		if opening.IsNegative() {
			t.Type = core.Expense
			t.Amount = opening.Neg()
		}
		if err := insertTransaction(ctx, q, t); err != nil {
			return err
		}
		return adjustBalance(ctx, q, a.UserID, a.ID, t.SignedAmount())
	})
	if err != nil {
		return core.Account{}, err
	}
	a.Balance = opening
	return a, nil
}

// RecordSimple persists an income or expense and applies it to the account
// balance. An empty ID is generated.
func (l *Ledger) RecordSimple(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = core.NewID()
	}
	if t.Type != core.Income && t.Type != core.Expense {
		return core.Transaction{}, core.NewValidationError("transaction.type", core.ErrInvalidType)
	}
	if t.IsLinked() {
		return core.Transaction{}, core.NewValidationError("transaction.linked_transaction_id",
			errors.New("income and expense cannot be linked"))
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.Date = t.Date.UTC()

	err := l.unit(ctx, "record transaction", func(q DBTX) error {
		if err := requireAccount(ctx, q, t.UserID, t.AccountID, "transaction.account_id"); err != nil {
			return err
		}
		if err := requireCategory(ctx, q, t.UserID, t.CategoryID); err != nil {
			return err
		}
		if err := insertTransaction(ctx, q, t); err != nil {
			return err
		}
		return adjustBalance(ctx, q, t.UserID, t.AccountID, t.SignedAmount())
	})
	if err != nil {
		return core.Transaction{}, err
	}

	loggerFor(ctx, log.ComponentLedger).
		WithFields(log.NewFields().
			WithOperation(log.OpRecord).
			WithUser(t.UserID).
			WithTransaction(t.ID, t.AccountID, t.Amount.Cents)).
		InfoContext(ctx, "Transaction recorded", "type", t.Type)
	return t, nil
}

// RecordTransfer writes the debit and credit legs, linked to each other, and
// moves the amount between the two balances. All four writes are one unit.
func (l *Ledger) RecordTransfer(ctx context.Context, p TransferParams) (debit, credit core.Transaction, err error) {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return debit, credit, core.NewValidationError("transfer.user_id", core.ErrMissingUser)
	case strings.TrimSpace(p.FromAccountID) == "":
		return debit, credit, core.NewValidationError("transfer.from_account_id", core.ErrMissingID)
	case strings.TrimSpace(p.ToAccountID) == "":
		return debit, credit, core.NewValidationError("transfer.to_account_id", core.ErrMissingID)
	case p.FromAccountID == p.ToAccountID:
		return debit, credit, core.NewValidationError("transfer.to_account_id", core.ErrSameAccount)
	case p.Date.IsZero():
		return debit, credit, core.NewValidationError("transfer.date", core.ErrZeroDate)
	}
	if err := p.Amount.Validate(); err != nil {
		return debit, credit, core.NewValidationError("transfer.amount", err)
	}

	debitID, creditID := core.NewID(), core.NewID()
	debit = core.Transaction{
		ID:                  debitID,
		UserID:              p.UserID,
		Type:                core.Debit,
		Title:               p.Title,
		CategoryID:          p.CategoryID,
		Amount:              p.Amount,
		AccountID:           p.FromAccountID,
		Date:                p.Date.UTC(),
		Notes:               p.Notes,
		LinkedTransactionID: &creditID,
	}
	credit = debit
	credit.ID = creditID
	credit.Type = core.Credit
	credit.AccountID = p.ToAccountID
	credit.LinkedTransactionID = &debitID

	err = l.unit(ctx, "record transfer", func(q DBTX) error {
		if err := requireAccount(ctx, q, p.UserID, p.FromAccountID, "transfer.from_account_id"); err != nil {
			return err
		}
		if err := requireAccount(ctx, q, p.UserID, p.ToAccountID, "transfer.to_account_id"); err != nil {
			return err
		}
		if err := requireCategory(ctx, q, p.UserID, p.CategoryID); err != nil {
			return err
		}
		if err := insertTransaction(ctx, q, debit); err != nil {
			return err
		}
		if err := insertTransaction(ctx, q, credit); err != nil {
			return err
		}
		if err := adjustBalance(ctx, q, p.UserID, debit.AccountID, debit.SignedAmount()); err != nil {
			return err
		}
		return adjustBalance(ctx, q, p.UserID, credit.AccountID, credit.SignedAmount())
	})
	if err != nil {
		return core.Transaction{}, core.Transaction{}, err
	}

	loggerFor(ctx, log.ComponentLedger).
		WithFields(log.NewFields().
			WithOperation(log.OpTransfer).
			WithUser(p.UserID).
			WithTransaction(debit.ID, p.FromAccountID, p.Amount.Cents)).
		InfoContext(ctx, "Transfer recorded",
			log.FieldLinkedTransactionID, credit.ID,
			"to_account_id", p.ToAccountID)
	return debit, credit, nil
}

// Update rewrites a transaction and re-applies its balance effect. For a
// transfer leg, amount, date, title, notes and category are applied to both
// legs; type and account of a leg cannot change. A missing row is a no-op.
func (l *Ledger) Update(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.Date = t.Date.UTC()

	return l.unit(ctx, "update transaction", func(q DBTX) error {
		old, err := getTransaction(ctx, q, t.UserID, t.ID)
		if core.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := requireCategory(ctx, q, t.UserID, t.CategoryID); err != nil {
			return err
		}

		if !old.IsLinked() && !old.Type.IsTransferLeg() {
			if t.Type.IsTransferLeg() || t.IsLinked() {
				return core.NewValidationError("transaction.type", core.ErrInvalidType)
			}
			if err := requireAccount(ctx, q, t.UserID, t.AccountID, "transaction.account_id"); err != nil {
				return err
			}
			if err := reverseBalance(ctx, q, old); err != nil {
				return err
			}
			if err := adjustBalance(ctx, q, t.UserID, t.AccountID, t.SignedAmount()); err != nil {
				return err
			}
			return updateTransactionRow(ctx, q, t)
		}

		if t.Type != old.Type || t.AccountID != old.AccountID {
			return core.NewValidationError("transaction.type", errors.New("transfer legs keep their type and account"))
		}
		legs := []core.Transaction{old}
		if old.IsLinked() {
			if other, err := getTransaction(ctx, q, t.UserID, *old.LinkedTransactionID); err == nil {
				legs = append(legs, other)
			} else if !core.IsNotFound(err) {
				return err
			}
		}
		for _, leg := range legs {
			next := leg
			next.Amount = t.Amount
			next.Date = t.Date
			next.Title = t.Title
			next.Notes = t.Notes
			next.CategoryID = t.CategoryID
			delta := next.SignedAmount().Sub(leg.SignedAmount())
			if !delta.IsZero() {
				if err := adjustBalance(ctx, q, leg.UserID, leg.AccountID, delta); err != nil {
					return err
				}
			}
			if err := updateTransactionRow(ctx, q, next); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a transaction and reverses its balance effect. When the
// row is a transfer leg, the counterpart is removed and reversed in the same
// unit. A missing row is a no-op.
func (l *Ledger) Delete(ctx context.Context, userID, id string) error {
	var removed []core.Transaction
	err := l.unit(ctx, "delete transaction", func(q DBTX) error {
		t, err := getTransaction(ctx, q, userID, id)
		if core.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		legs := []core.Transaction{t}
		if t.IsLinked() {
			other, err := getTransaction(ctx, q, userID, *t.LinkedTransactionID)
			switch {
			case err == nil:
				legs = append(legs, other)
			case core.IsNotFound(err):
				loggerFor(ctx, log.ComponentLedger).WarnContext(ctx, "Transfer counterpart missing, deleting single leg",
					log.FieldTransactionID, t.ID,
					log.FieldLinkedTransactionID, *t.LinkedTransactionID)
			default:
				return err
			}
		}

		for _, leg := range legs {
			if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, leg.ID, userID); err != nil {
				return fmt.Errorf("delete transaction %s: %w", leg.ID, err)
			}
			if err := reverseBalance(ctx, q, leg); err != nil {
				return err
			}
		}
		removed = legs
		return nil
	})
	if err != nil {
		return err
	}
	logger := loggerFor(ctx, log.ComponentLedger)
	for _, leg := range removed {
		logger.WithFields(log.NewFields().
			WithOperation(log.OpDelete).
			WithUser(userID).
			WithTransaction(leg.ID, leg.AccountID, leg.Amount.Cents)).
			InfoContext(ctx, "Transaction deleted")
	}
	return nil
}

// DetachCategory clears category_id on the user's transactions that point
// at categoryID and returns how many rows changed.
func (l *Ledger) DetachCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	return detachCategory(ctx, l.q, userID, categoryID)
}

// detachCategory clears categoryID from every transaction of userID and
// marks the touched rows dirty.
func detachCategory(ctx context.Context, q DBTX, userID, categoryID string) (int64, error) {
	res, err := q.ExecContext(ctx, `UPDATE transactions SET category_id = NULL, synced = 0
		WHERE user_id = ? AND category_id = ?`, userID, categoryID)
	if err != nil {
		loggerFor(ctx, log.ComponentLedger).ErrorContext(ctx, "Failed to detach category", log.FieldCategoryID, categoryID, log.FieldError, err)
		return 0, fmt.Errorf("detach category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("detach category: %w", err)
	}
	return n, nil
}

func (l *Ledger) GetByID(ctx context.Context, userID, id string) (core.Transaction, error) {
	return getTransaction(ctx, l.q, userID, id)
}

func (l *Ledger) GetByAccount(ctx context.Context, userID, accountID string) ([]core.Transaction, error) {
	return l.list(ctx, `WHERE user_id = ? AND account_id = ?`, userID, accountID)
}

func (l *Ledger) GetByCategory(ctx context.Context, userID, categoryID string) ([]core.Transaction, error) {
	return l.list(ctx, `WHERE user_id = ? AND category_id = ?`, userID, categoryID)
}

func (l *Ledger) GetAll(ctx context.Context, userID string) ([]core.Transaction, error) {
	return l.list(ctx, `WHERE user_id = ?`, userID)
}

func (l *Ledger) list(ctx context.Context, where string, args ...any) ([]core.Transaction, error) {
	rows, err := l.q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions `+where+`
		ORDER BY date DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetCategoryTotals returns the signed sum per category of transactions
// dated in [start, end). Categories without transactions are absent.
func (l *Ledger) GetCategoryTotals(ctx context.Context, userID string, start, end time.Time) ([]CategoryTotal, error) {
	rows, err := l.q.QueryContext(ctx, `SELECT COALESCE(c.id, ''), COALESCE(c.name, ?),
			SUM(`+signedAmountSQL+`), COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id AND c.user_id = t.user_id
		WHERE t.user_id = ? AND t.date >= ? AND t.date < ?
		GROUP BY COALESCE(c.id, '')
		ORDER BY 2, 1`,
		unknownName, userID, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Total.Cents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// SumByCategory adds up the amounts of one transaction type in a category
// over [start, end).
func (l *Ledger) SumByCategory(ctx context.Context, userID, categoryID string, typ core.TransactionType, start, end time.Time) (core.Money, error) {
	var cents int64
	err := l.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND category_id = ? AND type = ? AND date >= ? AND date < ?`,
		userID, categoryID, string(typ), formatTime(start), formatTime(end)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum category %s: %w", categoryID, err)
	}
	return core.Money{Cents: cents}, nil
}

// ListView returns the newest transactions with account and category names.
// limit <= 0 means no limit.
func (l *Ledger) ListView(ctx context.Context, userID string, limit int) ([]TransactionView, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.q.QueryContext(ctx, `SELECT t.id, t.user_id, t.type, t.title, t.category_id, t.amount_cents,
			t.account_id, t.date, t.notes, t.linked_transaction_id, t.synced,
			COALESCE(a.name, ?), COALESCE(c.name, ?)
		FROM transactions t
		LEFT JOIN accounts a ON a.id = t.account_id AND a.user_id = t.user_id
		LEFT JOIN categories c ON c.id = t.category_id AND c.user_id = t.user_id
		WHERE t.user_id = ?
		ORDER BY t.date DESC, t.id
		LIMIT ?`, unknownName, unknownName, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transaction view: %w", err)
	}
	defer rows.Close()

	var out []TransactionView
	for rows.Next() {
		var v TransactionView
		t, err := scanTransaction(rows, &v.AccountName, &v.CategoryName)
		if err != nil {
			return nil, fmt.Errorf("scan transaction view: %w", err)
		}
		v.Transaction = t
		out = append(out, v)
	}
	return out, rows.Err()
}

// AuditBalances recomputes every account balance of userID from its
// transactions and returns the accounts whose stored balance differs.
func (l *Ledger) AuditBalances(ctx context.Context, userID string) ([]BalanceDrift, error) {
	rows, err := l.q.QueryContext(ctx, `SELECT a.id, a.name, a.balance_cents,
			COALESCE((SELECT SUM(`+signedAmountSQL+`) FROM transactions t
				WHERE t.account_id = a.id AND t.user_id = a.user_id), 0)
		FROM accounts a
		WHERE a.user_id = ?
		ORDER BY a.created_at, a.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("audit balances: %w", err)
	}
	defer rows.Close()

	var drift []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Name, &d.Stored.Cents, &d.Computed.Cents); err != nil {
			return nil, fmt.Errorf("scan balance audit: %w", err)
		}
		if d.Stored != d.Computed {
			drift = append(drift, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		loggerFor(ctx, log.ComponentLedger).WarnContext(ctx, "Account balances drifted", log.FieldUserID, userID, "accounts", len(drift))
	}
	return drift, nil
}

func insertTransaction(ctx context.Context, q DBTX, t core.Transaction) error {
	_, err := q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), nullString(t.Title), nullString(t.CategoryID), t.Amount.Cents,
		t.AccountID, formatTime(t.Date), nullString(t.Notes), nullString(t.LinkedTransactionID), boolInt(t.Synced))
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func updateTransactionRow(ctx context.Context, q DBTX, t core.Transaction) error {
	_, err := q.ExecContext(ctx, `UPDATE transactions
		SET type = ?, title = ?, category_id = ?, amount_cents = ?, account_id = ?, date = ?, notes = ?, synced = 0
		WHERE id = ? AND user_id = ?`,
		string(t.Type), nullString(t.Title), nullString(t.CategoryID), t.Amount.Cents, t.AccountID,
		formatTime(t.Date), nullString(t.Notes), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return nil
}

// adjustBalance adds delta to the account balance. The account must exist.
func adjustBalance(ctx context.Context, q DBTX, userID, accountID string, delta core.Money) error {
	res, err := q.ExecContext(ctx, `UPDATE accounts
		SET balance_cents = balance_cents + ?, updated_at = ?, synced = 0
		WHERE id = ? AND user_id = ?`,
		delta.Cents, formatTime(now()), accountID, userID)
	if err != nil {
		return fmt.Errorf("adjust balance of %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance of %s: %w", accountID, err)
	}
	if n == 0 {
		return fmt.Errorf("adjust balance of %s: %w", accountID, core.ErrUnknownRef)
	}
	return nil
}

// reverseBalance undoes t's effect on its account. An account that no
// longer exists has no balance to correct.
func reverseBalance(ctx context.Context, q DBTX, t core.Transaction) error {
	err := adjustBalance(ctx, q, t.UserID, t.AccountID, t.SignedAmount().Neg())
	if errors.Is(err, core.ErrUnknownRef) {
		loggerFor(ctx, log.ComponentLedger).WarnContext(ctx, "Account missing while reversing transaction",
			log.FieldTransactionID, t.ID, log.FieldAccountID, t.AccountID)
		return nil
	}
	return err
}

func requireAccount(ctx context.Context, q DBTX, userID, accountID, field string) error {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID).Scan(&n)
	if err != nil {
		return fmt.Errorf("resolve account %s: %w", accountID, err)
	}
	if n == 0 {
		return core.NewValidationError(field, core.ErrUnknownRef)
	}
	return nil
}

// requireCategory accepts a nil or empty category.
func requireCategory(ctx context.Context, q DBTX, userID string, categoryID *string) error {
	if categoryID == nil || *categoryID == "" {
		return nil
	}
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?`, *categoryID, userID).Scan(&n)
	if err != nil {
		return fmt.Errorf("resolve category %s: %w", *categoryID, err)
	}
	if n == 0 {
		return core.NewValidationError("transaction.category_id", core.ErrUnknownRef)
	}
	return nil
}

func getTransaction(ctx context.Context, q DBTX, userID, id string) (core.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{Resource: "transaction", ID: id}
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// scanTransaction reads the transactionColumns, followed by any extra
// destinations the query selects after them.
func scanTransaction(r rowScanner, extra ...any) (core.Transaction, error) {
	var (
		t                      core.Transaction
		typ, date              string
		title, category, notes sql.NullString
		linked                 sql.NullString
		synced                 int
	)
	dest := append([]any{&t.ID, &t.UserID, &typ, &title, &category, &t.Amount.Cents, &t.AccountID,
		&date, &notes, &linked, &synced}, extra...)
	if err := r.Scan(dest...); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Title = stringPtr(title)
	t.CategoryID = stringPtr(category)
	t.Notes = stringPtr(notes)
	t.LinkedTransactionID = stringPtr(linked)
	t.Synced = synced != 0
	var err error
	if t.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}
