package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CategoryIncome   CategoryType = "income"
	CategoryExpense  CategoryType = "expense"
	CategoryTransfer CategoryType = "transfer"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
	Debit   TransactionType = "debit"
	Credit  TransactionType = "credit"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

type (
	CategoryType    string
	TransactionType string
	GoalStatus      string

	Category struct {
		ID          string
		UserID      string
		Name        string
		Type        CategoryType
		Icon        string
		Color       string
		Description *string
		CreatedAt   time.Time
		Synced      bool
	}

	// Account balance is a cache of the signed sum of its transactions.
	// Only the ledger changes it.
	Account struct {
		ID        string
		UserID    string
		Name      string
		Balance   Money
		Icon      string
		CreatedAt time.Time
		UpdatedAt time.Time
		Synced    bool
	}

	Transaction struct {
		ID                  string
		UserID              string
		Type                TransactionType
		Title               *string
		CategoryID          *string
		Amount              Money
		AccountID           string
		Date                time.Time
		Notes               *string
		LinkedTransactionID *string
		Synced              bool
	}

	Budget struct {
		ID          string
		UserID      string
		CategoryID  string
		BudgetLimit Money
		Month       int // 0-11
		Year        int
		CreatedAt   time.Time
		Synced      bool
	}

	Goal struct {
		ID                  string
		UserID              string
		Title               string
		Emoji               string
		TargetAmount        Money
		TargetDate          time.Time
		AccountID           string
		IncludeBalance      bool
		MonthlyContribution Money
		Status              GoalStatus
		CreatedAt           time.Time
		Synced              bool
	}

	User struct {
		ID        string
		Name      string
		Email     string
		CreatedAt time.Time
		Synced    bool
	}
)

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

func (t CategoryType) IsValid() bool {
	switch t {
	case CategoryIncome, CategoryExpense, CategoryTransfer:
		return true
	}
	return false
}

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense, Debit, Credit:
		return true
	}
	return false
}

// IsTransferLeg reports whether t is one half of a transfer.
func (t TransactionType) IsTransferLeg() bool {
	return t == Debit || t == Credit
}

// Sign is +1 for money entering an account and -1 for money leaving it.
func (t TransactionType) Sign() int64 {
	switch t {
	case Income, Credit:
		return 1
	case Expense, Debit:
		return -1
	}
	return 0
}

func (s GoalStatus) IsValid() bool {
	return s == GoalActive || s == GoalCompleted
}

// SignedAmount is the effect of the transaction on its account balance.
func (t Transaction) SignedAmount() Money {
	return Money{Cents: t.Amount.Cents * t.Type.Sign()}
}

// IsLinked reports whether the transaction is one leg of a transfer pair.
func (t Transaction) IsLinked() bool {
	return t.LinkedTransactionID != nil && *t.LinkedTransactionID != ""
}

func requireIdentity(resource, id, userID string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError(resource+".id", ErrMissingID)
	}
	if strings.TrimSpace(userID) == "" {
		return NewValidationError(resource+".user_id", ErrMissingUser)
	}
	return nil
}

func (c Category) Validate() error {
	if err := requireIdentity("category", c.ID, c.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("category.name", ErrEmptyName)
	}
	if !c.Type.IsValid() {
		return NewValidationError("category.type", ErrInvalidType)
	}
	return nil
}

func (a Account) Validate() error {
	if err := requireIdentity("account", a.ID, a.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(a.Name) == "" {
		return NewValidationError("account.name", ErrEmptyName)
	}
	return nil
}

// Validate checks the fields every transaction row must carry. Type-specific
// rules (simple vs transfer leg) are enforced by the ledger.
func (t Transaction) Validate() error {
	if err := requireIdentity("transaction", t.ID, t.UserID); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return NewValidationError("transaction.type", ErrInvalidType)
	}
	if err := t.Amount.Validate(); err != nil {
		return NewValidationError("transaction.amount", err)
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return NewValidationError("transaction.account_id", ErrMissingID)
	}
	if t.Date.IsZero() {
		return NewValidationError("transaction.date", ErrZeroDate)
	}
	return nil
}

func (b Budget) Validate() error {
	if err := requireIdentity("budget", b.ID, b.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return NewValidationError("budget.category_id", ErrMissingID)
	}
	if err := b.BudgetLimit.Validate(); err != nil {
		return NewValidationError("budget.budget_limit", err)
	}
	if b.Month < 0 || b.Month > 11 {
		return NewValidationError("budget.month", ErrInvalidMonth)
	}
	if b.Year < 1970 || b.Year > 9999 {
		return NewValidationError("budget.year", errors.New("year out of range"))
	}
	return nil
}

func (g Goal) Validate() error {
	if err := requireIdentity("goal", g.ID, g.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(g.Title) == "" {
		return NewValidationError("goal.title", ErrEmptyName)
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return NewValidationError("goal.target_amount", err)
	}
	if g.TargetDate.IsZero() {
		return NewValidationError("goal.target_date", ErrZeroDate)
	}
	if strings.TrimSpace(g.AccountID) == "" {
		return NewValidationError("goal.account_id", ErrMissingID)
	}
	if g.MonthlyContribution.Cents < 0 {
		return NewValidationError("goal.monthly_contribution", ErrInvalidAmount)
	}
	if !g.Status.IsValid() {
		return NewValidationError("goal.status", ErrInvalidType)
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return NewValidationError("user.id", ErrMissingID)
	}
	return nil
}
