package core

import (
	"errors"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestTransactionTypeSign(t *testing.T) {
	cases := []struct {
		typ  TransactionType
		sign int64
	}{
		{Income, 1},
		{Credit, 1},
		{Expense, -1},
		{Debit, -1},
		{TransactionType("bogus"), 0},
	}
	for _, tc := range cases {
		if got := tc.typ.Sign(); got != tc.sign {
			t.Fatalf("%s: expected sign %d, got %d", tc.typ, tc.sign, got)
		}
	}
}

func TestSignedAmount(t *testing.T) {
	tx := Transaction{Type: Expense, Amount: Money{Cents: 5000}}
	if got := tx.SignedAmount(); got.Cents != -5000 {
		t.Fatalf("expected -5000, got %d", got.Cents)
	}
	tx.Type = Credit
	if got := tx.SignedAmount(); got.Cents != 5000 {
		t.Fatalf("expected 5000, got %d", got.Cents)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:        "t1",
		UserID:    "u1",
		Type:      Expense,
		Amount:    Money{Cents: 100},
		AccountID: "a1",
		Date:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"missing id", func(t *Transaction) { t.ID = "" }, ErrMissingID},
		{"missing user", func(t *Transaction) { t.UserID = " " }, ErrMissingUser},
		{"bad type", func(t *Transaction) { t.Type = "refund" }, ErrInvalidType},
		{"zero amount", func(t *Transaction) { t.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(t *Transaction) { t.Amount = Money{Cents: -1} }, ErrInvalidAmount},
		{"missing account", func(t *Transaction) { t.AccountID = "" }, ErrMissingID},
		{"zero date", func(t *Transaction) { t.Date = time.Time{} }, ErrZeroDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := good
			tt.mutate(&tx)
			err := tx.Validate()
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{ID: "b1", UserID: "u1", CategoryID: "c1", BudgetLimit: Money{Cents: 100000}, Month: 5, Year: 2024}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Budget{
		{ID: "b1", UserID: "u1", CategoryID: "c1", BudgetLimit: Money{Cents: 1}, Month: 12, Year: 2024},
		{ID: "b1", UserID: "u1", CategoryID: "c1", BudgetLimit: Money{Cents: 1}, Month: -1, Year: 2024},
		{ID: "b1", UserID: "u1", CategoryID: "c1", BudgetLimit: Money{}, Month: 1, Year: 2024},
		{ID: "b1", UserID: "u1", BudgetLimit: Money{Cents: 1}, Month: 1, Year: 2024},
		{UserID: "u1", CategoryID: "c1", BudgetLimit: Money{Cents: 1}, Month: 1, Year: 2024},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestGoalValidate(t *testing.T) {
	good := Goal{
		ID:           "g1",
		UserID:       "u1",
		Title:        "Bike",
		TargetAmount: Money{Cents: 1200000},
		TargetDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		AccountID:    "a1",
		Status:       GoalActive,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Status = "paused"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	bad = good
	bad.AccountID = ""
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for missing dedicated account")
	}
}

func TestCategoryValidate(t *testing.T) {
	c := Category{ID: "c1", UserID: "u1", Name: "Food", Type: CategoryExpense, Description: ptr("groceries")}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	c.Type = "debit"
	if err := c.Validate(); err == nil {
		t.Fatalf("debit is not a category type")
	}
}

func TestIsLinked(t *testing.T) {
	if (Transaction{}).IsLinked() {
		t.Fatalf("nil link must not count as linked")
	}
	if (Transaction{LinkedTransactionID: ptr("")}).IsLinked() {
		t.Fatalf("empty link must not count as linked")
	}
	if !(Transaction{LinkedTransactionID: ptr("x")}).IsLinked() {
		t.Fatalf("expected linked")
	}
}
