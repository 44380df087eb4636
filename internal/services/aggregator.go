package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bbledger/internal/core"
	"bbledger/internal/log"
	"bbledger/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// BudgetStatus is a budget together with what has been spent against it.
// Available goes negative once the budget is overrun.
type BudgetStatus struct {
	Budget      core.Budget
	Spent       core.Money
	Available   core.Money
	PercentUsed decimal.Decimal
}

func (s BudgetStatus) OverLimit() bool {
	return s.Available.IsNegative()
}

type GoalProgress struct {
	Goal                      core.Goal
	Current                   core.Money
	Percent                   decimal.Decimal // 0-100
	DaysRemaining             int
	MonthsRemaining           int
	MonthlyContributionNeeded core.Money
	Reached                   bool
}

// Aggregator computes derived read-only views over the ledger.
type Aggregator struct {
	ledger   *storage.Ledger
	accounts *storage.AccountStore
	budgets  *storage.BudgetStore
	now      func() time.Time

	// bound on concurrent budget queries in BudgetOverview
	concurrency int
}

func NewAggregator(ledger *storage.Ledger, accounts *storage.AccountStore, budgets *storage.BudgetStore) *Aggregator {
	return &Aggregator{
		ledger:      ledger,
		accounts:    accounts,
		budgets:     budgets,
		now:         time.Now,
		concurrency: 4,
	}
}

// WithClock returns a copy that reads "today" from now.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	c := *a
	c.now = now
	return &c
}

// BudgetSpent sums the expenses of the budget's category within its month.
func (a *Aggregator) BudgetSpent(ctx context.Context, b core.Budget) (BudgetStatus, error) {
	start, end := core.MonthRange(b.Month, b.Year)
	spent, err := a.ledger.SumByCategory(ctx, b.UserID, b.CategoryID, core.Expense, start, end)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("budget %s spent: %w", b.ID, err)
	}

	status := BudgetStatus{
		Budget:    b,
		Spent:     spent,
		Available: b.BudgetLimit.Sub(spent),
	}
	if !b.BudgetLimit.IsZero() {
		status.PercentUsed = spent.Decimal().Div(b.BudgetLimit.Decimal()).Mul(hundred).Round(2)
	}
	return status, nil
}

// BudgetOverview returns the status of every budget of one month, in the
// order the store lists them.
func (a *Aggregator) BudgetOverview(ctx context.Context, userID string, month, year int) ([]BudgetStatus, error) {
	budgets, err := a.budgets.ListForMonth(ctx, userID, month, year)
	if err != nil {
		return nil, err
	}

	out := make([]BudgetStatus, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, b := range budgets {
		i, b := i, b
		g.Go(func() error {
			status, err := a.BudgetSpent(gctx, b)
			if err != nil {
				return err
			}
			out[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		loggerFor(ctx, log.ComponentAggregate).
			WithFields(log.NewFields().WithUser(userID).WithPeriod(month, year).WithError(err)).
			ErrorContext(ctx, "Budget overview failed")
		return nil, err
	}
	return out, nil
}

// GoalProgress derives the goal's current amount from its dedicated account
// and projects the monthly saving still needed, rounded up to whole
// currency units. A target date in the past counts as one month left.
func (a *Aggregator) GoalProgress(ctx context.Context, g core.Goal) (GoalProgress, error) {
	p := GoalProgress{Goal: g, Percent: decimal.Zero}

	if g.IncludeBalance {
		acc, err := a.accounts.GetByID(ctx, g.UserID, g.AccountID)
		switch {
		case err == nil:
			p.Current = acc.Balance
		case core.IsNotFound(err):
			loggerFor(ctx, log.ComponentAggregate).WarnContext(ctx, "Goal account missing, treating balance as zero",
				"goal_id", g.ID, log.FieldAccountID, g.AccountID)
		default:
			return GoalProgress{}, fmt.Errorf("goal %s progress: %w", g.ID, err)
		}
	}

	if g.TargetAmount.Cents > 0 {
		pct := p.Current.Decimal().Div(g.TargetAmount.Decimal()).Mul(hundred)
		switch {
		case pct.IsNegative():
			pct = decimal.Zero
		case pct.GreaterThan(hundred):
			pct = hundred
		}
		p.Percent = pct.Round(2)
	}

	today := a.now()
	p.DaysRemaining = max(core.DaysBetween(today, g.TargetDate), 0)
	p.MonthsRemaining = max(core.WholeMonthsBetween(today, g.TargetDate), 1)

	remaining := g.TargetAmount.Sub(p.Current)
	if remaining.Cents <= 0 {
		p.Reached = true
		return p, nil
	}
	perMonth := remaining.Decimal().Div(decimal.NewFromInt(int64(p.MonthsRemaining))).Ceil()
	p.MonthlyContributionNeeded = core.MoneyFromDecimal(perMonth)
	return p, nil
}

// CategoryTotals is the per-category signed sum over [start, end).
func (a *Aggregator) CategoryTotals(ctx context.Context, userID string, start, end time.Time) ([]storage.CategoryTotal, error) {
	return a.ledger.GetCategoryTotals(ctx, userID, start, end)
}

func loggerFor(ctx context.Context, component string) *log.Logger {
	return log.FromContext(ctx).WithComponent(component)
}
