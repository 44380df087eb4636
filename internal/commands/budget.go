package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bbledger/internal/core"
)

func newBudgetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Monthly spending limits per category",
	}
	cmd.AddCommand(newBudgetSetCommand(a), newBudgetStatusCommand(a))
	return cmd
}

func newBudgetSetCommand(a *app) *cobra.Command {
	var category, limit string
	var month, year int

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a spending limit for a category and month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			money, err := core.ParseMoney(limit)
			if err != nil {
				return fmt.Errorf("limit: %w", err)
			}
			m, y, err := monthFlag(month, year, time.Now())
			if err != nil {
				return err
			}
			if _, err := a.categories().GetByID(cmd.Context(), a.userID, category); err != nil {
				return err
			}
			b, err := a.budgets().Create(cmd.Context(), core.Budget{
				ID:          core.NewID(),
				UserID:      a.userID,
				CategoryID:  category,
				BudgetLimit: money,
				Month:       m,
				Year:        y,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Budget %s set to %s for %04d-%02d\n", b.ID, b.BudgetLimit, b.Year, b.Month+1)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category id (required)")
	cmd.Flags().StringVar(&limit, "limit", "", "spending limit, e.g. 300 (required)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("limit")
	return cmd
}

func newBudgetStatusCommand(a *app) *cobra.Command {
	var month, year int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show spent and available amounts for every budget of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, y, err := monthFlag(month, year, time.Now())
			if err != nil {
				return err
			}
			statuses, err := a.aggregator().BudgetOverview(cmd.Context(), a.userID, m, y)
			if err != nil {
				return err
			}
			categories, err := a.categories().ListByUser(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			names := make(map[string]string, len(categories))
			for _, c := range categories {
				names[c.ID] = c.Name
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tLIMIT\tSPENT\tAVAILABLE\tUSED")
			for _, s := range statuses {
				name, ok := names[s.Budget.CategoryID]
				if !ok {
					name = "Unknown"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%\n",
					name, s.Budget.BudgetLimit, s.Spent, s.Available, s.PercentUsed.StringFixed(0))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	return cmd
}
