package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bbledger/internal/core"
)

func newGoalCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Savings goals backed by a dedicated account",
	}
	cmd.AddCommand(newGoalCreateCommand(a), newGoalProgressCommand(a), newGoalListCommand(a))
	return cmd
}

func newGoalCreateCommand(a *app) *cobra.Command {
	var target, date, accountName, emoji, monthly string
	var excludeBalance bool

	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a goal together with its dedicated account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(target)
			if err != nil {
				return fmt.Errorf("target: %w", err)
			}
			due, err := time.ParseInLocation(dateLayout, date, time.UTC)
			if err != nil {
				return fmt.Errorf("invalid target date %q: want YYYY-MM-DD", date)
			}
			var contribution core.Money
			if monthly != "" {
				if contribution, err = core.ParseMoney(monthly); err != nil {
					return fmt.Errorf("monthly contribution: %w", err)
				}
			}
			if accountName == "" {
				accountName = args[0]
			}

			g, acc, err := a.goals().CreateWithAccount(cmd.Context(), core.Goal{
				ID:                  core.NewID(),
				UserID:              a.userID,
				Title:               args[0],
				Emoji:               emoji,
				TargetAmount:        amount,
				TargetDate:          due,
				IncludeBalance:      !excludeBalance,
				MonthlyContribution: contribution,
			}, core.Account{ID: core.NewID(), Name: accountName})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created goal %s (%s) saving into account %s\n", g.Title, g.ID, acc.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "amount to reach (required)")
	cmd.Flags().StringVar(&date, "date", "", "target day as YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&accountName, "account-name", "", "name of the dedicated account (default goal title)")
	cmd.Flags().StringVar(&emoji, "emoji", "", "display emoji")
	cmd.Flags().StringVar(&monthly, "monthly", "", "planned monthly contribution")
	cmd.Flags().BoolVar(&excludeBalance, "exclude-balance", false, "do not count the account balance towards the goal")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newGoalProgressCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress ID",
		Short: "Show how far a goal is and what it still needs per month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.goals().GetByID(cmd.Context(), a.userID, args[0])
			if err != nil {
				return err
			}
			p, err := a.aggregator().GoalProgress(cmd.Context(), g)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s of %s (%s%%)\n", g.Title, p.Current, g.TargetAmount, p.Percent.StringFixed(2))
			if p.Reached {
				fmt.Fprintln(out, "Goal reached")
				return nil
			}
			fmt.Fprintf(out, "%d day(s), %d month(s) left, %s needed per month\n",
				p.DaysRemaining, p.MonthsRemaining, p.MonthlyContributionNeeded)
			return nil
		},
	}
}

func newGoalListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			goals, err := a.goals().ListByUser(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTARGET\tDATE\tSTATUS")
			for _, g := range goals {
				fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n",
					g.ID, g.Emoji, g.Title, g.TargetAmount, g.TargetDate.Format(dateLayout), g.Status)
			}
			return w.Flush()
		},
	}
}
