package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bbledger/internal/core"
)

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newAccountOpenCommand(a), newAccountListCommand(a), newAccountDeleteCommand(a))
	return cmd
}

func newAccountOpenCommand(a *app) *cobra.Command {
	var opening, icon string

	cmd := &cobra.Command{
		Use:   "open NAME",
		Short: "Open an account, optionally with an opening balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := core.Money{}
			if opening != "" {
				var err error
				if amount, err = core.ParseSignedMoney(opening); err != nil {
					return fmt.Errorf("opening balance: %w", err)
				}
			}
			acc, err := a.ledger().OpenAccount(cmd.Context(), core.Account{
				ID:     core.NewID(),
				UserID: a.userID,
				Name:   args[0],
				Icon:   icon,
			}, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s (%s) with balance %s\n", acc.Name, acc.ID, acc.Balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&opening, "opening", "", "opening balance, may be negative")
	cmd.Flags().StringVar(&icon, "icon", "", "display icon")
	return cmd
}

func newAccountListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.accounts().ListByUser(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBALANCE")
			for _, acc := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", acc.ID, acc.Name, acc.Balance)
			}
			return w.Flush()
		},
	}
}

func newAccountDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.accounts().Delete(cmd.Context(), args[0], a.userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s\n", args[0])
			return nil
		},
	}
}
