package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bbledger/internal/core"
	"bbledger/internal/storage"
)

func newTxCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Record and inspect transactions",
	}
	cmd.AddCommand(
		newTxAddCommand(a),
		newTxTransferCommand(a),
		newTxDeleteCommand(a),
		newTxListCommand(a),
		newTxTotalsCommand(a),
	)
	return cmd
}

func newTxAddCommand(a *app) *cobra.Command {
	var typ, amount, account, category, date, title, notes string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income or an expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			money, err := core.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			day, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			t, err := a.ledger().RecordSimple(cmd.Context(), core.Transaction{
				UserID:     a.userID,
				Type:       core.TransactionType(typ),
				Amount:     money,
				AccountID:  account,
				CategoryID: optional(category),
				Date:       day,
				Title:      optional(title),
				Notes:      optional(notes),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s (%s)\n", t.Type, t.Amount, t.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(core.Expense), "income or expense")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50 (required)")
	cmd.Flags().StringVar(&account, "account", "", "account id (required)")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&title, "title", "", "short description")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newTxTransferCommand(a *app) *cobra.Command {
	var from, to, amount, category, date, title, notes string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move money between two accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			money, err := core.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			day, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			debit, credit, err := a.ledger().RecordTransfer(cmd.Context(), storage.TransferParams{
				UserID:        a.userID,
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        money,
				Date:          day,
				Title:         optional(title),
				Notes:         optional(notes),
				CategoryID:    optional(category),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transferred %s (debit %s, credit %s)\n", money, debit.ID, credit.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source account id (required)")
	cmd.Flags().StringVar(&to, "to", "", "destination account id (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50 (required)")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&title, "title", "", "short description")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newTxDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transaction, or both legs of a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ledger().Delete(cmd.Context(), a.userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted transaction %s\n", args[0])
			return nil
		},
	}
}

func newTxListCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := a.ledger().ListView(cmd.Context(), a.userID, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tACCOUNT\tCATEGORY\tTITLE\tID")
			for _, v := range views {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					v.Date.Format(dateLayout), v.Type, v.Amount, v.AccountName, v.CategoryName, deref(v.Title), v.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows, 0 for all")
	return cmd
}

func newTxTotalsCommand(a *app) *cobra.Command {
	var month, year int

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Signed totals per category for one month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, y, err := monthFlag(month, year, time.Now())
			if err != nil {
				return err
			}
			start, end := core.MonthRange(m, y)
			totals, err := a.aggregator().CategoryTotals(cmd.Context(), a.userID, start, end)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tTOTAL\tCOUNT")
			for _, t := range totals {
				fmt.Fprintf(w, "%s\t%s\t%d\n", t.Name, t.Total, t.Count)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	return cmd
}
