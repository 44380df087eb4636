package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"bbledger/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// the schema is reconciled when the store opens
			version, dirty, err := a.db.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d (dirty: %t) in %s\n", version, dirty, a.db.Path())
			return nil
		},
	}
}

func newSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the starter categories for the user on first run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeded, err := storage.NewSeeder(a.db).SeedDefaultsIfFirstRun(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded default categories for %s\n", a.userID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "User %s is already initialized\n", a.userID)
			}
			return nil
		},
	}
}

func newAuditCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check every account balance against its transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drift, err := a.ledger().AuditBalances(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(drift) == 0 {
				fmt.Fprintln(out, "All balances match their transactions")
				return nil
			}
			for _, d := range drift {
				fmt.Fprintf(out, "%s (%s): stored %s, computed %s\n", d.Name, d.AccountID, d.Stored, d.Computed)
			}
			return fmt.Errorf("%d account balance(s) drifted", len(drift))
		},
	}
}
