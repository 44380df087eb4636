// Package commands implements the bbledger command line.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"bbledger/internal/cli"
	"bbledger/internal/config"
	"bbledger/internal/services"
	"bbledger/internal/storage"
)

// app holds what every subcommand needs once the store is open.
type app struct {
	cfg    *config.Config
	dbPath string
	userID string
	db     *storage.DB
}

func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	seedUser := ""
	if a.cfg.SeedOnStartup {
		seedUser = a.userID
	}
	db, err := cli.OpenStore(ctx, a.dbPath, seedUser)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *app) ledger() *storage.Ledger { return storage.NewLedger(a.db) }
func (a *app) accounts() *storage.AccountStore { return storage.NewAccountStore(a.db) }
func (a *app) categories() *storage.CategoryStore { return storage.NewCategoryStore(a.db) }
func (a *app) budgets() *storage.BudgetStore { return storage.NewBudgetStore(a.db) }
func (a *app) goals() *storage.GoalStore { return storage.NewGoalStore(a.db) }
func (a *app) aggregator() *services.Aggregator { return services.NewAggregator(a.ledger(), a.accounts(), a.budgets()) }
func (a *app) categoryService() *services.CategoryService {
	return services.NewCategoryService(a.categories())
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	cmd, _ := newRoot(cfg)
	return cmd
}

func newRoot(cfg *config.Config) (*cobra.Command, *app) {
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:   "bbledger",
		Short: "Local bookkeeping for a personal finance tracker",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", cfg.SQLiteDBPath, "path of the SQLite database")
	rootCmd.PersistentFlags().StringVar(&a.userID, "user", cfg.DefaultUserID, "user whose data is read and written")

	rootCmd.AddCommand(
		newMigrateCommand(a),
		newSeedCommand(a),
		newAuditCommand(a),
		newAccountCommand(a),
		newCategoryCommand(a),
		newTxCommand(a),
		newBudgetCommand(a),
		newGoalCommand(a),
	)

	return rootCmd, a
}

// Execute runs the command line given by args and closes the store
// afterwards, whatever the outcome.
func Execute(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	rootCmd, a := newRoot(cfg)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}
