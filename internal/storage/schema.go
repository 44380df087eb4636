package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

// reconcileStep is one additive change applied after the versioned
// migrations. A step inspects the live schema and does nothing when the
// change is already present, so every step is safe to re-run.
type reconcileStep struct {
	name  string
	apply func(ctx context.Context, q DBTX) error
}

const goalsDDL = `CREATE TABLE %s (
    id                          TEXT PRIMARY KEY,
    user_id                     TEXT NOT NULL,
    title                       TEXT NOT NULL,
    emoji                       TEXT NOT NULL DEFAULT '',
    target_amount_cents         INTEGER NOT NULL,
    target_date                 TEXT NOT NULL,
    account_id                  TEXT NOT NULL,
    include_balance             INTEGER NOT NULL DEFAULT 1,
    monthly_contribution_cents  INTEGER NOT NULL DEFAULT 0,
    status                      TEXT NOT NULL DEFAULT 'active',
    created_at                  TEXT NOT NULL,
    synced                      INTEGER NOT NULL DEFAULT 0
)`

const userInterestsDDL = `CREATE TABLE user_interests (
    user_id     TEXT NOT NULL,
    interest    TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    synced      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, interest)
)`

// Ordered; append only.
var reconcileSteps = []reconcileStep{
	addColumn("users", "synced", "INTEGER NOT NULL DEFAULT 0"),
	addColumn("categories", "synced", "INTEGER NOT NULL DEFAULT 0"),
	addColumn("accounts", "synced", "INTEGER NOT NULL DEFAULT 0"),
	addColumn("transactions", "synced", "INTEGER NOT NULL DEFAULT 0"),
	addColumn("budgets", "synced", "INTEGER NOT NULL DEFAULT 0"),
	addColumn("goals", "synced", "INTEGER NOT NULL DEFAULT 0"),
	addColumn("transactions", "linked_transaction_id", "TEXT"),
	addColumn("goals", "include_balance", "INTEGER NOT NULL DEFAULT 1"),
	addColumn("goals", "monthly_contribution_cents", "INTEGER NOT NULL DEFAULT 0"),
	addColumn("goals", "status", "TEXT NOT NULL DEFAULT 'active'"),
	addColumn("categories", "description", "TEXT"),
	addColumn("accounts", "updated_at", "TEXT NOT NULL DEFAULT ''"),
	createTable("user_interests", userInterestsDDL),
	dropTable("goal_contributions"),
	rebuildTableWithout("goals", "current_amount", goalsDDL),
	createIndex("idx_transactions_user_date", "transactions(user_id, date)"),
	createIndex("idx_transactions_account", "transactions(account_id)"),
	createIndex("idx_transactions_category", "transactions(category_id)"),
	createIndex("idx_budgets_user_period", "budgets(user_id, year, month)"),
	normalizeTimes("transactions", "date"),
	normalizeTimes("users", "created_at"),
	normalizeTimes("categories", "created_at"),
	normalizeTimes("accounts", "created_at", "updated_at"),
	normalizeTimes("budgets", "created_at"),
	normalizeTimes("goals", "target_date", "created_at"),
	normalizeTimes("user_interests", "created_at"),
	rebuildInitialized(),
	normalizeTimes("initialized", "initialized_at"),
}

// EnsureSchema brings the database to the shape the running code expects.
// It must complete before any store is used; any error is a
// *core.FatalStartupError.
func (d *DB) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	logger := loggerFor(ctx, log.ComponentSchema).WithFields(log.NewFields().WithOperation(log.OpMigrate))

	if err := RunMigrations(d.dsn); err != nil {
		logger.ErrorContext(ctx, "Schema migration failed", log.FieldError, err)
		return &core.FatalStartupError{Stage: "migrate", Err: err}
	}

	for _, step := range reconcileSteps {
		err := d.WithTx(ctx, func(tx *sql.Tx) error {
			return step.apply(ctx, tx)
		})
		if err != nil {
			logger.ErrorContext(ctx, "Schema reconcile step failed", "step", step.name, log.FieldError, err)
			return &core.FatalStartupError{Stage: step.name, Err: err}
		}
	}

	logger.InfoContext(ctx, "Schema ready",
		"path", d.path,
		"steps", len(reconcileSteps),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// SchemaVersion reports the applied versioned-migration state.
func (d *DB) SchemaVersion(ctx context.Context) (uint, bool, error) {
	return MigrationVersion(d.dsn)
}

func addColumn(table, column, decl string) reconcileStep {
	return reconcileStep{
		name: fmt.Sprintf("add %s.%s", table, column),
		apply: func(ctx context.Context, q DBTX) error {
			cols, err := columnSet(ctx, q, table)
			if err != nil {
				return err
			}
			if len(cols) == 0 || cols[column] {
				return nil
			}
			if _, err := q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
				return fmt.Errorf("add column %s.%s: %w", table, column, err)
			}
			loggerFor(ctx, log.ComponentSchema).InfoContext(ctx, "Added column", log.FieldTable, table, "column", column)
			return nil
		},
	}
}

func createTable(table, ddl string) reconcileStep {
	return reconcileStep{
		name: "create " + table,
		apply: func(ctx context.Context, q DBTX) error {
			exists, err := tableExists(ctx, q, table)
			if err != nil || exists {
				return err
			}
			if _, err := q.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("create table %s: %w", table, err)
			}
			loggerFor(ctx, log.ComponentSchema).InfoContext(ctx, "Created table", log.FieldTable, table)
			return nil
		},
	}
}

func dropTable(table string) reconcileStep {
	return reconcileStep{
		name: "drop " + table,
		apply: func(ctx context.Context, q DBTX) error {
			exists, err := tableExists(ctx, q, table)
			if err != nil || !exists {
				return err
			}
			if _, err := q.ExecContext(ctx, "DROP TABLE "+table); err != nil {
				return fmt.Errorf("drop table %s: %w", table, err)
			}
			loggerFor(ctx, log.ComponentSchema).InfoContext(ctx, "Dropped deprecated table", log.FieldTable, table)
			return nil
		},
	}
}

// rebuildTableWithout removes column from table by building a shadow table
// from ddl, copying the shared columns, dropping the original and renaming
// the shadow into place. The caller's transaction makes the four statements
// a single unit.
func rebuildTableWithout(table, column, ddl string) reconcileStep {
	return reconcileStep{
		name: fmt.Sprintf("rebuild %s without %s", table, column),
		apply: func(ctx context.Context, q DBTX) error {
			cols, err := columnSet(ctx, q, table)
			if err != nil {
				return err
			}
			if !cols[column] {
				return nil
			}

			shadow := table + "_new"
			if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+shadow); err != nil {
				return fmt.Errorf("clear shadow table: %w", err)
			}
			if _, err := q.ExecContext(ctx, fmt.Sprintf(ddl, shadow)); err != nil {
				return fmt.Errorf("create shadow table: %w", err)
			}

			shadowCols, err := columnList(ctx, q, shadow)
			if err != nil {
				return err
			}
			var shared []string
			for _, c := range shadowCols {
				if cols[c] {
					shared = append(shared, c)
				}
			}
			list := strings.Join(shared, ", ")

			stmts := []string{
				fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", shadow, list, list, table),
				"DROP TABLE " + table,
				fmt.Sprintf("ALTER TABLE %s RENAME TO %s", shadow, table),
			}
			for _, stmt := range stmts {
				if _, err := q.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("rebuild %s: %w", table, err)
				}
			}
			loggerFor(ctx, log.ComponentSchema).InfoContext(ctx, "Rebuilt table", log.FieldTable, table, "dropped_column", column, "columns", len(shared))
			return nil
		},
	}
}

func createIndex(name, on string) reconcileStep {
	return reconcileStep{
		name: "index " + name,
		apply: func(ctx context.Context, q DBTX) error {
			if _, err := q.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s", name, on)); err != nil {
				return fmt.Errorf("create index %s: %w", name, err)
			}
			return nil
		},
	}
}

// canonicalTimeGlob matches text already written with timeLayout.
var canonicalTimeGlob = func() string {
	var b strings.Builder
	for _, r := range timeLayout {
		if r >= '0' && r <= '9' {
			b.WriteString("[0-9]")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}()

// normalizeTimes rewrites time text stored by older app versions in another
// layout to timeLayout, so range queries compare like with like. Empty and
// unparseable values are left alone.
func normalizeTimes(table string, columns ...string) reconcileStep {
	return reconcileStep{
		name: fmt.Sprintf("normalize %s times", table),
		apply: func(ctx context.Context, q DBTX) error {
			cols, err := columnSet(ctx, q, table)
			if err != nil {
				return err
			}
			for _, column := range columns {
				if !cols[column] {
					continue
				}
				fixed, skipped, err := normalizeColumn(ctx, q, table, column)
				if err != nil {
					return err
				}
				if fixed > 0 || skipped > 0 {
					loggerFor(ctx, log.ComponentSchema).InfoContext(ctx, "Normalized stored times",
						log.FieldTable, table, "column", column, log.FieldCount, fixed, "unparseable", skipped)
				}
			}
			return nil
		},
	}
}

func normalizeColumn(ctx context.Context, q DBTX, table, column string) (fixed, skipped int, err error) {
	type pending struct {
		rowid int64
		value string
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT rowid, %s FROM %s WHERE %s <> '' AND %s NOT GLOB ?", column, table, column, column), canonicalTimeGlob)
	if err != nil {
		return 0, 0, fmt.Errorf("scan %s.%s times: %w", table, column, err)
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.rowid, &p.value); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan %s.%s times: %w", table, column, err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("scan %s.%s times: %w", table, column, err)
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s = ? WHERE rowid = ?", table, column)
	for _, p := range todo {
		t, err := parseTime(p.value)
		if err != nil {
			skipped++
			continue
		}
		if _, err := q.ExecContext(ctx, stmt, formatTime(t), p.rowid); err != nil {
			return fixed, skipped, fmt.Errorf("normalize %s.%s: %w", table, column, err)
		}
		fixed++
	}
	return fixed, skipped, nil
}

// rebuildInitialized replaces the single-row first-run marker of older app
// versions with the per-user table. Every user that already owns categories
// was set up by that version and is recorded as initialized, so the seeder
// does not add the starter set a second time.
func rebuildInitialized() reconcileStep {
	return reconcileStep{
		name: "rebuild initialized per user",
		apply: func(ctx context.Context, q DBTX) error {
			cols, err := columnSet(ctx, q, "initialized")
			if err != nil {
				return err
			}
			if len(cols) == 0 || cols["user_id"] {
				return nil
			}

			var marked int
			if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM initialized").Scan(&marked); err != nil {
				return fmt.Errorf("read legacy initialized marker: %w", err)
			}

			stmts := []string{
				"DROP TABLE IF EXISTS initialized_new",
				`CREATE TABLE initialized_new (
    user_id         TEXT PRIMARY KEY,
    initialized_at  TEXT NOT NULL
)`,
			}
			if marked > 0 {
				stmts = append(stmts, fmt.Sprintf(
					"INSERT OR IGNORE INTO initialized_new (user_id, initialized_at) SELECT DISTINCT user_id, '%s' FROM categories",
					formatTime(now())))
			}
			stmts = append(stmts,
				"DROP TABLE initialized",
				"ALTER TABLE initialized_new RENAME TO initialized",
			)
			for _, stmt := range stmts {
				if _, err := q.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("rebuild initialized: %w", err)
				}
			}
			loggerFor(ctx, log.ComponentSchema).InfoContext(ctx, "Rebuilt table", log.FieldTable, "initialized", "legacy_marker", marked > 0)
			return nil
		},
	}
}

func tableExists(ctx context.Context, q DBTX, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	return n > 0, nil
}

// columnList returns the columns of table in declaration order; empty when
// the table does not exist.
func columnList(ctx context.Context, q DBTX, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("inspect columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func columnSet(ctx context.Context, q DBTX, table string) (map[string]bool, error) {
	list, err := columnList(ctx, q, table)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(list))
	for _, c := range list {
		set[c] = true
	}
	return set, nil
}
