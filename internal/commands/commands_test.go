package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bbledger/internal/config"
	"bbledger/internal/storage"
)

type harness struct {
	t   *testing.T
	cfg *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, cfg: &config.Config{
		SQLiteDBPath:  filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel:      "error",
		DefaultUserID: "local",
		SeedOnStartup: true,
	}}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), h.cfg, args, &stdout, &stderr)
	return stdout.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

var idPattern = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)

func extractID(t *testing.T, out string) string {
	t.Helper()
	m := idPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, "no id in %q", out)
	return m[1]
}

func TestMigrate_ReportsVersion(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("migrate")
	assert.Contains(t, out, "Schema at version 1")
}

func TestSeed_OnlyOnFirstRun(t *testing.T) {
	h := newHarness(t)
	h.cfg.SeedOnStartup = false

	assert.Contains(t, h.mustRun("seed"), "Seeded default categories for local")
	assert.Contains(t, h.mustRun("seed"), "already initialized")

	out := h.mustRun("category", "list")
	for _, name := range []string{"Food", "Transport", "Shopping", "Salary", "Freelance", "Transfer"} {
		assert.Contains(t, out, name)
	}
}

func TestLedgerFlow(t *testing.T) {
	h := newHarness(t)
	food := storage.DefaultCategoryID("local", "food")

	checking := extractID(t, h.mustRun("account", "open", "Checking", "--opening", "100"))
	savings := extractID(t, h.mustRun("account", "open", "Savings"))

	h.mustRun("tx", "add", "--type", "expense", "--amount", "30", "--account", checking,
		"--category", food, "--date", "2024-06-10", "--title", "Groceries")
	h.mustRun("tx", "transfer", "--from", checking, "--to", savings, "--amount", "20.50", "--date", "2024-06-11")

	accounts := h.mustRun("account", "list")
	assert.Regexp(t, `Checking\s+49\.50`, accounts)
	assert.Regexp(t, `Savings\s+20\.50`, accounts)

	list := h.mustRun("tx", "list", "--limit", "0")
	assert.Contains(t, list, "Groceries")
	assert.Contains(t, list, "Food")
	assert.Contains(t, list, "debit")
	assert.Contains(t, list, "credit")

	totals := h.mustRun("tx", "totals", "--month", "6", "--year", "2024")
	assert.Regexp(t, `Food\s+-30\.00\s+1`, totals)

	assert.Contains(t, h.mustRun("audit"), "All balances match")
}

func TestTxDelete_RemovesBothTransferLegs(t *testing.T) {
	h := newHarness(t)
	a := extractID(t, h.mustRun("account", "open", "A", "--opening", "50"))
	b := extractID(t, h.mustRun("account", "open", "B"))

	out := h.mustRun("tx", "transfer", "--from", a, "--to", b, "--amount", "10")
	m := regexp.MustCompile(`debit ([0-9a-f-]{36})`).FindStringSubmatch(out)
	require.Len(t, m, 2)

	h.mustRun("tx", "delete", m[1])

	accounts := h.mustRun("account", "list")
	assert.Regexp(t, `A\s+50\.00`, accounts)
	assert.Regexp(t, `B\s+0\.00`, accounts)
}

func TestTxAdd_RejectsBadInput(t *testing.T) {
	h := newHarness(t)
	acc := extractID(t, h.mustRun("account", "open", "Cash"))

	_, err := h.run("tx", "add", "--amount", "-5", "--account", acc)
	assert.Error(t, err)

	_, err = h.run("tx", "add", "--amount", "5", "--account", "missing")
	assert.Error(t, err)

	_, err = h.run("tx", "add", "--amount", "5", "--account", acc, "--date", "10/06/2024")
	assert.Error(t, err)

	_, err = h.run("tx", "transfer", "--from", acc, "--to", acc, "--amount", "5")
	assert.Error(t, err)
}

func TestBudgetStatus(t *testing.T) {
	h := newHarness(t)
	food := storage.DefaultCategoryID("local", "food")
	acc := extractID(t, h.mustRun("account", "open", "Cash"))

	h.mustRun("budget", "set", "--category", food, "--limit", "100", "--month", "6", "--year", "2024")
	h.mustRun("tx", "add", "--amount", "30", "--account", acc, "--category", food, "--date", "2024-06-03")

	out := h.mustRun("budget", "status", "--month", "6", "--year", "2024")
	assert.Regexp(t, `Food\s+100\.00\s+30\.00\s+70\.00\s+30%`, out)

	_, err := h.run("budget", "set", "--category", "nope", "--limit", "10")
	assert.Error(t, err)
}

func TestCategoryRemove_DetachesTransactions(t *testing.T) {
	h := newHarness(t)
	acc := extractID(t, h.mustRun("account", "open", "Cash"))
	cat := extractID(t, h.mustRun("category", "add", "Hobbies", "--icon", "🎨"))

	h.mustRun("tx", "add", "--amount", "12", "--account", acc, "--category", cat, "--title", "Paint")

	assert.Contains(t, h.mustRun("category", "remove", cat), "1 transaction(s) now uncategorised")
	assert.Regexp(t, `Paint`, h.mustRun("tx", "list"))
	assert.NotContains(t, h.mustRun("category", "list"), "Hobbies")
}

func TestGoalProgress(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("goal", "create", "Bike", "--target", "1200", "--date", "2999-01-01", "--emoji", "🚲")
	goalID := extractID(t, out)

	list := h.mustRun("goal", "list")
	assert.Contains(t, list, "Bike")
	assert.Contains(t, list, "active")

	progress := h.mustRun("goal", "progress", goalID)
	assert.Contains(t, progress, "Bike: 0.00 of 1200.00 (0.00%)")
	assert.Contains(t, progress, "needed per month")

	_, err := h.run("goal", "progress", "missing")
	assert.Error(t, err)
}

func TestUserFlagScopesData(t *testing.T) {
	h := newHarness(t)
	h.mustRun("account", "open", "Mine")

	out := h.mustRun("--user", "someone-else", "account", "list")
	assert.NotContains(t, out, "Mine")
}
