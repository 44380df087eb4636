package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

// seedNamespace scopes the deterministic ids of starter categories.
var seedNamespace = uuid.MustParse("6f1c2b7e-4a0d-5e8f-9b3c-2d71a4e6c910")

type defaultCategory struct {
	slug  string
	name  string
	typ   core.CategoryType
	icon  string
	color string
}

var defaultCategories = []defaultCategory{
	{slug: "food", name: "Food", typ: core.CategoryExpense, icon: "🍔", color: "#FF6B6B"},
	{slug: "transport", name: "Transport", typ: core.CategoryExpense, icon: "🚗", color: "#4ECDC4"},
	{slug: "shopping", name: "Shopping", typ: core.CategoryExpense, icon: "🛍️", color: "#FFB84C"},
	{slug: "salary", name: "Salary", typ: core.CategoryIncome, icon: "💰", color: "#2ECC71"},
	{slug: "freelance", name: "Freelance", typ: core.CategoryIncome, icon: "💼", color: "#3498DB"},
	{slug: "transfer", name: "Transfer", typ: core.CategoryTransfer, icon: "🔄", color: "#95A5A6"},
}

// DefaultCategoryID returns the fixed id the seeder uses for slug.
func DefaultCategoryID(userID, slug string) string {
	return uuid.NewSHA1(seedNamespace, []byte(userID+"/"+slug)).String()
}

type Seeder struct {
	db *DB
}

func NewSeeder(db *DB) *Seeder {
	return &Seeder{db: db}
}

// SeedDefaultsIfFirstRun inserts the starter categories for userID and sets
// the per-user marker, both in one transaction. It reports whether anything
// was written.
func (s *Seeder) SeedDefaultsIfFirstRun(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, core.NewValidationError("user.id", core.ErrMissingUser)
	}

	seeded := false
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var at string
		err := tx.QueryRowContext(ctx, `SELECT initialized_at FROM initialized WHERE user_id = ?`, userID).Scan(&at)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read initialized marker: %w", err)
		}

		categories := NewCategoryStore(s.db).WithTx(tx)
		stamp := now()
		for _, d := range defaultCategories {
			c := core.Category{
				ID:        DefaultCategoryID(userID, d.slug),
				UserID:    userID,
				Name:      d.name,
				Type:      d.typ,
				Icon:      d.icon,
				Color:     d.color,
				CreatedAt: stamp,
			}
			// a partially seeded user from an older build may already own some
			if _, err := categories.GetByID(ctx, userID, c.ID); err == nil {
				continue
			} else if !core.IsNotFound(err) {
				return err
			}
			if _, err := categories.Create(ctx, c); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO initialized (user_id, initialized_at) VALUES (?, ?)`,
			userID, formatTime(stamp)); err != nil {
			return fmt.Errorf("write initialized marker: %w", err)
		}
		seeded = true
		return nil
	})
	if err != nil {
		loggerFor(ctx, log.ComponentSeed).
			WithFields(log.NewFields().WithOperation(log.OpSeed).WithUser(userID).WithError(err)).
			ErrorContext(ctx, "Default data seeding failed")
		return false, &core.NotPersistedError{Op: "seed defaults", Err: err}
	}

	if seeded {
		loggerFor(ctx, log.ComponentSeed).
			WithFields(log.NewFields().WithOperation(log.OpSeed).WithUser(userID)).
			InfoContext(ctx, "Seeded default categories", log.FieldCount, len(defaultCategories))
	}
	return seeded, nil
}
