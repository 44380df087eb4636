package services

import (
	"context"

	"bbledger/internal/core"
	"bbledger/internal/log"
	"bbledger/internal/storage"
)

// CategoryService wraps category mutations that must also touch the ledger.
type CategoryService struct {
	categories *storage.CategoryStore
}

func NewCategoryService(categories *storage.CategoryStore) *CategoryService {
	return &CategoryService{categories: categories}
}

// Add creates a category, generating an id when none is given.
func (s *CategoryService) Add(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = core.NewID()
	}
	return s.categories.Create(ctx, c)
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	return s.categories.ListByUser(ctx, userID)
}

// Remove deletes the category and clears it from every transaction of the
// user in one unit, returning how many transactions were detached. Budgets
// that point at the category are kept and render as "Unknown".
func (s *CategoryService) Remove(ctx context.Context, userID, categoryID string) (int64, error) {
	detached, err := s.categories.DeleteDetaching(ctx, categoryID, userID)
	if err != nil {
		loggerFor(ctx, log.ComponentStore).
			WithFields(log.NewFields().WithOperation(log.OpDelete).WithUser(userID).WithError(err)).
			ErrorContext(ctx, "Category removal rolled back", log.FieldCategoryID, categoryID)
		return 0, &core.NotPersistedError{Op: "remove category", Err: err}
	}

	loggerFor(ctx, log.ComponentStore).
		WithFields(log.NewFields().WithOperation(log.OpDelete).WithUser(userID)).
		InfoContext(ctx, "Category removed", log.FieldCategoryID, categoryID, "detached", detached)
	return detached, nil
}
