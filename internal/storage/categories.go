package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

const categoryColumns = `id, user_id, name, type, icon, color, description, created_at, synced`

type CategoryStore struct {
	db *DB
	q  DBTX
}

func NewCategoryStore(db *DB) *CategoryStore {
	return &CategoryStore{db: db, q: db.sql}
}

// WithTx returns a copy of the store that runs on tx.
func (s *CategoryStore) WithTx(tx *sql.Tx) *CategoryStore {
	return &CategoryStore{db: s.db, q: tx}
}

func (s *CategoryStore) Create(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = stampIfZero(c.CreatedAt)

	_, err := s.q.ExecContext(ctx, `INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Icon, c.Color,
		nullString(c.Description), formatTime(c.CreatedAt), boolInt(c.Synced))
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to create category", log.FieldOperation, log.OpCreate, log.FieldCategoryID, c.ID, log.FieldUserID, c.UserID, log.FieldError, err)
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) GetByID(ctx context.Context, userID, id string) (core.Category, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+categoryColumns+`
		FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: id}
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func (s *CategoryStore) ListByUser(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+categoryColumns+`
		FROM categories WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields and flags the row dirty. Zero matching
// rows is not an error.
func (s *CategoryStore) Update(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `UPDATE categories
		SET name = ?, type = ?, icon = ?, color = ?, description = ?, synced = 0
		WHERE id = ? AND user_id = ?`,
		c.Name, string(c.Type), c.Icon, c.Color, nullString(c.Description), c.ID, c.UserID)
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to update category", log.FieldOperation, log.OpUpdate, log.FieldCategoryID, c.ID, log.FieldError, err)
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// Delete removes the category. Transactions that reference it are kept
// and lose their category in the same transaction.
func (s *CategoryStore) Delete(ctx context.Context, id, userID string) error {
	_, err := s.DeleteDetaching(ctx, id, userID)
	return err
}

// DeleteDetaching is Delete that also reports how many transactions lost
// their category.
func (s *CategoryStore) DeleteDetaching(ctx context.Context, id, userID string) (int64, error) {
	var detached int64
	err := runInTx(ctx, s.db, s.q, func(q DBTX) error {
		n, err := detachCategory(ctx, q, userID, id)
		if err != nil {
			return err
		}
		detached = n
		_, err = q.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
		return err
	})
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to delete category", log.FieldOperation, log.OpDelete, log.FieldCategoryID, id, log.FieldError, err)
		return 0, fmt.Errorf("delete category: %w", err)
	}
	return detached, nil
}

func scanCategory(r rowScanner) (core.Category, error) {
	var (
		c         core.Category
		typ       string
		desc      sql.NullString
		createdAt string
		synced    int
	)
	if err := r.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.Icon, &c.Color, &desc, &createdAt, &synced); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	c.Description = stringPtr(desc)
	c.Synced = synced != 0
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Category{}, err
	}
	return c, nil
}
