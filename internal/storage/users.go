package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

type UserStore struct {
	db *DB
	q  DBTX
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db, q: db.sql}
}

func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{db: s.db, q: tx}
}

// Upsert inserts the user or refreshes name and email of an existing one.
func (s *UserStore) Upsert(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = stampIfZero(u.CreatedAt)

	_, err := s.q.ExecContext(ctx, `INSERT INTO users (id, name, email, created_at, synced)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, synced = 0`,
		u.ID, u.Name, u.Email, formatTime(u.CreatedAt))
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to upsert user", log.FieldOperation, log.OpUpdate, log.FieldUserID, u.ID, log.FieldError, err)
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetByID(ctx, u.ID)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (core.User, error) {
	var (
		u         core.User
		createdAt string
		synced    int
	)
	err := s.q.QueryRowContext(ctx, `SELECT id, name, email, created_at, synced FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &createdAt, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	u.Synced = synced != 0
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// SetInterests replaces the user's interest set in one unit. Blank and
// duplicate entries are dropped.
func (s *UserStore) SetInterests(ctx context.Context, userID string, interests []string) error {
	if strings.TrimSpace(userID) == "" {
		return core.NewValidationError("user.id", core.ErrMissingUser)
	}
	seen := make(map[string]bool, len(interests))
	stamp := formatTime(now())

	err := runInTx(ctx, s.db, s.q, func(q DBTX) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM user_interests WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear interests: %w", err)
		}
		for _, in := range interests {
			in = strings.TrimSpace(in)
			if in == "" || seen[in] {
				continue
			}
			seen[in] = true
			if _, err := q.ExecContext(ctx, `INSERT INTO user_interests (user_id, interest, created_at, synced)
				VALUES (?, ?, ?, 0)`, userID, in, stamp); err != nil {
				return fmt.Errorf("insert interest %q: %w", in, err)
			}
		}
		return nil
	})
	if err != nil {
		loggerFor(ctx, log.ComponentStore).ErrorContext(ctx, "Failed to set interests", log.FieldOperation, log.OpUpdate, log.FieldUserID, userID, log.FieldError, err)
		return &core.NotPersistedError{Op: "set interests", Err: err}
	}
	return nil
}

func (s *UserStore) ListInterests(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT interest FROM user_interests WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var in string
		if err := rows.Scan(&in); err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
