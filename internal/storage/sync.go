package storage

import (
	"context"
	"fmt"

	"bbledger/internal/core"
	"bbledger/internal/log"
)

// syncTables maps each table carrying a dirty flag to its owner column.
var syncTables = map[string]string{
	"users":        "id",
	"categories":   "user_id",
	"accounts":     "user_id",
	"transactions": "user_id",
	"budgets":      "user_id",
	"goals":        "user_id",
}

// SyncTables lists the tables whose rows carry a dirty flag, in a fixed order.
func SyncTables() []string {
	return []string{"users", "categories", "accounts", "transactions", "budgets", "goals"}
}

// DirtyRow identifies a row that changed locally since its last
// acknowledged sync.
type DirtyRow struct {
	Table  string
	ID     string
	UserID string
}

// SyncStore is the outbox view of the dirty flags. The core only ever sets
// the flag; MarkSynced is called on acknowledgement from the sync service.
type SyncStore struct {
	db *DB
	q  DBTX
}

func NewSyncStore(db *DB) *SyncStore {
	return &SyncStore{db: db, q: db.sql}
}

func ownerColumn(table string) (string, error) {
	col, ok := syncTables[table]
	if !ok {
		return "", core.NewValidationError("sync.table", fmt.Errorf("%w: %s", core.ErrInvalidType, table))
	}
	return col, nil
}

// Pending returns up to limit dirty rows of table.
func (s *SyncStore) Pending(ctx context.Context, table string, limit int) ([]DirtyRow, error) {
	owner, err := ownerColumn(table)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, %s FROM %s WHERE synced = 0 ORDER BY rowid LIMIT ?`, owner, table), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending %s: %w", table, err)
	}
	defer rows.Close()

	var out []DirtyRow
	for rows.Next() {
		r := DirtyRow{Table: table}
		if err := rows.Scan(&r.ID, &r.UserID); err != nil {
			return nil, fmt.Errorf("scan pending %s: %w", table, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkSynced clears the dirty flag of the given rows of userID and returns
// how many rows changed. Unknown ids are ignored.
func (s *SyncStore) MarkSynced(ctx context.Context, table, userID string, ids ...string) (int64, error) {
	owner, err := ownerColumn(table)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var total int64
	stmt := fmt.Sprintf(`UPDATE %s SET synced = 1 WHERE id = ? AND %s = ?`, table, owner)
	err = runInTx(ctx, s.db, s.q, func(q DBTX) error {
		for _, id := range ids {
			res, err := q.ExecContext(ctx, stmt, id, userID)
			if err != nil {
				return fmt.Errorf("mark %s %s synced: %w", table, id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		loggerFor(ctx, log.ComponentStorage).ErrorContext(ctx, "Failed to mark rows synced", log.FieldTable, table, log.FieldUserID, userID, log.FieldError, err)
		return 0, err
	}

	loggerFor(ctx, log.ComponentStorage).DebugContext(ctx, "Rows marked as synced", log.FieldTable, table, log.FieldUserID, userID, log.FieldCount, total)
	return total, nil
}
