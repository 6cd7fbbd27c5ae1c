package syncmetrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cachesync/cachesync/internal/synccore"
)

const schema = `
CREATE TABLE IF NOT EXISTS push_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL,
    success_count INTEGER NOT NULL,
    error_count INTEGER NOT NULL,
    occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_push_history_collection ON push_history(collection);
CREATE INDEX IF NOT EXISTS idx_push_history_occurred ON push_history(occurred_at);
`

// History is a local, queryable audit trail of push outcomes, backed by
// SQLite the way the teacher's replication.Manager kept its queue and
// status tables — here a thinner single table since the ledger itself (not
// this database) is the source of truth for pending state.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the SQLite database at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open push history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init push history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record appends one push outcome to the history table.
func (h *History) Record(ctx context.Context, result *synccore.PushResult) error {
	if result == nil {
		return nil
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO push_history (collection, success_count, error_count) VALUES (?, ?, ?)`,
		result.Collection, len(result.Success), len(result.Error))
	if err != nil {
		return fmt.Errorf("record push history: %w", err)
	}
	return nil
}

// PushHistoryEntry is one row of recorded push history.
type PushHistoryEntry struct {
	Collection   string
	SuccessCount int
	ErrorCount   int
	OccurredAt   time.Time
}

// Recent returns the most recent n history entries for collection, newest
// first.
func (h *History) Recent(ctx context.Context, collection string, n int) ([]PushHistoryEntry, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT collection, success_count, error_count, occurred_at FROM push_history
		 WHERE collection = ? ORDER BY occurred_at DESC LIMIT ?`, collection, n)
	if err != nil {
		return nil, fmt.Errorf("query push history: %w", err)
	}
	defer rows.Close()

	var out []PushHistoryEntry
	for rows.Next() {
		var e PushHistoryEntry
		if err := rows.Scan(&e.Collection, &e.SuccessCount, &e.ErrorCount, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan push history row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}
