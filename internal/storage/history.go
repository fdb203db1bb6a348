package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalogsync/internal"
)

// DefaultHistoryLimit bounds the history log.
const DefaultHistoryLimit = 50

// AppendHistory stores one entry and drops everything past the newest limit
// entries in the same transaction.
func (d *DB) AppendHistory(ctx context.Context, entry internal.HistoryEntry, limit int) error {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	countsJSON, err := json.Marshal(entry.Counts)
	if err != nil {
		return err
	}
	errorJSON, err := nullableJSON(entry.Error)
	if err != nil {
		return err
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sync_history (id, start_ms, end_ms, duration_ms, run_trigger, success, counts_json, error_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, entry.ID, entry.StartTime.UnixMilli(), entry.EndTime.UnixMilli(), entry.DurationMs,
		string(entry.Trigger), entry.Success, string(countsJSON), errorJSON); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM sync_history WHERE rowid NOT IN (
  SELECT rowid FROM sync_history ORDER BY start_ms DESC, rowid DESC LIMIT ?
)
`, limit); err != nil {
		return fmt.Errorf("failed to truncate history: %w", err)
	}

	return tx.Commit()
}

// ListHistory returns entries newest first.
func (d *DB) ListHistory(ctx context.Context) ([]internal.HistoryEntry, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, start_ms, end_ms, duration_ms, run_trigger, success, counts_json, error_json
FROM sync_history
ORDER BY start_ms DESC, rowid DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.HistoryEntry{}
	for rows.Next() {
		var (
			entry      internal.HistoryEntry
			startMs    int64
			endMs      int64
			trigger    string
			countsJSON string
			errorJSON  *string
		)
		if err := rows.Scan(&entry.ID, &startMs, &endMs, &entry.DurationMs, &trigger, &entry.Success, &countsJSON, &errorJSON); err != nil {
			return nil, err
		}
		entry.StartTime = time.UnixMilli(startMs).UTC()
		entry.EndTime = time.UnixMilli(endMs).UTC()
		entry.Trigger = internal.Trigger(trigger)
		_ = json.Unmarshal([]byte(countsJSON), &entry.Counts)
		if errorJSON != nil {
			var e internal.SyncError
			if err := json.Unmarshal([]byte(*errorJSON), &e); err == nil {
				entry.Error = &e
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
