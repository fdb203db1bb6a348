package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"catalogsync/internal"
)

const (
	keyLastSuccess     = "sync.last_success"
	keyAutoSync        = "sync.auto_sync"
	keyIntervalMinutes = "sync.interval_minutes"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS sync_run (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  is_running INTEGER NOT NULL DEFAULT 0,
  reclaimed INTEGER NOT NULL DEFAULT 0,
  run_id TEXT,
  phase TEXT NOT NULL DEFAULT 'idle',
  run_trigger TEXT,
  start_ms INTEGER,
  end_ms INTEGER,
  duration_ms INTEGER,
  last_result TEXT,
  last_error TEXT,
  updated_ms INTEGER
);
INSERT OR IGNORE INTO sync_run (id) VALUES (1);

CREATE TABLE IF NOT EXISTS sync_history (
  id TEXT PRIMARY KEY,
  start_ms INTEGER NOT NULL,
  end_ms INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  run_trigger TEXT NOT NULL,
  success INTEGER NOT NULL,
  counts_json TEXT NOT NULL,
  error_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_sync_history_start ON sync_history(start_ms);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) SetLastSuccess(ctx context.Context, at time.Time) error {
	return d.SetMetadata(ctx, keyLastSuccess, at.UTC().Format(time.RFC3339))
}

// LastSuccess returns nil when no run has ever committed.
func (d *DB) LastSuccess(ctx context.Context) (*time.Time, error) {
	raw, err := d.GetMetadata(ctx, keyLastSuccess)
	if err != nil || raw == nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", keyLastSuccess, err)
	}
	return &parsed, nil
}

// Settings returns the persisted sync settings, filling gaps from defaults.
func (d *DB) Settings(ctx context.Context, defaults internal.SyncSettings) (internal.SyncSettings, error) {
	out := defaults
	auto, err := d.GetMetadata(ctx, keyAutoSync)
	if err != nil {
		return out, err
	}
	if auto != nil {
		if b, err := strconv.ParseBool(*auto); err == nil {
			out.AutoSync = b
		}
	}
	interval, err := d.GetMetadata(ctx, keyIntervalMinutes)
	if err != nil {
		return out, err
	}
	if interval != nil {
		if n, err := strconv.Atoi(*interval); err == nil && n > 0 {
			out.IntervalMinutes = n
		}
	}
	return out, nil
}

func (d *DB) SaveSettings(ctx context.Context, s internal.SyncSettings) error {
	if s.IntervalMinutes <= 0 {
		return fmt.Errorf("interval must be positive, got %d", s.IntervalMinutes)
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`
	if _, err := tx.ExecContext(ctx, upsert, keyAutoSync, strconv.FormatBool(s.AutoSync)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, keyIntervalMinutes, strconv.Itoa(s.IntervalMinutes)); err != nil {
		return err
	}
	return tx.Commit()
}
