package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"catalogsync/internal"
)

// Acquisition is the outcome of TryAcquireRun. When Acquired is false,
// Holder describes the run that owns the lock.
type Acquisition struct {
	Acquired  bool
	Reclaimed bool
	Holder    internal.SyncRun
}

// RunOutcome is what a finished run leaves on the sync_run row.
type RunOutcome struct {
	Result  *internal.SyncResult
	Err     *internal.SyncError
	EndedAt time.Time
}

// TryAcquireRun takes the run lock with a single conditional update. A run
// that started before now-staleAfter is treated as dead and taken over.
func (d *DB) TryAcquireRun(ctx context.Context, runID string, trigger internal.Trigger, now time.Time, staleAfter time.Duration) (Acquisition, error) {
	nowMs := now.UnixMilli()
	staleBefore := now.Add(-staleAfter).UnixMilli()

	res, err := d.conn.ExecContext(ctx, `
UPDATE sync_run SET
  reclaimed = is_running,
  is_running = 1,
  run_id = ?,
  phase = ?,
  run_trigger = ?,
  start_ms = ?,
  end_ms = NULL,
  duration_ms = NULL,
  last_result = NULL,
  last_error = NULL,
  updated_ms = ?
WHERE id = 1 AND (is_running = 0 OR start_ms IS NULL OR start_ms < ?)
`, runID, string(internal.PhaseIdle), string(trigger), nowMs, nowMs, staleBefore)
	if err != nil {
		return Acquisition{}, fmt.Errorf("failed to acquire sync run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Acquisition{}, err
	}

	if n == 0 {
		holder, err := d.GetRun(ctx)
		if err != nil {
			return Acquisition{}, err
		}
		return Acquisition{Acquired: false, Holder: holder}, nil
	}

	var reclaimed bool
	if err := d.conn.QueryRowContext(ctx, `SELECT reclaimed FROM sync_run WHERE id = 1 AND run_id = ?`, runID).Scan(&reclaimed); err != nil {
		return Acquisition{}, err
	}
	return Acquisition{Acquired: true, Reclaimed: reclaimed}, nil
}

// SetRunPhase records a phase transition for the run holding the lock.
func (d *DB) SetRunPhase(ctx context.Context, runID string, phase internal.Phase) error {
	res, err := d.conn.ExecContext(ctx, `
UPDATE sync_run SET phase = ?, updated_ms = ?
WHERE id = 1 AND run_id = ? AND is_running = 1
`, string(phase), time.Now().UnixMilli(), runID)
	if err != nil {
		return err
	}
	return requireOwned(res)
}

func (d *DB) ReleaseRun(ctx context.Context, runID string, outcome RunOutcome) error {
	phase := internal.PhaseSucceeded
	if outcome.Err != nil {
		phase = internal.PhaseFailed
	}
	resultJSON, err := nullableJSON(outcome.Result)
	if err != nil {
		return err
	}
	errorJSON, err := nullableJSON(outcome.Err)
	if err != nil {
		return err
	}
	endMs := outcome.EndedAt.UnixMilli()

	res, err := d.conn.ExecContext(ctx, `
UPDATE sync_run SET
  is_running = 0,
  phase = ?,
  end_ms = ?,
  duration_ms = MAX(0, ? - COALESCE(start_ms, ?)),
  last_result = ?,
  last_error = ?,
  updated_ms = ?
WHERE id = 1 AND run_id = ? AND is_running = 1
`, string(phase), endMs, endMs, endMs, resultJSON, errorJSON, endMs, runID)
	if err != nil {
		return fmt.Errorf("failed to release sync run: %w", err)
	}
	return requireOwned(res)
}

// ResetRun force-clears the run state, including a live lock.
func (d *DB) ResetRun(ctx context.Context, now time.Time) error {
	_, err := d.conn.ExecContext(ctx, `
UPDATE sync_run SET
  is_running = 0,
  reclaimed = 0,
  run_id = NULL,
  phase = ?,
  run_trigger = NULL,
  start_ms = NULL,
  end_ms = NULL,
  duration_ms = NULL,
  last_result = NULL,
  last_error = NULL,
  updated_ms = ?
WHERE id = 1
`, string(internal.PhaseIdle), now.UnixMilli())
	return err
}

func (d *DB) GetRun(ctx context.Context) (internal.SyncRun, error) {
	var (
		isRunning  bool
		runID      sql.NullString
		phase      string
		trigger    sql.NullString
		startMs    sql.NullInt64
		endMs      sql.NullInt64
		durationMs sql.NullInt64
		resultJSON sql.NullString
		errorJSON  sql.NullString
		updatedMs  sql.NullInt64
	)
	err := d.conn.QueryRowContext(ctx, `
SELECT is_running, run_id, phase, run_trigger, start_ms, end_ms, duration_ms, last_result, last_error, updated_ms
FROM sync_run WHERE id = 1
`).Scan(&isRunning, &runID, &phase, &trigger, &startMs, &endMs, &durationMs, &resultJSON, &errorJSON, &updatedMs)
	if err != nil {
		return internal.SyncRun{}, fmt.Errorf("failed to read sync run: %w", err)
	}

	run := internal.SyncRun{
		IsRunning:  isRunning,
		RunID:      runID.String,
		Phase:      internal.Phase(phase),
		Trigger:    internal.Trigger(trigger.String),
		StartTime:  msPtr(startMs),
		EndTime:    msPtr(endMs),
		LastUpdate: msPtr(updatedMs),
	}
	if durationMs.Valid {
		v := durationMs.Int64
		run.DurationMs = &v
	}
	if resultJSON.Valid {
		var r internal.SyncResult
		if err := json.Unmarshal([]byte(resultJSON.String), &r); err == nil {
			run.LastResult = &r
		}
	}
	if errorJSON.Valid {
		var e internal.SyncError
		if err := json.Unmarshal([]byte(errorJSON.String), &e); err == nil {
			run.LastError = &e
		}
	}
	return run, nil
}

func requireOwned(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunSuperseded
	}
	return nil
}

func nullableJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(blob), Valid: true}, nil
}

func msPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
