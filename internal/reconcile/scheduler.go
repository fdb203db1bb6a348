package reconcile

import (
	"context"
	"time"

	"catalogsync/internal"
)

// IsDue reports whether a sync should run. A nil lastSuccess is always due.
func IsDue(lastSuccess *time.Time, interval time.Duration, now time.Time) bool {
	if lastSuccess == nil || interval <= 0 {
		return true
	}
	return now.Sub(*lastSuccess) >= interval
}

// Scheduler decides from persisted state alone whether an automatic run is due.
type Scheduler struct {
	engine   *Engine
	runs     RunStore
	defaults internal.SyncSettings
	now      func() time.Time
}

func NewScheduler(engine *Engine, runs RunStore, defaults internal.SyncSettings) *Scheduler {
	return &Scheduler{engine: engine, runs: runs, defaults: defaults, now: time.Now}
}

func (s *Scheduler) Due(ctx context.Context) (bool, error) {
	settings, err := s.runs.Settings(ctx, s.defaults)
	if err != nil {
		return false, err
	}
	if !settings.AutoSync {
		return false, nil
	}
	last, err := s.runs.LastSuccess(ctx)
	if err != nil {
		return false, err
	}
	return IsDue(last, settings.Interval(), s.now()), nil
}

// RunIfDue runs the engine inside the calling goroutine when forced or due.
// A nil report means nothing ran.
func (s *Scheduler) RunIfDue(ctx context.Context, force bool, trigger internal.Trigger) (*Report, error) {
	if !force {
		due, err := s.Due(ctx)
		if err != nil {
			return nil, err
		}
		if !due {
			return nil, nil
		}
	}
	report, err := s.engine.RunOnce(ctx, trigger)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
