package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalogsync/internal"
	"catalogsync/internal/metrics"
	"catalogsync/internal/storage"
)

type StartResult struct {
	Accepted       bool   `json:"accepted"`
	AlreadyRunning bool   `json:"alreadyRunning"`
	NotDue         bool   `json:"notDue,omitempty"` // scheduled starts only
	RunID          string `json:"runId,omitempty"`
}

// SettingsPatch updates only the fields that are set.
type SettingsPatch struct {
	AutoSync        *bool `json:"autoSync"`
	IntervalMinutes *int  `json:"intervalMinutes"`
}

// Service is the trigger and read surface shared by the CLI and the HTTP API.
type Service struct {
	engine         *Engine
	scheduler      *Scheduler
	runs           RunStore
	store          CatalogStore
	defaults       internal.SyncSettings
	driftThreshold int
	log            *zap.Logger

	wg sync.WaitGroup
}

func NewService(engine *Engine, runs RunStore, store CatalogStore, defaults internal.SyncSettings, log *zap.Logger) *Service {
	return &Service{
		engine:         engine,
		scheduler:      NewScheduler(engine, runs, defaults),
		runs:           runs,
		store:          store,
		defaults:       defaults,
		driftThreshold: engine.opts.DriftThreshold,
		log:            log.Named("service"),
	}
}

// StartSync is the explicit trigger: it always tries the run lock and executes
// the run in the background. Without force the current catalog is checked and
// logged first.
func (s *Service) StartSync(ctx context.Context, force bool) (StartResult, error) {
	if force {
		s.log.Info("forced sync requested")
	} else {
		s.preflight()
	}
	return s.start(ctx, internal.TriggerManual)
}

// startIfDue starts an automatic run only when the schedule says so.
func (s *Service) startIfDue(ctx context.Context) (StartResult, error) {
	due, err := s.scheduler.Due(ctx)
	if err != nil {
		return StartResult{}, err
	}
	if !due {
		return StartResult{NotDue: true}, nil
	}
	return s.start(ctx, internal.TriggerAuto)
}

func (s *Service) start(ctx context.Context, trigger internal.Trigger) (StartResult, error) {
	run, err := s.engine.Acquire(ctx, trigger)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return StartResult{AlreadyRunning: true, RunID: rejected.Holder.RunID}, nil
		}
		return StartResult{}, err
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.engine.Execute(bg, run)
	}()
	return StartResult{Accepted: true, RunID: run.ID}, nil
}

func (s *Service) preflight() {
	report := s.Integrity()
	if err := report.Err(); err != nil {
		s.log.Warn("starting sync over degraded catalog", zap.Error(err), zap.Int("alerts", len(report.Alerts)))
	}
}

// RunIfDue runs synchronously; used by the CLI.
func (s *Service) RunIfDue(ctx context.Context, force bool) (*Report, error) {
	return s.scheduler.RunIfDue(ctx, force, internal.TriggerCLI)
}

// Poke gives catalog reads a chance to start a due auto-sync.
func (s *Service) Poke(ctx context.Context) {
	res, err := s.startIfDue(ctx)
	if err != nil {
		s.log.Warn("auto-sync check failed", zap.Error(err))
		return
	}
	if res.Accepted {
		s.log.Info("auto-sync started", zap.String("run_id", res.RunID))
	}
}

// Wait blocks until background runs started by this service have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Status(ctx context.Context) (internal.SyncRun, error) {
	return s.runs.GetRun(ctx)
}

func (s *Service) History(ctx context.Context) ([]internal.HistoryEntry, error) {
	return s.runs.ListHistory(ctx)
}

func (s *Service) Reset(ctx context.Context) error {
	s.log.Warn("sync state reset")
	return s.runs.ResetRun(ctx, time.Now())
}

func (s *Service) Settings(ctx context.Context) (internal.SyncSettings, error) {
	return s.runs.Settings(ctx, s.defaults)
}

func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (internal.SyncSettings, error) {
	current, err := s.runs.Settings(ctx, s.defaults)
	if err != nil {
		return current, err
	}
	if patch.AutoSync != nil {
		current.AutoSync = *patch.AutoSync
	}
	if patch.IntervalMinutes != nil {
		if *patch.IntervalMinutes <= 0 {
			return current, fmt.Errorf("intervalMinutes must be positive, got %d", *patch.IntervalMinutes)
		}
		current.IntervalMinutes = *patch.IntervalMinutes
	}
	if err := s.runs.SaveSettings(ctx, current); err != nil {
		return current, err
	}
	return current, nil
}

func (s *Service) LastSuccess(ctx context.Context) (*time.Time, error) {
	return s.runs.LastSuccess(ctx)
}

// ListCatalog serves the stored catalog. An unreadable store reads as empty;
// the integrity report carries the alert.
func (s *Service) ListCatalog() ([]internal.Product, error) {
	loaded, err := s.store.Load()
	if errors.Is(err, storage.ErrCatalogUnreadable) {
		s.log.Warn("catalog unreadable, serving empty list", zap.Error(err))
		return []internal.Product{}, nil
	}
	if err != nil {
		return nil, err
	}
	return loaded.Products, nil
}

func (s *Service) Integrity() storage.IntegrityReport {
	report := s.store.CheckIntegrity(s.driftThreshold)
	metrics.SetIntegrityAlerts(report.CountBySeverity())
	return report
}
