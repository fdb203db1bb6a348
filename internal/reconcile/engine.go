package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalogsync/internal"
	"catalogsync/internal/catalog"
	"catalogsync/internal/config"
	"catalogsync/internal/metrics"
	"catalogsync/internal/storage"
)

type Upstream interface {
	FetchSections(ctx context.Context) ([]internal.TaxonomyRecord, int, error)
	FetchGroups(ctx context.Context, sectionIDs []int) ([]internal.GroupRecord, int, error)
	FetchBrands(ctx context.Context) ([]internal.TaxonomyRecord, int, error)
	FetchGenres(ctx context.Context) ([]internal.TaxonomyRecord, int, error)
	FetchPrices(ctx context.Context) ([]internal.RawPrice, int, error)
	FetchStock(ctx context.Context) ([]internal.RawStock, int, error)
	FetchProducts(ctx context.Context) ([]internal.RawProduct, int, error)
}

type RunStore interface {
	TryAcquireRun(ctx context.Context, runID string, trigger internal.Trigger, now time.Time, staleAfter time.Duration) (storage.Acquisition, error)
	SetRunPhase(ctx context.Context, runID string, phase internal.Phase) error
	ReleaseRun(ctx context.Context, runID string, outcome storage.RunOutcome) error
	ResetRun(ctx context.Context, now time.Time) error
	GetRun(ctx context.Context) (internal.SyncRun, error)
	AppendHistory(ctx context.Context, entry internal.HistoryEntry, limit int) error
	ListHistory(ctx context.Context) ([]internal.HistoryEntry, error)
	SetLastSuccess(ctx context.Context, at time.Time) error
	LastSuccess(ctx context.Context) (*time.Time, error)
	Settings(ctx context.Context, defaults internal.SyncSettings) (internal.SyncSettings, error)
	SaveSettings(ctx context.Context, s internal.SyncSettings) error
}

type CatalogStore interface {
	Load() (storage.Loaded, error)
	Write(products []internal.Product) error
	CheckIntegrity(driftThreshold int) storage.IntegrityReport
}

type Options struct {
	Build          catalog.BuildOptions
	Placeholders   []string
	ImageDenylist  []string
	MaxShrinkRatio float64
	StaleAfter     time.Duration
	HistoryLimit   int
	DriftThreshold int
}

func OptionsFrom(cfg config.Config) Options {
	return Options{
		Build: catalog.BuildOptions{
			DefaultCategory: cfg.DefaultCategory,
			DefaultBrand:    cfg.DefaultBrand,
			SourceTag:       cfg.SourceTag,
			StoreID:         cfg.ERPStoreID,
		},
		Placeholders:   cfg.ERPPlaceholderKeys,
		ImageDenylist:  cfg.ImageDenylist,
		MaxShrinkRatio: cfg.MaxShrinkRatio,
		StaleAfter:     cfg.SyncStaleAfter(),
		HistoryLimit:   cfg.HistoryLimit,
		DriftThreshold: cfg.IntegrityDriftThreshold,
	}
}

func DefaultSettings(cfg config.Config) internal.SyncSettings {
	return internal.SyncSettings{AutoSync: cfg.AutoSyncEnabled, IntervalMinutes: cfg.AutoSyncIntervalMin}
}

// Run is a granted run lock.
type Run struct {
	ID        string
	Trigger   internal.Trigger
	StartedAt time.Time
	Reclaimed bool
}

type Report struct {
	RunID     string              `json:"runId"`
	Trigger   internal.Trigger    `json:"trigger"`
	Success   bool                `json:"success"`
	Counts    internal.SyncCounts `json:"counts"`
	Err       *internal.SyncError `json:"error,omitempty"`
	StartedAt time.Time           `json:"startedAt"`
	EndedAt   time.Time           `json:"endedAt"`
	Reclaimed bool                `json:"reclaimed,omitempty"`
}

func (r Report) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Engine runs one reconciliation: fetch, match, preserve overrides, validate
// and commit.
type Engine struct {
	up        Upstream
	runs      RunStore
	store     CatalogStore
	opts      Options
	overrides *catalog.Overrides
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewEngine(up Upstream, runs RunStore, store CatalogStore, opts Options, log *zap.Logger) *Engine {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = storage.DefaultHistoryLimit
	}
	return &Engine{
		up:        up,
		runs:      runs,
		store:     store,
		opts:      opts,
		overrides: catalog.NewOverrides(opts.ImageDenylist),
		log:       log.Named("reconcile"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Acquire takes the run lock or returns a *RejectedError.
func (e *Engine) Acquire(ctx context.Context, trigger internal.Trigger) (*Run, error) {
	run := &Run{ID: e.newID(), Trigger: trigger, StartedAt: e.now()}
	acq, err := e.runs.TryAcquireRun(ctx, run.ID, trigger, run.StartedAt, e.opts.StaleAfter)
	if err != nil {
		return nil, err
	}
	if !acq.Acquired {
		metrics.RecordRejected()
		return nil, &RejectedError{Holder: acq.Holder}
	}
	run.Reclaimed = acq.Reclaimed
	if run.Reclaimed {
		e.log.Warn("reclaimed stale sync run", zap.String("run_id", run.ID))
	}
	return run, nil
}

// RunOnce acquires the lock and executes a run in the calling goroutine.
func (e *Engine) RunOnce(ctx context.Context, trigger internal.Trigger) (Report, error) {
	run, err := e.Acquire(ctx, trigger)
	if err != nil {
		return Report{}, err
	}
	return e.Execute(ctx, run), nil
}

// Execute drives a granted run to a terminal state. It appends one history
// entry and releases the lock unless another run has reclaimed it.
func (e *Engine) Execute(ctx context.Context, run *Run) Report {
	log := e.log.With(zap.String("run_id", run.ID), zap.String("trigger", string(run.Trigger)))
	log.Info("sync started")

	counts, err := e.execute(ctx, run, log)
	return e.finish(ctx, run, counts, err, log)
}

type fetched struct {
	sections []internal.TaxonomyRecord
	groups   []internal.GroupRecord
	brands   []internal.TaxonomyRecord
	genres   []internal.TaxonomyRecord
	prices   []internal.RawPrice
	stock    []internal.RawStock
	products []internal.RawProduct
}

func (e *Engine) execute(ctx context.Context, run *Run, log *zap.Logger) (internal.SyncCounts, error) {
	var counts internal.SyncCounts

	if err := e.runs.SetRunPhase(ctx, run.ID, internal.PhaseFetching); err != nil {
		return counts, inPhase(internal.PhaseFetching, err)
	}
	data, err := e.fetch(ctx, &counts)
	if err != nil {
		return counts, inPhase(internal.PhaseFetching, err)
	}

	if err := e.runs.SetRunPhase(ctx, run.ID, internal.PhaseMatching); err != nil {
		return counts, inPhase(internal.PhaseMatching, err)
	}
	index := catalog.BuildPriceIndex(data.prices, catalog.IndexOptions{Placeholders: e.opts.Placeholders, StoreID: e.opts.Build.StoreID})
	taxonomy := catalog.NewTaxonomy(data.sections, data.groups, data.brands, data.genres)
	builder := catalog.NewBuilder(e.opts.Build, taxonomy, catalog.NewMatcher(index, e.opts.Placeholders), data.stock)
	products, stats := builder.Build(data.products)
	counts.PriceUnresolved = stats.PriceUnresolved
	log.Info("catalog merged",
		zap.Int("products", stats.Products),
		zap.Int("duplicate_ids", stats.DuplicateIDs),
		zap.Int("price_unresolved", stats.PriceUnresolved),
		zap.Int("degenerate_keys", index.DegenerateKeys),
		zap.Int("ambiguous_external_ids", index.AmbiguousExternalIDs),
		zap.Int("ambiguous_internal_codes", index.AmbiguousInternalCodes),
	)
	if stats.SuspiciousStock > 0 || stats.NegativeStock > 0 {
		log.Warn("unusual stock balances",
			zap.Int("suspicious", stats.SuspiciousStock),
			zap.Int("negative", stats.NegativeStock),
		)
	}

	if err := e.runs.SetRunPhase(ctx, run.ID, internal.PhasePreserving); err != nil {
		return counts, inPhase(internal.PhasePreserving, err)
	}
	current, err := e.store.Load()
	if err != nil {
		return counts, inPhase(internal.PhasePreserving, fmt.Errorf("failed to read current catalog: %w", err))
	}
	snapshot := e.overrides.Snapshot(current.Products)
	products, counts.ImagesPreserved = e.overrides.Apply(snapshot, products)

	if err := e.runs.SetRunPhase(ctx, run.ID, internal.PhaseValidating); err != nil {
		return counts, inPhase(internal.PhaseValidating, err)
	}
	if err := e.validate(current.Products, products); err != nil {
		return counts, inPhase(internal.PhaseValidating, err)
	}

	if err := e.runs.SetRunPhase(ctx, run.ID, internal.PhaseCommitting); err != nil {
		return counts, inPhase(internal.PhaseCommitting, err)
	}
	if err := e.store.Write(products); err != nil {
		return counts, inPhase(internal.PhaseCommitting, err)
	}
	counts.Products = len(products)
	if err := e.runs.SetLastSuccess(ctx, e.now()); err != nil {
		log.Warn("failed to record last successful sync", zap.Error(err))
	}
	metrics.SetCatalogSize(len(products), counts.PriceUnresolved)
	return counts, nil
}

// fetch pulls every resource in a fixed order. Any failure aborts the run.
func (e *Engine) fetch(ctx context.Context, counts *internal.SyncCounts) (fetched, error) {
	var (
		out     fetched
		skipped int
		err     error
	)
	add := func(n int) { counts.SkippedRecords += n }

	if out.sections, skipped, err = e.up.FetchSections(ctx); err != nil {
		return out, err
	}
	add(skipped)
	counts.Sections = len(out.sections)

	sectionIDs := make([]int, 0, len(out.sections))
	for _, s := range out.sections {
		sectionIDs = append(sectionIDs, s.ID)
	}
	if out.groups, skipped, err = e.up.FetchGroups(ctx, sectionIDs); err != nil {
		return out, err
	}
	add(skipped)
	counts.Groups = len(out.groups)

	if out.brands, skipped, err = e.up.FetchBrands(ctx); err != nil {
		return out, err
	}
	add(skipped)
	counts.Brands = len(out.brands)

	if out.genres, skipped, err = e.up.FetchGenres(ctx); err != nil {
		return out, err
	}
	add(skipped)
	counts.Genres = len(out.genres)

	if out.prices, skipped, err = e.up.FetchPrices(ctx); err != nil {
		return out, err
	}
	add(skipped)
	counts.Prices = len(out.prices)

	if out.stock, skipped, err = e.up.FetchStock(ctx); err != nil {
		return out, err
	}
	add(skipped)
	counts.Stock = len(out.stock)

	if out.products, skipped, err = e.up.FetchProducts(ctx); err != nil {
		return out, err
	}
	add(skipped)
	counts.Products = len(out.products)
	return out, nil
}

func (e *Engine) validate(previous, next []internal.Product) error {
	if len(next) == 0 && len(previous) > 0 {
		return fmt.Errorf("%w: upstream returned no products, current catalog has %d", ErrValidationFailed, len(previous))
	}
	if err := catalog.Validate(next); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if e.opts.MaxShrinkRatio > 0 && len(previous) > 0 {
		lost := len(previous) - len(next)
		if lost > 0 && float64(lost)/float64(len(previous)) > e.opts.MaxShrinkRatio {
			return fmt.Errorf("%w: catalog would shrink from %d to %d products", ErrValidationFailed, len(previous), len(next))
		}
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, run *Run, counts internal.SyncCounts, runErr error, log *zap.Logger) Report {
	ctx = context.WithoutCancel(ctx)
	end := e.now()
	syncErr := classify(runErr)
	report := Report{
		RunID:     run.ID,
		Trigger:   run.Trigger,
		Success:   syncErr == nil,
		Counts:    counts,
		Err:       syncErr,
		StartedAt: run.StartedAt,
		EndedAt:   end,
		Reclaimed: run.Reclaimed,
	}
	durationMs := end.Sub(run.StartedAt).Milliseconds()

	// A superseded run no longer owns the lock; the run that reclaimed it
	// writes the state and the history entry.
	if errors.Is(runErr, storage.ErrRunSuperseded) {
		log.Warn("sync run superseded, leaving state to the new holder")
	} else {
		entry := internal.HistoryEntry{
			ID:         run.ID,
			StartTime:  run.StartedAt,
			EndTime:    end,
			DurationMs: durationMs,
			Trigger:    run.Trigger,
			Success:    report.Success,
			Counts:     counts,
			Error:      syncErr,
		}
		if err := e.runs.AppendHistory(ctx, entry, e.opts.HistoryLimit); err != nil {
			log.Error("failed to append sync history", zap.Error(err))
		}

		outcome := storage.RunOutcome{Err: syncErr, EndedAt: end}
		if syncErr == nil {
			outcome.Result = &internal.SyncResult{Counts: counts, CompletedAt: end, DurationMs: durationMs}
		}
		if err := e.runs.ReleaseRun(ctx, run.ID, outcome); err != nil {
			log.Warn("failed to release sync run", zap.Error(err))
		}
	}

	metrics.RecordRun(string(run.Trigger), report.Success, report.Duration())
	if syncErr != nil {
		log.Error("sync failed",
			zap.String("kind", string(syncErr.Kind)),
			zap.String("phase", string(syncErr.Phase)),
			zap.String("error", syncErr.Message),
		)
	} else {
		log.Info("sync finished",
			zap.Int("products", counts.Products),
			zap.Int("images_preserved", counts.ImagesPreserved),
			zap.Int64("duration_ms", durationMs),
		)
	}
	return report
}
