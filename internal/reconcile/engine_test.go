package reconcile

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogsync/internal"
	"catalogsync/internal/upstream"
	"catalogsync/internal/util"
)

func TestRunCommitsCatalog(t *testing.T) {
	ctx := context.Background()
	up := catalogUpstream(4)
	up.skipped = 2
	h := newHarness(t, up)

	report, err := h.engine.RunOnce(ctx, internal.TriggerCLI)
	require.NoError(t, err)
	require.True(t, report.Success, "%+v", report.Err)
	assert.Equal(t, 4, report.Counts.Products)
	assert.Equal(t, 2, report.Counts.Sections)
	assert.Equal(t, 2, report.Counts.SkippedRecords)

	products, err := h.store.Read()
	require.NoError(t, err)
	require.Len(t, products, 4)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, 1.99, products[0].Price)
	assert.Equal(t, "BEBIDAS", products[0].Category)
	assert.Equal(t, "", products[0].Image)
	assert.False(t, products[2].InStock)
	assert.True(t, products[3].InStock)

	run, err := h.db.GetRun(ctx)
	require.NoError(t, err)
	assert.False(t, run.IsRunning)
	assert.Equal(t, internal.PhaseSucceeded, run.Phase)
	require.NotNil(t, run.LastResult)
	assert.Equal(t, 4, run.LastResult.Counts.Products)

	last, err := h.db.LastSuccess(ctx)
	require.NoError(t, err)
	assert.NotNil(t, last)

	history, err := h.db.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, report.RunID, history[0].ID)
	assert.True(t, history[0].Success)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalogUpstream(25))

	first, err := h.engine.RunOnce(ctx, internal.TriggerCLI)
	require.NoError(t, err)
	require.True(t, first.Success)
	before, err := os.ReadFile(h.store.PrimaryPath())
	require.NoError(t, err)

	second, err := h.engine.RunOnce(ctx, internal.TriggerCLI)
	require.NoError(t, err)
	require.True(t, second.Success)
	after, err := os.ReadFile(h.store.PrimaryPath())
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after))
	backup, err := os.ReadFile(h.store.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, string(after), string(backup))
}

func TestCustomImageSurvivesRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalogUpstream(3))
	require.NoError(t, h.store.Write([]internal.Product{
		{ID: "2", Name: "old", Category: "GERAL", Image: "https://cdn.shop.test/curated-2.webp"},
		{ID: "3", Name: "old", Category: "GERAL", Image: "https://images.unsplash.com/stock"},
	}))

	report, err := h.engine.RunOnce(ctx, internal.TriggerCLI)
	require.NoError(t, err)
	require.True(t, report.Success)
	assert.Equal(t, 1, report.Counts.ImagesPreserved)

	products, err := h.store.Read()
	require.NoError(t, err)
	byID := map[string]internal.Product{}
	for _, p := range products {
		byID[p.ID] = p
	}
	assert.Equal(t, "https://cdn.shop.test/curated-2.webp", byID["2"].Image)
	assert.Equal(t, "", byID["3"].Image)
	assert.Equal(t, "Produto teste 2", byID["2"].Name)
}

func TestUpstreamFailureLeavesCatalogUntouched(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind internal.ErrorKind
	}{
		{
			name: "unavailable",
			err:  &upstream.Error{Kind: internal.ErrUpstreamUnavailable, Resource: "prices", Status: 503, Err: errors.New("down")},
			kind: internal.ErrUpstreamUnavailable,
		},
		{
			name: "malformed",
			err:  &upstream.Error{Kind: internal.ErrUpstreamMalformed, Resource: "prices", Err: errors.New("no items")},
			kind: internal.ErrUpstreamMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			up := catalogUpstream(5)
			up.failOn = "prices"
			up.failErr = tc.err
			h := newHarness(t, up)
			seedCatalog(t, h.store, 8)
			before, err := os.ReadFile(h.store.PrimaryPath())
			require.NoError(t, err)

			report, err := h.engine.RunOnce(ctx, internal.TriggerCLI)
			require.NoError(t, err)
			assert.False(t, report.Success)
			require.NotNil(t, report.Err)
			assert.Equal(t, tc.kind, report.Err.Kind)
			assert.Equal(t, internal.PhaseFetching, report.Err.Phase)
			assert.Equal(t, "prices", report.Err.Resource)

			after, err := os.ReadFile(h.store.PrimaryPath())
			require.NoError(t, err)
			assert.Equal(t, before, after)

			run, err := h.db.GetRun(ctx)
			require.NoError(t, err)
			assert.False(t, run.IsRunning)
			assert.Equal(t, internal.PhaseFailed, run.Phase)
			require.NotNil(t, run.LastError)
			assert.Equal(t, tc.kind, run.LastError.Kind)
			assert.Nil(t, run.LastResult)

			history, err := h.db.ListHistory(ctx)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.False(t, history[0].Success)

			last, err := h.db.LastSuccess(ctx)
			require.NoError(t, err)
			assert.Nil(t, last)
		})
	}
}

func TestEmptyUpstreamIsRejected(t *testing.T) {
	ctx := context.Background()
	up := catalogUpstream(0)
	h := newHarness(t, up)
	seedCatalog(t, h.store, 500)
	before, err := os.ReadFile(h.store.PrimaryPath())
	require.NoError(t, err)

	report, err := h.engine.RunOnce(ctx, internal.TriggerAuto)
	require.NoError(t, err)
	assert.False(t, report.Success)
	require.NotNil(t, report.Err)
	assert.Equal(t, internal.ErrValidationFailed, report.Err.Kind)
	assert.Equal(t, internal.PhaseValidating, report.Err.Phase)

	after, err := os.ReadFile(h.store.PrimaryPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	products, err := h.store.Read()
	require.NoError(t, err)
	assert.Len(t, products, 500)
}

func TestShrinkGuard(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, catalogUpstream(4))
	seedCatalog(t, h.store, 10)
	report, err := h.engine.RunOnce(ctx, internal.TriggerCLI)
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Equal(t, internal.ErrValidationFailed, report.Err.Kind)

	disabled := newHarness(t, catalogUpstream(4), func(o *Options) { o.MaxShrinkRatio = 0 })
	seedCatalog(t, disabled.store, 10)
	report, err = disabled.engine.RunOnce(ctx, internal.TriggerCLI)
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestEmptyCatalogOnFreshInstallCommits(t *testing.T) {
	h := newHarness(t, catalogUpstream(0))
	report, err := h.engine.RunOnce(context.Background(), internal.TriggerCLI)
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestPlaceholderKeysDoNotStealPrices(t *testing.T) {
	ctx := context.Background()
	up := &fakeUpstream{}
	for i := 0; i < 50; i++ {
		up.prices = append(up.prices, internal.RawPrice{
			ID:           i + 1,
			ProductID:    5000 + i,
			ExternalID:   util.StringPtr("undefined"),
			InternalCode: util.StringPtr("undefined"),
			SalePrice1:   1,
		})
	}
	up.prices = append(up.prices, internal.RawPrice{ID: 77, ProductID: 42, SalePrice1: 19.9})
	up.products = []internal.RawProduct{
		{ID: 42, Name: "Cafe", ExternalID: util.StringPtr("undefined"), InternalCode: util.StringPtr("undefined")},
		{ID: 43, Name: "Cha", ExternalID: util.StringPtr("undefined"), InternalCode: util.StringPtr("undefined")},
	}
	h := newHarness(t, up)

	report, err := h.engine.RunOnce(ctx, internal.TriggerCLI)
	require.NoError(t, err)
	require.True(t, report.Success)
	assert.Equal(t, 1, report.Counts.PriceUnresolved)

	products, err := h.store.Read()
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 19.9, products[0].Price)
	assert.Equal(t, internal.PriceSourceProductID, products[0].PriceSource)
	assert.Equal(t, 0.0, products[1].Price)
	assert.True(t, products[1].PriceUnresolved)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))

	se := classify(inPhase(internal.PhaseCommitting, errors.New("disk full")))
	assert.Equal(t, internal.ErrInternal, se.Kind)
	assert.Equal(t, internal.PhaseCommitting, se.Phase)

	se = classify(&RejectedError{})
	assert.Equal(t, internal.ErrConcurrentRunRejected, se.Kind)
}

func TestSupersededRunLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalogUpstream(2))

	run, err := h.engine.Acquire(ctx, internal.TriggerManual)
	require.NoError(t, err)

	acq, err := h.db.TryAcquireRun(ctx, "reclaimer", internal.TriggerAuto, run.StartedAt.Add(time.Hour), 10*time.Minute)
	require.NoError(t, err)
	require.True(t, acq.Acquired)
	require.True(t, acq.Reclaimed)

	report := h.engine.Execute(ctx, run)
	assert.False(t, report.Success)
	require.NotNil(t, report.Err)
	assert.Equal(t, internal.ErrConcurrentRunRejected, report.Err.Kind)

	history, err := h.service.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	status, err := h.service.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
	assert.Equal(t, "reclaimer", status.RunID)
}
