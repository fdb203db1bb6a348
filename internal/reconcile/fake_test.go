package reconcile

import (
	"context"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalogsync/internal"
	"catalogsync/internal/catalog"
	"catalogsync/internal/storage"
	"catalogsync/internal/util"
)

type fakeUpstream struct {
	sections []internal.TaxonomyRecord
	groups   []internal.GroupRecord
	brands   []internal.TaxonomyRecord
	genres   []internal.TaxonomyRecord
	prices   []internal.RawPrice
	stock    []internal.RawStock
	products []internal.RawProduct
	skipped  int

	failOn  string
	failErr error
	block   chan struct{}
	fetches int32
}

func (f *fakeUpstream) fail(resource string) error {
	if f.failOn == resource {
		return f.failErr
	}
	return nil
}

func (f *fakeUpstream) FetchSections(ctx context.Context) ([]internal.TaxonomyRecord, int, error) {
	atomic.AddInt32(&f.fetches, 1)
	if f.block != nil {
		<-f.block
	}
	return f.sections, 0, f.fail("sections")
}

func (f *fakeUpstream) FetchGroups(ctx context.Context, sectionIDs []int) ([]internal.GroupRecord, int, error) {
	return f.groups, 0, f.fail("groups")
}

func (f *fakeUpstream) FetchBrands(ctx context.Context) ([]internal.TaxonomyRecord, int, error) {
	return f.brands, 0, f.fail("brands")
}

func (f *fakeUpstream) FetchGenres(ctx context.Context) ([]internal.TaxonomyRecord, int, error) {
	return f.genres, 0, f.fail("genres")
}

func (f *fakeUpstream) FetchPrices(ctx context.Context) ([]internal.RawPrice, int, error) {
	return f.prices, 0, f.fail("prices")
}

func (f *fakeUpstream) FetchStock(ctx context.Context) ([]internal.RawStock, int, error) {
	return f.stock, 0, f.fail("stock")
}

func (f *fakeUpstream) FetchProducts(ctx context.Context) ([]internal.RawProduct, int, error) {
	if err := f.fail("products"); err != nil {
		return nil, 0, err
	}
	return f.products, f.skipped, nil
}

// catalogUpstream returns n products, each priced by product id, in two sections.
func catalogUpstream(n int) *fakeUpstream {
	up := &fakeUpstream{
		sections: []internal.TaxonomyRecord{{ID: 1, Description: "MERCEARIA"}, {ID: 2, Description: "BEBIDAS"}},
		groups:   []internal.GroupRecord{{ID: 1, SectionID: 1, Description: "Graos"}},
		brands:   []internal.TaxonomyRecord{{ID: 1, Description: "Marca A"}},
	}
	for i := 1; i <= n; i++ {
		section := 1 + i%2
		up.products = append(up.products, internal.RawProduct{
			ID:           i,
			Name:         "Produto teste " + strconv.Itoa(i),
			SectionID:    util.IntPtr(section),
			GroupID:      util.IntPtr(1),
			BrandID:      util.IntPtr(1),
			Image:        util.StringPtr("https://images.unsplash.com/photo-" + strconv.Itoa(i)),
			StockTracked: true,
		})
		up.prices = append(up.prices, internal.RawPrice{ID: 1000 + i, ProductID: i, SalePrice1: float64(i) + 0.99})
		up.stock = append(up.stock, internal.RawStock{ProductID: i, Balance: float64(i % 3)})
	}
	return up
}

type harness struct {
	db      *storage.DB
	store   *storage.CatalogStore
	engine  *Engine
	service *Service
}

func newHarness(t *testing.T, up Upstream, tweak ...func(*Options)) *harness {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := storage.NewCatalogStore(filepath.Join(dir, "products.json"), filepath.Join(dir, "products2.json"), zap.NewNop())
	opts := Options{
		Build:          catalog.BuildOptions{DefaultCategory: "GERAL", DefaultBrand: "Sem marca", SourceTag: "erp-sync"},
		Placeholders:   []string{"undefined", "null"},
		ImageDenylist:  []string{"images.unsplash.com", "placeholder"},
		MaxShrinkRatio: 0.5,
		HistoryLimit:   50,
		DriftThreshold: 10,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	engine := NewEngine(up, db, store, opts, zap.NewNop())
	service := NewService(engine, db, store, internal.SyncSettings{AutoSync: true, IntervalMinutes: 60}, zap.NewNop())
	return &harness{db: db, store: store, engine: engine, service: service}
}

func seedCatalog(t *testing.T, store *storage.CatalogStore, n int) {
	t.Helper()
	products := make([]internal.Product, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, internal.Product{ID: strconv.Itoa(i), Name: "seed", Category: "GERAL", Price: 1, Tags: []string{}})
	}
	require.NoError(t, store.Write(products))
}
