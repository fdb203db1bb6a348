package catalog

import (
	"sort"
	"strconv"

	"catalogsync/internal"
	"catalogsync/internal/util"
)

// SuspiciousStock is the balance above which a stock figure is reported as
// likely bogus. The value is still used.
const SuspiciousStock = 50000

type BuildOptions struct {
	DefaultCategory string
	DefaultBrand    string
	DefaultUnit     string
	SourceTag       string
	StoreID         int
}

type BuildStats struct {
	Products        int
	DuplicateIDs    int
	PriceUnresolved int
	BySource        map[internal.PriceSource]int
	SuspiciousStock int
	NegativeStock   int
}

// Builder turns raw ERP records into canonical products.
type Builder struct {
	opts     BuildOptions
	taxonomy *Taxonomy
	matcher  *Matcher
	stock    map[int]float64
	stockRaw map[int]bool
}

func NewBuilder(opts BuildOptions, taxonomy *Taxonomy, matcher *Matcher, stock []internal.RawStock) *Builder {
	if opts.DefaultUnit == "" {
		opts.DefaultUnit = "UN"
	}
	b := &Builder{
		opts:     opts,
		taxonomy: taxonomy,
		matcher:  matcher,
		stock:    map[int]float64{},
		stockRaw: map[int]bool{},
	}
	for _, s := range stock {
		if opts.StoreID > 0 && s.StoreID != 0 && s.StoreID != opts.StoreID {
			continue
		}
		b.stock[s.ProductID] += s.Balance
		b.stockRaw[s.ProductID] = true
	}
	return b
}

// Build dedupes products by id (first record wins) and returns them sorted by id.
func (b *Builder) Build(raw []internal.RawProduct) ([]internal.Product, BuildStats) {
	stats := BuildStats{BySource: map[internal.PriceSource]int{}}

	seen := map[int]struct{}{}
	unique := make([]internal.RawProduct, 0, len(raw))
	for _, p := range raw {
		if _, ok := seen[p.ID]; ok {
			stats.DuplicateIDs++
			continue
		}
		seen[p.ID] = struct{}{}
		unique = append(unique, p)
	}
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].ID < unique[j].ID })

	out := make([]internal.Product, 0, len(unique))
	for _, p := range unique {
		product := b.build(p, &stats)
		out = append(out, product)
	}
	stats.Products = len(out)
	return out, stats
}

func (b *Builder) build(p internal.RawProduct, stats *BuildStats) internal.Product {
	match := b.matcher.Resolve(p)
	stats.BySource[match.Source]++

	category := b.taxonomy.Section(p.SectionID)
	if category == "" {
		category = b.opts.DefaultCategory
	}
	brand := b.taxonomy.Brand(p.BrandID)
	if brand == "" {
		brand = b.opts.DefaultBrand
	}
	group := b.taxonomy.Group(p.SectionID, p.GroupID)
	genre := b.taxonomy.Genre(p.GenreID)

	description := util.HTMLToText(util.Deref(p.ShortDesc))
	name := p.Name
	if name == "" {
		name = description
	}
	if name == "" {
		name = "Produto " + strconv.Itoa(p.ID)
	}
	if description == "" {
		description = name
	}

	unit := util.Deref(p.Unit)
	if unit == "" {
		unit = b.opts.DefaultUnit
	}

	out := internal.Product{
		ID:          strconv.Itoa(p.ID),
		Name:        name,
		Description: description,
		Category:    category,
		Brand:       brand,
		Genre:       genre,
		Group:       group,
		Unit:        unit,
		Image:       util.Deref(p.Image),
		Tags:        tags(category, group, brand, genre, b.opts.SourceTag),
		Source:      b.opts.SourceTag,
		ERP: internal.ERPRef{
			ExternalID:   util.NormalizeKey(util.Deref(p.ExternalID)),
			InternalCode: util.NormalizeKey(util.Deref(p.InternalCode)),
			SectionID:    p.SectionID,
			GroupID:      p.GroupID,
			BrandID:      p.BrandID,
			GenreID:      p.GenreID,
			ActiveOnline: p.ActiveOnline,
			StockTracked: p.StockTracked,
			Discountable: p.Discountable,
			CreatedAt:    util.Deref(p.CreatedAt),
			UpdatedAt:    util.Deref(p.UpdatedAt),
		},
	}
	applyPrice(&out, match)
	if !match.Resolved() {
		stats.PriceUnresolved++
	}

	balance := b.stock[p.ID]
	if balance < 0 {
		stats.NegativeStock++
	}
	if balance > SuspiciousStock {
		stats.SuspiciousStock++
	}
	out.Stock = util.ClampStock(balance)
	out.InStock = out.Stock > 0 || (!p.StockTracked && !b.stockRaw[p.ID])
	return out
}

func applyPrice(out *internal.Product, match Match) {
	if !match.Resolved() {
		out.PriceUnresolved = true
		out.PriceSource = internal.PriceSourceNone
		return
	}
	rec := match.Price
	out.Price = util.RoundMoney(match.Amount())
	out.OriginalPrice = out.Price
	if rec.SalePrice1 > 0 {
		out.OriginalPrice = util.RoundMoney(rec.SalePrice1)
	}
	out.PriceSource = match.Source
	out.Prices = internal.PriceTiers{
		Price1:      rec.SalePrice1,
		OfferPrice1: rec.OfferPrice1,
		Price2:      rec.SalePrice2,
		OfferPrice2: rec.OfferPrice2,
		Price3:      rec.SalePrice3,
		OfferPrice3: rec.OfferPrice3,
		MinQty2:     rec.MinQty2,
		MinQty3:     rec.MinQty3,
	}
	out.HasOffers = rec.OfferPrice1 > 0 || rec.OfferPrice2 > 0 || rec.OfferPrice3 > 0
	out.IsOnSale = rec.OfferPrice1 > 0
	out.DiscountPercent = util.DiscountPercent(rec.SalePrice1, rec.OfferPrice1)
}

// tags lowercases the non-empty names in a fixed order and drops repeats.
func tags(names ...string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, n := range names {
		t := util.Tag(n)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SortByID orders products by id, numerically when both ids are numbers.
func SortByID(products []internal.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return lessID(products[i].ID, products[j].ID)
	})
}

func lessID(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return ai < bi
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}
