package catalog

import (
	"catalogsync/internal"
	"catalogsync/internal/util"
)

type Match struct {
	Price  *internal.RawPrice
	Source internal.PriceSource
}

func (m Match) Resolved() bool {
	return m.Price != nil
}

// Amount is the effective price of the match, 0 when unresolved.
func (m Match) Amount() float64 {
	if m.Price == nil {
		return 0
	}
	return EffectivePrice(*m.Price)
}

type Matcher struct {
	index        *PriceIndex
	placeholders []string
}

func NewMatcher(index *PriceIndex, placeholders []string) *Matcher {
	return &Matcher{index: index, placeholders: placeholders}
}

// Resolve walks the chain product id, external id, internal code and stops at
// the first step holding a record with a positive price.
func (m *Matcher) Resolve(p internal.RawProduct) Match {
	if rec := firstPriced(m.index.ByProductID[p.ID]); rec != nil {
		return Match{Price: rec, Source: internal.PriceSourceProductID}
	}
	if key, ok := m.key(p.ExternalID); ok {
		if rec := firstPriced(m.index.ByExternalID[key]); rec != nil {
			return Match{Price: rec, Source: internal.PriceSourceExternalID}
		}
	}
	if key, ok := m.key(p.InternalCode); ok {
		if rec := firstPriced(m.index.ByInternalCode[key]); rec != nil {
			return Match{Price: rec, Source: internal.PriceSourceInternalCode}
		}
	}
	return Match{}
}

func (m *Matcher) key(raw *string) (string, bool) {
	if raw == nil || util.IsDegenerateKey(*raw, m.placeholders) {
		return "", false
	}
	return util.NormalizeKey(*raw), true
}

func firstPriced(records []internal.RawPrice) *internal.RawPrice {
	for i := range records {
		if EffectivePrice(records[i]) > 0 {
			rec := records[i]
			return &rec
		}
	}
	return nil
}

// EffectivePrice is the first sale price, falling back to the first offer price.
func EffectivePrice(p internal.RawPrice) float64 {
	if p.SalePrice1 > 0 {
		return p.SalePrice1
	}
	if p.OfferPrice1 > 0 {
		return p.OfferPrice1
	}
	return 0
}
