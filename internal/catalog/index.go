package catalog

import (
	"catalogsync/internal"
	"catalogsync/internal/util"
)

type IndexOptions struct {
	// Placeholders are key values never indexed, compared case-insensitively.
	Placeholders []string
	// StoreID restricts the index to one store; 0 keeps every record.
	StoreID int
}

// PriceIndex holds the price list keyed three ways. Secondary keys that point
// at more than one product are dropped from their index.
type PriceIndex struct {
	ByProductID    map[int][]internal.RawPrice
	ByExternalID   map[string][]internal.RawPrice
	ByInternalCode map[string][]internal.RawPrice

	AmbiguousExternalIDs   int
	AmbiguousInternalCodes int
	DegenerateKeys         int
}

func BuildPriceIndex(prices []internal.RawPrice, opts IndexOptions) *PriceIndex {
	idx := &PriceIndex{
		ByProductID:    map[int][]internal.RawPrice{},
		ByExternalID:   map[string][]internal.RawPrice{},
		ByInternalCode: map[string][]internal.RawPrice{},
	}

	externalOwners := map[string]map[int]struct{}{}
	codeOwners := map[string]map[int]struct{}{}

	addKey := func(target map[string][]internal.RawPrice, owners map[string]map[int]struct{}, raw *string, p internal.RawPrice) {
		if raw == nil {
			return
		}
		if util.IsDegenerateKey(*raw, opts.Placeholders) {
			idx.DegenerateKeys++
			return
		}
		key := util.NormalizeKey(*raw)
		target[key] = append(target[key], p)
		if _, ok := owners[key]; !ok {
			owners[key] = map[int]struct{}{}
		}
		owners[key][owner(p)] = struct{}{}
	}

	for _, p := range prices {
		if opts.StoreID > 0 && p.StoreID != 0 && p.StoreID != opts.StoreID {
			continue
		}
		if p.ProductID > 0 {
			idx.ByProductID[p.ProductID] = append(idx.ByProductID[p.ProductID], p)
		}
		addKey(idx.ByExternalID, externalOwners, p.ExternalID, p)
		addKey(idx.ByInternalCode, codeOwners, p.InternalCode, p)
	}

	idx.AmbiguousExternalIDs = dropAmbiguous(idx.ByExternalID, externalOwners)
	idx.AmbiguousInternalCodes = dropAmbiguous(idx.ByInternalCode, codeOwners)
	return idx
}

// owner identifies the product a price record belongs to. Records without a
// product reference each count as their own owner.
func owner(p internal.RawPrice) int {
	if p.ProductID > 0 {
		return p.ProductID
	}
	return -p.ID - 1
}

func dropAmbiguous(target map[string][]internal.RawPrice, owners map[string]map[int]struct{}) int {
	dropped := 0
	for key, set := range owners {
		if len(set) > 1 {
			delete(target, key)
			dropped++
		}
	}
	return dropped
}
