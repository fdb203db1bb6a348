package catalog

import (
	"fmt"

	"catalogsync/internal"
)

// Validate checks the list invariants a committed catalog must hold.
func Validate(products []internal.Product) error {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if p.ID == "" {
			return fmt.Errorf("product at position %d has an empty id", i)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate product id %s", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Price < 0 {
			return fmt.Errorf("product %s has negative price %v", p.ID, p.Price)
		}
		if p.Category == "" {
			return fmt.Errorf("product %s has an empty category", p.ID)
		}
	}
	return nil
}
