package util

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads an ERP monetary value. Comma decimals are accepted.
// Unparseable input yields zero.
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(strings.ReplaceAll(raw, " ", ""))
	if s == "" {
		return 0
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Round(2).Float64()
	return f
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// DiscountPercent returns round((full-offer)/full*100), or 0 when there is no
// real discount.
func DiscountPercent(full, offer float64) int {
	if full <= 0 || offer <= 0 || offer >= full {
		return 0
	}
	f := decimal.NewFromFloat(full)
	o := decimal.NewFromFloat(offer)
	pct := f.Sub(o).Div(f).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

// ClampStock turns a raw balance into a sellable quantity.
func ClampStock(balance float64) float64 {
	if balance < 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(balance).Round(3).Float64()
	return f
}
