package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalogsync/internal"
)

const (
	catalogSheet    = "catalog"
	unresolvedSheet = "price_unresolved"
)

var catalogHeaders = []string{
	"id", "name", "category", "group", "brand", "genre", "unit",
	"price", "original_price", "offer_price1", "discount_percent", "price_source", "price_unresolved",
	"stock", "in_stock", "image", "tags", "erp_external_id", "erp_internal_code",
}

// CatalogToXLSX writes the catalog to one sheet and the unpriced products to a
// second sheet for operator review.
func CatalogToXLSX(products []internal.Product, outputPath string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), catalogSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(unresolvedSheet); err != nil {
		return err
	}

	writeHeaders(f, catalogSheet)
	writeHeaders(f, unresolvedSheet)

	row, unresolvedRow := 2, 2
	for _, p := range products {
		writeRow(f, catalogSheet, row, p)
		row++
		if p.PriceUnresolved {
			writeRow(f, unresolvedSheet, unresolvedRow, p)
			unresolvedRow++
		}
	}

	if err := f.SetPanes(catalogSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeHeaders(f *excelize.File, sheet string) {
	for i, h := range catalogHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, r int, p internal.Product) {
	set := func(col int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, r)
		_ = f.SetCellValue(sheet, cell, value)
	}

	set(1, p.ID)
	set(2, p.Name)
	set(3, p.Category)
	set(4, p.Group)
	set(5, p.Brand)
	set(6, p.Genre)
	set(7, p.Unit)
	set(8, p.Price)
	set(9, p.OriginalPrice)
	set(10, p.Prices.OfferPrice1)
	set(11, p.DiscountPercent)
	set(12, string(p.PriceSource))
	set(13, p.PriceUnresolved)
	set(14, p.Stock)
	set(15, p.InStock)
	set(16, p.Image)
	set(17, strings.Join(p.Tags, ", "))
	set(18, p.ERP.ExternalID)
	set(19, p.ERP.InternalCode)
}
