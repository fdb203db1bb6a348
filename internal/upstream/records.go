package upstream

import (
	"encoding/json"
	"strconv"
	"strings"

	"catalogsync/internal"
	"catalogsync/internal/util"
)

func toRawProduct(raw map[string]any) (internal.RawProduct, bool) {
	id, ok := toInt(raw["id"])
	if !ok || id <= 0 {
		return internal.RawProduct{}, false
	}
	name, _ := raw["descricao"].(string)
	return internal.RawProduct{
		ID:           id,
		Name:         strings.TrimSpace(name),
		ShortDesc:    toStringPtr(raw["descricaoReduzida"]),
		Unit:         toStringPtr(raw["unidadeDeVenda"]),
		SectionID:    toIntPtr(raw["secaoId"]),
		GroupID:      toIntPtr(raw["grupoId"]),
		BrandID:      toIntPtr(raw["marcaId"]),
		GenreID:      toIntPtr(raw["generoId"]),
		ExternalID:   toRawKey(raw["idExterno"]),
		InternalCode: toRawKey(raw["codigoInterno"]),
		Image:        toStringPtr(raw["imagem"]),
		ActiveOnline: toBool(raw["ativoNoEcommerce"]),
		StockTracked: toBool(raw["controlaEstoque"]),
		Discountable: toBool(raw["permiteDesconto"]),
		CreatedAt:    toStringPtr(raw["dataInclusao"]),
		UpdatedAt:    toStringPtr(raw["dataAlteracao"]),
	}, true
}

func toRawPrice(raw map[string]any) (internal.RawPrice, bool) {
	id, ok := toInt(raw["id"])
	if !ok {
		return internal.RawPrice{}, false
	}
	productID, _ := toInt(raw["produtoId"])
	storeID, _ := toInt(raw["lojaId"])
	minQty2, _ := toInt(raw["quantidadeMinimaPreco2"])
	minQty3, _ := toInt(raw["quantidadeMinimaPreco3"])
	return internal.RawPrice{
		ID:           id,
		ProductID:    productID,
		ExternalID:   toRawKey(raw["idExterno"]),
		InternalCode: toRawKey(raw["codigoInterno"]),
		StoreID:      storeID,
		SalePrice1:   toAmount(raw["precoVenda1"]),
		OfferPrice1:  toAmount(raw["precoOferta1"]),
		SalePrice2:   toAmount(raw["precoVenda2"]),
		OfferPrice2:  toAmount(raw["precoOferta2"]),
		SalePrice3:   toAmount(raw["precoVenda3"]),
		OfferPrice3:  toAmount(raw["precoOferta3"]),
		MinQty2:      minQty2,
		MinQty3:      minQty3,
	}, true
}

func toRawStock(raw map[string]any) (internal.RawStock, bool) {
	productID, ok := toInt(raw["produtoId"])
	if !ok || productID <= 0 {
		return internal.RawStock{}, false
	}
	storeID, _ := toInt(raw["lojaId"])
	return internal.RawStock{
		ProductID: productID,
		StoreID:   storeID,
		Balance:   toAmount(raw["saldo"]),
	}, true
}

func toTaxonomyRecord(raw map[string]any) (internal.TaxonomyRecord, bool) {
	id, ok := toInt(raw["id"])
	if !ok {
		return internal.TaxonomyRecord{}, false
	}
	desc, _ := raw["descricao"].(string)
	return internal.TaxonomyRecord{ID: id, Description: strings.TrimSpace(desc)}, true
}

func toGroupRecord(raw map[string]any, sectionID int) (internal.GroupRecord, bool) {
	id, ok := toInt(raw["id"])
	if !ok {
		return internal.GroupRecord{}, false
	}
	if s, ok := toInt(raw["secaoId"]); ok {
		sectionID = s
	}
	desc, _ := raw["descricao"].(string)
	return internal.GroupRecord{ID: id, SectionID: sectionID, Description: strings.TrimSpace(desc)}, true
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

func toIntPtr(v any) *int {
	if i, ok := toInt(v); ok {
		return util.IntPtr(i)
	}
	return nil
}

func toAmount(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		return util.ParseAmount(t.String())
	case float64:
		return util.RoundMoney(t)
	case int:
		return float64(t)
	case string:
		return util.ParseAmount(t)
	default:
		return 0
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "s" || s == "sim" || s == "1"
	case json.Number:
		return t.String() != "0"
	default:
		return false
	}
}

func toStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}

// toRawKey keeps match keys untrimmed; blank and placeholder handling belongs
// to the price index.
func toRawKey(v any) *string {
	switch t := v.(type) {
	case string:
		return util.StringPtr(t)
	case json.Number:
		return util.StringPtr(t.String())
	default:
		return nil
	}
}
