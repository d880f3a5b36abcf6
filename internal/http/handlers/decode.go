package handlers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"sawtooth/internal/domain"
	"sawtooth/internal/services"
)

// fields holds a JSON object with presence preserved, so "inventory": 0 and
// a missing inventory stay distinguishable. null counts as absent.
type fields map[string]json.RawMessage

func decodeFields(body []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(body, &f); err != nil || f == nil {
		return nil, domain.Invalid("", "Invalid JSON body")
	}
	if nested, ok := f["updates"]; ok && isObject(nested) {
		var inner fields
		if err := json.Unmarshal(nested, &inner); err == nil {
			return inner, nil
		}
	}
	return f, nil
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

func (f fields) raw(name string) (json.RawMessage, bool) {
	v, ok := f[name]
	if !ok || string(bytes.TrimSpace(v)) == "null" {
		return nil, false
	}
	return v, true
}

func (f fields) str(name string) (*string, error) {
	v, ok := f.raw(name)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, domain.Invalid(name, "invalid "+name)
	}
	return &s, nil
}

func (f fields) list(name string) (*[]string, error) {
	v, ok := f.raw(name)
	if !ok {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, domain.Invalid(name, "invalid "+name)
	}
	clean := make([]string, 0, len(out))
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	return &clean, nil
}

// number parses a JSON number or numeric string exactly.
func (f fields) number(name string) (*decimal.Decimal, error) {
	v, ok := f.raw(name)
	if !ok {
		return nil, nil
	}
	s := strings.Trim(string(bytes.TrimSpace(v)), `"`)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, domain.Invalid(name, "invalid "+name)
	}
	return &d, nil
}

// whole reads a non-negative integer field. err names errField.
// maxWhole bounds integer fields to what a JSON number carries exactly.
var maxWhole = decimal.NewFromInt(1 << 53)

func (f fields) whole(name, errField string) (*int64, error) {
	d, err := f.number(name)
	if err != nil || d == nil {
		if err != nil {
			return nil, domain.Invalid(errField, "invalid "+errField)
		}
		return nil, nil
	}
	if !d.IsInteger() || d.IsNegative() || !d.LessThan(maxWhole) {
		return nil, domain.Invalid(errField, "invalid "+errField)
	}
	n := d.IntPart()
	return &n, nil
}

// priceCents prefers price_cents and falls back to a decimal dollar price.
func (f fields) priceCents() (*int64, error) {
	if _, ok := f.raw("price_cents"); ok {
		return f.whole("price_cents", "price")
	}
	d, err := f.number("price")
	if err != nil || d == nil {
		if err != nil {
			return nil, domain.Invalid("price", "invalid price")
		}
		return nil, nil
	}
	cents := d.Mul(decimal.NewFromInt(100)).Round(0)
	if cents.IsNegative() || !cents.LessThan(maxWhole) {
		return nil, domain.Invalid("price", "invalid price")
	}
	n := cents.IntPart()
	return &n, nil
}

// productUpdate maps a request body onto a partial update. Unknown keys are
// ignored.
func productUpdate(f fields) (services.ProductUpdate, error) {
	var u services.ProductUpdate
	var err error
	if u.Title, err = f.str("title"); err != nil {
		return u, err
	}
	if u.Description, err = f.str("description"); err != nil {
		return u, err
	}
	if u.Currency, err = f.str("currency"); err != nil {
		return u, err
	}
	if u.Status, err = f.str("status"); err != nil {
		return u, err
	}
	if u.Category, err = f.str("category"); err != nil {
		return u, err
	}
	if u.ClothingSubcategory, err = f.str("clothing_subcategory"); err != nil {
		return u, err
	}
	if u.SourceNotes, err = f.str("source_notes"); err != nil {
		return u, err
	}
	if u.Photos, err = f.list("photos"); err != nil {
		return u, err
	}
	if u.Tags, err = f.list("tags"); err != nil {
		return u, err
	}
	if u.SearchKeywords, err = f.list("search_keywords"); err != nil {
		return u, err
	}
	if u.PriceCents, err = f.priceCents(); err != nil {
		return u, err
	}
	if u.BuyPriceMaxCents, err = f.whole("buy_price_max_cents", "buy_price_max_cents"); err != nil {
		return u, err
	}
	inv, err := f.whole("inventory", "inventory")
	if err != nil {
		return u, err
	}
	if inv != nil {
		if *inv > 1_000_000 {
			return u, domain.Invalid("inventory", "invalid inventory")
		}
		n := int(*inv)
		u.Inventory = &n
	}
	return u, nil
}

func newProduct(f fields) (services.NewProduct, error) {
	u, err := productUpdate(f)
	if err != nil {
		return services.NewProduct{}, err
	}
	id, err := f.str("id")
	if err != nil {
		return services.NewProduct{}, err
	}
	in := services.NewProduct{}
	deref(&in.ID, id)
	deref(&in.Title, u.Title)
	deref(&in.Description, u.Description)
	deref(&in.Currency, u.Currency)
	deref(&in.Status, u.Status)
	deref(&in.Category, u.Category)
	deref(&in.ClothingSubcategory, u.ClothingSubcategory)
	deref(&in.SourceNotes, u.SourceNotes)
	deref(&in.PriceCents, u.PriceCents)
	deref(&in.BuyPriceMaxCents, u.BuyPriceMaxCents)
	deref(&in.Inventory, u.Inventory)
	deref(&in.Tags, u.Tags)
	deref(&in.SearchKeywords, u.SearchKeywords)
	return in, nil
}

func deref[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
