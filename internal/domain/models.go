package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

const (
	CategoryShoes     = "shoes"
	CategoryClothes   = "clothes"
	CategoryFurniture = "furniture"
)

var (
	Statuses              = []string{StatusDraft, StatusActive, StatusArchived}
	Categories            = []string{CategoryShoes, CategoryClothes, CategoryFurniture}
	ClothingSubcategories = []string{"mens", "womens"}
)

// SoldOutRetention is how long a product may sit at zero inventory before the
// sweep archives it.
const SoldOutRetention = 7 * 24 * time.Hour

// Product is one sellable listing. Prices are integer minor units.
type Product struct {
	ID                  string           `db:"id" json:"id"`
	Status              string           `db:"status" json:"status"`
	Title               string           `db:"title" json:"title"`
	Description         string           `db:"description" json:"description"`
	PriceCents          int64            `db:"price_cents" json:"price_cents"`
	Currency            string           `db:"currency" json:"currency"`
	Category            string           `db:"category" json:"category"`
	ClothingSubcategory string           `db:"clothing_subcategory" json:"clothing_subcategory"`
	Inventory           int              `db:"inventory" json:"inventory"`
	Photos              JSONList[string] `db:"photos" json:"photos"`
	Tags                JSONList[string] `db:"tags" json:"tags"`
	SearchKeywords      JSONList[string] `db:"search_keywords" json:"search_keywords"`
	SourceNotes         string           `db:"source_notes" json:"source_notes"`
	BuyPriceMaxCents    int64            `db:"buy_price_max_cents" json:"buy_price_max_cents"`
	SoldOutSince        *time.Time       `db:"sold_out_since" json:"sold_out_since"`
	ArchivedAt          *time.Time       `db:"archived_at" json:"archived_at"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// Price returns the price in major units, e.g. 12.5 for 1250 cents.
func (p Product) Price() float64 { return float64(p.PriceCents) / 100 }

// Buyable reports whether checkout may include this product at all.
func (p Product) Buyable() bool { return p.Status == StatusActive && p.Inventory > 0 }

// LineItem is one cart entry as carried through checkout metadata.
type LineItem struct {
	ProductID string `json:"productId" validate:"required,max=128"`
	Qty       int    `json:"qty" validate:"min=1"`
}

// PricedLine is a validated line item with the data a payment session needs.
type PricedLine struct {
	ProductID      string `json:"productId"`
	Title          string `json:"title"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Currency       string `json:"currency"`
}

// SettlementResult describes what one payment session did to the ledger.
type SettlementResult struct {
	SessionID string         `json:"session_id"`
	Applied   bool           `json:"applied"`
	Adjusted  map[string]int `json:"adjusted,omitempty"`
	Missing   []string       `json:"missing,omitempty"`
}

type SweepResult struct {
	Archived      int      `json:"archived"`
	ImagesDeleted int      `json:"images_deleted"`
	ImageFailures int      `json:"image_failures"`
	ProductIDs    []string `json:"product_ids,omitempty"`
}

type BuyLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type PickupSpot struct {
	Place string `json:"place"`
	URL   string `json:"url"`
}

// Opportunity is a sourcing suggestion waiting for an admin decision.
type Opportunity struct {
	ID                  string               `db:"opp_id" json:"opp_id"`
	Category            string               `db:"category" json:"category"`
	Title               string               `db:"title" json:"title"`
	MaxBuyPriceCents    int64                `db:"max_buy_price_cents" json:"max_buy_price_cents"`
	SuggestedPriceCents int64                `db:"suggested_price_cents" json:"suggested_price_cents"`
	ExpectedMarginPct   int                  `db:"expected_margin_pct" json:"expected_margin_pct"`
	SearchKeywords      JSONList[string]     `db:"search_keywords" json:"search_keywords"`
	BuyLinks            JSONList[BuyLink]    `db:"buy_links" json:"buy_links"`
	LocalPickup         JSONList[PickupSpot] `db:"local_pickup" json:"local_pickup"`
	ConditionChecklist  JSONList[string]     `db:"condition_checklist" json:"condition_checklist"`
	Notes               string               `db:"notes" json:"notes"`
	CreatedAt           time.Time            `db:"created_at" json:"created_at"`
}

// JSONList stores a slice as a JSON array in a TEXT column.
type JSONList[T any] []T

func (l JSONList[T]) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]T(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *JSONList[T]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = JSONList[T]{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("json list: unsupported source %T", src)
	}
	if len(raw) == 0 {
		*l = JSONList[T]{}
		return nil
	}
	out := JSONList[T]{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("json list: %w", err)
	}
	*l = out
	return nil
}

// MarshalJSON keeps empty lists as [] instead of null.
func (l JSONList[T]) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(l))
}
