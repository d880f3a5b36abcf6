package sourcing

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sawtooth/internal/domain"
)

const (
	defaultMaxBuyCents = 1800
	minMarginPct       = 40
	pickupArea         = "Twin Falls Idaho"
)

// Raw is one suggestion as a generator returns it. Prices may arrive in
// dollars or cents; every field is optional.
type Raw struct {
	Category            string   `json:"category"`
	Title               string   `json:"title"`
	Brand               string   `json:"brand"`
	ItemType            string   `json:"item_type"`
	MaxBuyPrice         *float64 `json:"max_buy_price"`
	MaxBuyPriceCents    *float64 `json:"max_buy_price_cents"`
	SuggestedPrice      *float64 `json:"suggested_price"`
	SuggestedPriceCents *float64 `json:"suggested_price_cents"`
	SearchKeywords      []string `json:"search_keywords"`
	ConditionChecklist  []string `json:"condition_checklist"`
	Checklist           []string `json:"checklist"`
	Notes               string   `json:"notes"`
	SourceNotes         string   `json:"source_notes"`
}

func toCents(dollars, cents *float64, fallback int64) int64 {
	var d decimal.Decimal
	switch {
	case dollars != nil:
		d = decimal.NewFromFloat(*dollars)
	case cents != nil:
		d = decimal.NewFromFloat(*cents).Div(decimal.NewFromInt(100))
	default:
		return fallback
	}
	if d.IsNegative() {
		return fallback
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func cleanList(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

// Normalize turns a raw suggestion into a queueable opportunity, enforcing a
// suggested price of at least 1.6x the buy ceiling and a margin of at least 40%.
func Normalize(raw Raw, now time.Time) domain.Opportunity {
	maxBuy := toCents(raw.MaxBuyPrice, raw.MaxBuyPriceCents, defaultMaxBuyCents)
	minSuggested := (maxBuy*16 + 9) / 10
	suggested := toCents(raw.SuggestedPrice, raw.SuggestedPriceCents, minSuggested)
	if suggested < minSuggested {
		suggested = minSuggested
	}
	denom := suggested
	if denom < 1 {
		denom = 1
	}
	margin := int(decimal.NewFromInt(suggested - maxBuy).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(denom)).Round(0).IntPart())
	if margin < minMarginPct {
		margin = minMarginPct
	}

	category := domain.CategoryClothes
	if strings.Contains(strings.ToLower(raw.Category), "shoe") {
		category = domain.CategoryShoes
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		itemType := raw.ItemType
		if itemType == "" {
			itemType = "item"
		}
		title = strings.TrimSpace(raw.Brand + " " + itemType)
	}
	if title == "" {
		title = "Resale opportunity"
	}

	checklist := raw.ConditionChecklist
	if len(checklist) == 0 {
		checklist = raw.Checklist
	}
	notes := strings.TrimSpace(raw.Notes)
	if notes == "" {
		notes = strings.TrimSpace(raw.SourceNotes)
	}
	keywords := cleanList(raw.SearchKeywords, 8)
	query := searchQuery(title, keywords)

	return domain.Opportunity{
		ID:                  "opp_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Category:            category,
		Title:               title,
		MaxBuyPriceCents:    maxBuy,
		SuggestedPriceCents: suggested,
		ExpectedMarginPct:   margin,
		SearchKeywords:      keywords,
		BuyLinks:            buyLinks(query),
		LocalPickup:         localPickup(query),
		ConditionChecklist:  cleanList(checklist, 8),
		Notes:               notes,
		CreatedAt:           now,
	}
}

func searchQuery(title string, keywords []string) string {
	parts := cleanList(append([]string{title}, keywords...), 6)
	if len(parts) == 0 {
		return "thrift finds"
	}
	return strings.Join(parts, " ")
}

func buyLinks(q string) []domain.BuyLink {
	enc := url.QueryEscape(q)
	return []domain.BuyLink{
		{Label: "eBay", URL: "https://www.ebay.com/sch/i.html?_nkw=" + enc},
		{Label: "Poshmark", URL: "https://poshmark.com/search?query=" + enc},
		{Label: "Depop", URL: "https://www.depop.com/search/?q=" + enc},
		{Label: "Google Shopping", URL: "https://www.google.com/search?tbm=shop&q=" + enc},
		{Label: "Facebook Marketplace", URL: "https://www.facebook.com/marketplace/search/?query=" + enc},
	}
}

func localPickup(q string) []domain.PickupSpot {
	enc := url.QueryEscape(q + " " + pickupArea)
	return []domain.PickupSpot{
		{Place: "Facebook Marketplace (Twin Falls)", URL: "https://www.facebook.com/marketplace/twin-falls/search/?query=" + enc},
		{Place: "OfferUp (Twin Falls)", URL: "https://offerup.com/search/?q=" + enc},
		{Place: "Google Maps: thrift stores Twin Falls", URL: "https://www.google.com/maps/search/thrift+stores+in+Twin+Falls+Idaho"},
		{Place: "Google Maps: consignment Twin Falls", URL: "https://www.google.com/maps/search/consignment+stores+in+Twin+Falls+Idaho"},
	}
}

func f(v float64) *float64 { return &v }

var seeds = []Raw{
	{Category: "shoes", Title: "Nike Air Max 90 (used)", MaxBuyPrice: f(32), SuggestedPrice: f(89), SearchKeywords: []string{"nike air max 90", "sneakers men 10"}, ConditionChecklist: []string{"check heel wear", "clean midsoles"}, Notes: "High demand sneaker in Twin Falls listings."},
	{Category: "clothes", Title: "Levi's 501 jeans vintage wash", MaxBuyPrice: f(18), SuggestedPrice: f(52), SearchKeywords: []string{"levis 501", "vintage denim"}, ConditionChecklist: []string{"measure inseam", "check zipper/button"}, Notes: "Evergreen denim sell-through."},
	{Category: "shoes", Title: "Dr Martens 1460 boots", MaxBuyPrice: f(45), SuggestedPrice: f(115), SearchKeywords: []string{"doc martens 1460", "combat boots"}, ConditionChecklist: []string{"inspect sole split", "condition leather"}, Notes: "Strong margin with authentic pairs."},
	{Category: "clothes", Title: "Patagonia fleece quarter zip", MaxBuyPrice: f(22), SuggestedPrice: f(68), SearchKeywords: []string{"patagonia fleece", "quarter zip"}, ConditionChecklist: []string{"check pilling", "test zipper"}, Notes: "Outdoor brand sells quickly."},
}

// Fallback cycles through a fixed seed list.
func Fallback(count int) []Raw {
	out := make([]Raw, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, seeds[i%len(seeds)])
	}
	return out
}
