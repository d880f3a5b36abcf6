package payments

import "time"

// Metadata keys written on a checkout session once it has been shipped.
const (
	MetaFulfillment = "fulfillment_status"
	MetaTracking    = "tracking"
	MetaShippedAt   = "shipped_at"

	FulfillmentShipped = "shipped"
)

// Recipient is where a paid order ships. Shipping details win over the
// billing customer details field by field.
type Recipient struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Email   string `json:"email"`
}

// Complete reports whether the address is enough to print a label.
func (r Recipient) Complete() bool {
	return r.Name != "" && r.Line1 != "" && r.City != "" && r.State != "" && r.Zip != ""
}

type OrderItem struct {
	Name        string `json:"name"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	Currency    string `json:"currency"`
	AmountTotal int64  `json:"amount_total"`
}

// Order is a completed, paid checkout session as the fulfilment queue sees it.
type Order struct {
	SessionID         string      `json:"id"`
	Created           time.Time   `json:"created"`
	CustomerEmail     string      `json:"customer_email"`
	Recipient         Recipient   `json:"recipient"`
	HasFullAddress    bool        `json:"has_full_address"`
	Items             []OrderItem `json:"items"`
	FulfillmentStatus string      `json:"fulfillment_status"`
	Tracking          string      `json:"tracking,omitempty"`
	ShippedAt         string      `json:"shipped_at,omitempty"`
}

// Shipped reports whether the order was already marked shipped.
func (o Order) Shipped() bool { return o.FulfillmentStatus == FulfillmentShipped }

func orderFromMetadata(o *Order, md map[string]string) {
	o.FulfillmentStatus = md[MetaFulfillment]
	o.Tracking = md[MetaTracking]
	o.ShippedAt = md[MetaShippedAt]
}
