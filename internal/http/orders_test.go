package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"sawtooth/internal/payments"
)

// orderDesk serves a fixed set of paid sessions and records shipment
// metadata; everything else falls through to the real client.
type orderDesk struct {
	*payments.Stripe
	orders []payments.Order
	paid   map[string]bool
	marked map[string]map[string]string
}

func newOrderDesk() *orderDesk {
	created := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	return &orderDesk{
		Stripe: payments.NewStripe("sk_test_x", webhookSecret),
		orders: []payments.Order{
			{
				SessionID: "cs_ready", Created: created, CustomerEmail: "ana@example.com",
				Recipient:      payments.Recipient{Name: "Ana", Line1: "1 Main St", City: "Austin", State: "TX", Zip: "78701", Country: "US"},
				HasFullAddress: true,
				Items:          []payments.OrderItem{{Name: "Levi's 501", Quantity: 1, UnitAmount: 5200, Currency: "usd", AmountTotal: 5200}},
			},
			{SessionID: "cs_sent", Created: created.Add(time.Hour), FulfillmentStatus: payments.FulfillmentShipped},
		},
		paid:   map[string]bool{"cs_ready": true},
		marked: map[string]map[string]string{},
	}
}

func (d *orderDesk) ListPaidSessions(context.Context, int) ([]payments.Order, error) {
	return d.orders, nil
}

func (d *orderDesk) GetSession(_ context.Context, id string) (payments.Session, error) {
	return payments.Session{ID: id, Paid: d.paid[id]}, nil
}

func (d *orderDesk) UpdateMetadata(_ context.Context, id string, md map[string]string) error {
	d.marked[id] = md
	return nil
}

func TestAwaitingOrders(t *testing.T) {
	env := newEnv(t, withProvider(newOrderDesk()))

	resp, body := env.do(t, jsonReq("GET", "/api/admin/orders/awaiting?limit=10", "", env.bearer(t)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	orders, _ := body["orders"].([]any)
	if len(orders) != 1 {
		t.Fatalf("expected only the unshipped order, got %v", body)
	}
	o := orders[0].(map[string]any)
	if o["id"] != "cs_ready" || o["has_full_address"] != true || o["customer_email"] != "ana@example.com" {
		t.Fatalf("unexpected order %v", o)
	}
	rcpt := o["recipient"].(map[string]any)
	if rcpt["zip"] != "78701" {
		t.Fatalf("unexpected recipient %v", rcpt)
	}
}

func TestMarkOrderShipped(t *testing.T) {
	desk := newOrderDesk()
	env := newEnv(t, withProvider(desk))
	auth := env.bearer(t)

	var resp *http.Response
	var body map[string]any
	logs := captureLogs(t, func() {
		resp, body = env.do(t, jsonReq("POST", "/api/admin/orders/cs_ready/shipped", `{"tracking":"1Z999"}`, auth))
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	md := desk.marked["cs_ready"]
	if md["fulfillment_status"] != "shipped" || md["tracking"] != "1Z999" || md["shipped_at"] == "" {
		t.Fatalf("metadata = %v", md)
	}
	if e, ok := findLog(logs, "orders.shipped"); !ok || e.Kind != "audit" || e.Admin != "admin" {
		t.Fatalf("missing audit log; logs=%v", logs)
	}

	resp, body = env.do(t, jsonReq("POST", "/api/admin/orders/cs_unpaid/shipped", `{}`, auth))
	if resp.StatusCode != http.StatusConflict || body["error"] != "Order is not paid" {
		t.Fatalf("unpaid: status=%d body=%v", resp.StatusCode, body)
	}
	if _, marked := desk.marked["cs_unpaid"]; marked {
		t.Fatalf("unpaid order was marked shipped")
	}

	resp, body = env.do(t, jsonReq("POST", "/api/admin/orders/cs_ready/shipped", `{"tracking":"a\nb"}`, auth))
	if resp.StatusCode != http.StatusBadRequest || body["field"] != "tracking" {
		t.Fatalf("bad tracking: status=%d body=%v", resp.StatusCode, body)
	}
}

func TestOrdersWithoutPaymentProvider(t *testing.T) {
	env := newEnv(t, withProvider(nil))
	resp, _ := env.do(t, jsonReq("GET", "/api/admin/orders/awaiting", "", env.bearer(t)))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}
