package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

const sessionList = `{
  "object": "list",
  "url": "/v1/checkout/sessions",
  "has_more": false,
  "data": [
    {
      "id": "cs_paid",
      "object": "checkout.session",
      "created": 1762171200,
      "status": "complete",
      "payment_status": "paid",
      "metadata": {"cart": "[]"},
      "customer_details": {"email": "ana@example.com", "name": "Ana Buyer",
        "address": {"line1": "9 Billing Rd", "city": "Reno", "state": "NV", "postal_code": "89501", "country": "US"}},
      "shipping_details": {"name": "Ana Shipping",
        "address": {"line1": "1 Main St", "line2": "Apt 2", "city": "Austin", "state": "TX", "postal_code": "78701", "country": "US"}},
      "line_items": {"object": "list", "data": [
        {"id": "li_1", "object": "item", "description": "Levi's 501", "quantity": 2, "amount_total": 10400, "amount_subtotal": 10400, "currency": "usd"}
      ]}
    },
    {
      "id": "cs_shipped",
      "object": "checkout.session",
      "created": 1762084800,
      "status": "complete",
      "payment_status": "paid",
      "metadata": {"fulfillment_status": "shipped", "tracking": "1Z999"},
      "customer_details": {"email": "bo@example.com", "name": "Bo"}
    },
    {
      "id": "cs_open",
      "object": "checkout.session",
      "created": 1762000000,
      "status": "open",
      "payment_status": "unpaid"
    }
  ]
}`

func fakeStripe(t *testing.T, h http.HandlerFunc) *Stripe {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	api := &client.API{}
	api.Init("sk_test_x", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return newStripe(api, testSecret)
}

func TestListPaidSessions(t *testing.T) {
	var query url.Values
	s := fakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sessionList))
	})

	orders, err := s.ListPaidSessions(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "10", query.Get("limit"))
	require.Len(t, orders, 2)

	o := orders[0]
	assert.Equal(t, "cs_paid", o.SessionID)
	assert.Equal(t, int64(1762171200), o.Created.Unix())
	assert.Equal(t, "ana@example.com", o.CustomerEmail)
	assert.Equal(t, Recipient{
		Name: "Ana Shipping", Line1: "1 Main St", Line2: "Apt 2", City: "Austin",
		State: "TX", Zip: "78701", Country: "US", Email: "ana@example.com",
	}, o.Recipient)
	assert.True(t, o.HasFullAddress)
	assert.Equal(t, []OrderItem{{Name: "Levi's 501", Quantity: 2, UnitAmount: 5200, Currency: "usd", AmountTotal: 10400}}, o.Items)
	assert.False(t, o.Shipped())

	assert.True(t, orders[1].Shipped())
	assert.Equal(t, "1Z999", orders[1].Tracking)
	assert.False(t, orders[1].HasFullAddress)
	assert.Empty(t, orders[1].Items)
}

func TestUpdateMetadata(t *testing.T) {
	var path string
	var form url.Values
	s := fakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_paid","object":"checkout.session"}`))
	})

	err := s.UpdateMetadata(context.Background(), "cs_paid", map[string]string{
		MetaFulfillment: FulfillmentShipped,
		MetaTracking:    "1Z123",
	})
	require.NoError(t, err)
	assert.Equal(t, "POST /v1/checkout/sessions/cs_paid", path)
	assert.Equal(t, "shipped", form.Get("metadata[fulfillment_status]"))
	assert.Equal(t, "1Z123", form.Get("metadata[tracking]"))
}

func TestUpdateMetadataSurfacesProviderError(t *testing.T) {
	s := fakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session: cs_nope"}}`))
	})

	err := s.UpdateMetadata(context.Background(), "cs_nope", map[string]string{MetaFulfillment: FulfillmentShipped})
	require.Error(t, err)
	var se *stripe.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.HTTPStatusCode)
}
