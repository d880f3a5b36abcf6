package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// Stripe implements Provider with hosted Checkout Sessions.
type Stripe struct {
	api           *client.API
	webhookSecret string
	cb            *gobreaker.CircuitBreaker
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return newStripe(api, webhookSecret)
}

func newStripe(api *client.API, webhookSecret string) *Stripe {
	return &Stripe{
		api:           api,
		webhookSecret: webhookSecret,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "stripe",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && ratio >= 0.6
			},
		}),
	}
}

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	cart, err := EncodeCart(req.Cart)
	if err != nil {
		return CheckoutSession{}, err
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US"}),
		},
	}
	params.Context = ctx
	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(l.Qty)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(l.Currency),
				UnitAmount: stripe.Int64(l.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(l.Title),
					Metadata: map[string]string{"product_id": l.ProductID},
				},
			},
		})
	}
	params.AddMetadata("cart", cart)

	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return CheckoutSession{}, breakerErr(err)
	}
	sess := res.(*stripe.CheckoutSession)
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) GetSession(ctx context.Context, id string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.api.CheckoutSessions.Get(id, params)
	})
	if err != nil {
		return Session{}, breakerErr(err)
	}
	return toSession(res.(*stripe.CheckoutSession)), nil
}

func (s *Stripe) Verify(payload []byte, signature string) (Notification, error) {
	if s.webhookSecret == "" {
		return Notification{}, ErrNotConfigured
	}
	if signature == "" {
		return Notification{}, ErrBadSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	n := Notification{EventID: event.ID, Type: string(event.Type)}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted || event.Data == nil {
		return n, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Notification{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out := toSession(&sess)
	n.Session = &out
	return n, nil
}

func (s *Stripe) ListPaidSessions(ctx context.Context, limit int) ([]Order, error) {
	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.AddExpand("data.customer_details")
	params.AddExpand("data.line_items")

	res, err := s.cb.Execute(func() (interface{}, error) {
		out := []Order{}
		it := s.api.CheckoutSessions.List(params)
		// the iterator pages on; stop after the first page's worth
		for seen := 0; seen < limit && it.Next(); seen++ {
			sess := it.CheckoutSession()
			if sess.Status != stripe.CheckoutSessionStatusComplete ||
				sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
				continue
			}
			out = append(out, toOrder(sess))
		}
		return out, it.Err()
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return res.([]Order), nil
}

func (s *Stripe) UpdateMetadata(ctx context.Context, sessionID string, md map[string]string) error {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	for k, v := range md {
		params.AddMetadata(k, v)
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		sess := &stripe.CheckoutSession{}
		path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
		err := s.api.CheckoutSessions.B.Call(http.MethodPost, path, s.api.CheckoutSessions.Key, params, sess)
		return sess, err
	})
	return breakerErr(err)
}

func toOrder(sess *stripe.CheckoutSession) Order {
	var r Recipient
	var shipAddr, custAddr *stripe.Address
	if sd := sess.ShippingDetails; sd != nil {
		r.Name = sd.Name
		shipAddr = sd.Address
	}
	if cd := sess.CustomerDetails; cd != nil {
		if r.Name == "" {
			r.Name = cd.Name
		}
		r.Email = cd.Email
		custAddr = cd.Address
	}
	addr := shipAddr
	if addr == nil {
		addr = custAddr
	}
	if addr != nil {
		r.Line1, r.Line2, r.City, r.State, r.Zip, r.Country =
			addr.Line1, addr.Line2, addr.City, addr.State, addr.PostalCode, addr.Country
	}
	if r.Country == "" {
		r.Country = "US"
	}

	o := Order{
		SessionID:      sess.ID,
		Created:        time.Unix(sess.Created, 0).UTC(),
		CustomerEmail:  r.Email,
		Recipient:      r,
		HasFullAddress: r.Complete(),
		Items:          []OrderItem{},
	}
	if sess.LineItems != nil {
		for _, li := range sess.LineItems.Data {
			qty := li.Quantity
			if qty < 1 {
				qty = 1
			}
			amount := li.AmountTotal
			if amount == 0 {
				amount = li.AmountSubtotal
			}
			currency := string(li.Currency)
			if currency == "" {
				currency = "usd"
			}
			name := li.Description
			if name == "" {
				name = "Stripe item"
			}
			o.Items = append(o.Items, OrderItem{
				Name:        name,
				Quantity:    qty,
				UnitAmount:  (amount + qty/2) / qty,
				Currency:    currency,
				AmountTotal: amount,
			})
		}
	}
	orderFromMetadata(&o, sess.Metadata)
	return o
}

func toSession(sess *stripe.CheckoutSession) Session {
	return Session{
		ID:   sess.ID,
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Cart: DecodeCart(sess.Metadata["cart"]),
	}
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("stripe circuit open: %w", err)
	}
	return err
}
