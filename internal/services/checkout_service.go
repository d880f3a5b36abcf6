package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sawtooth/internal/domain"
	"sawtooth/internal/metrics"
	"sawtooth/internal/payments"
	"sawtooth/internal/repos"
	"sawtooth/internal/telemetry"
	"sawtooth/internal/validate"
)

// CheckoutService gates hosted checkout on current availability. The check
// takes no hold: stock may still change before the customer pays.
type CheckoutService struct {
	Products *repos.ProductRepo
	Payments payments.Provider
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	SiteURL  string
}

func NewCheckoutService(products *repos.ProductRepo, provider payments.Provider, m *metrics.Metrics, siteURL string) *CheckoutService {
	return &CheckoutService{Products: products, Payments: provider, Metrics: m, SiteURL: siteURL}
}

// ValidateCart checks every line against the ledger in one read and returns
// one priced line per product, in first-seen order. Repeated lines for the
// same product are summed before the stock comparison.
func (s *CheckoutService) ValidateCart(ctx context.Context, items []domain.LineItem) ([]domain.PricedLine, error) {
	if len(items) == 0 {
		return nil, domain.Invalid("items", "Cart is empty")
	}
	order := make([]string, 0, len(items))
	want := make(map[string]int, len(items))
	for i, it := range items {
		it.ProductID = strings.TrimSpace(it.ProductID)
		if err := validate.Struct(it); err != nil {
			e, _ := domain.AsError(err)
			return nil, domain.Invalid(fmt.Sprintf("items[%d].%s", i, e.Field), fmt.Sprintf("Invalid cart item at position %d", i+1))
		}
		if _, seen := want[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		want[it.ProductID] += it.Qty
	}

	found, err := s.Products.GetMany(ctx, order)
	if err != nil {
		return nil, domain.StoreFailure("checkout.read", err)
	}

	lines := make([]domain.PricedLine, 0, len(order))
	for _, id := range order {
		p, ok := found[id]
		switch {
		case !ok:
			s.Metrics.RejectCheckout("not_found")
			return nil, domain.NotFound("Product not found: " + id)
		case !p.Buyable():
			s.Metrics.RejectCheckout(domain.CodeSoldOut)
			return nil, domain.SoldOut(id)
		case want[id] > p.Inventory:
			s.Metrics.RejectCheckout(domain.CodeInsufficientStock)
			return nil, domain.InsufficientStock(id, p.Inventory)
		}
		currency := p.Currency
		if currency == "" {
			currency = "usd"
		}
		lines = append(lines, domain.PricedLine{
			ProductID:      id,
			Title:          p.Title,
			Qty:            want[id],
			UnitPriceCents: p.PriceCents,
			Currency:       currency,
		})
	}
	return lines, nil
}

// CreateSession validates the cart and asks the payment provider for a hosted
// checkout page. baseURL overrides the configured site origin when set.
func (s *CheckoutService) CreateSession(ctx context.Context, items []domain.LineItem, baseURL string) (sess payments.CheckoutSession, err error) {
	ctx, span := telemetry.Start(ctx, "checkout.create", attribute.Int("items", len(items)))
	defer func() { telemetry.End(span, err) }()

	lines, err := s.ValidateCart(ctx, items)
	if err != nil {
		return sess, err
	}
	if s.Payments == nil {
		return sess, domain.Upstream("checkout", payments.ErrNotConfigured)
	}
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = s.SiteURL
	}
	cart := make([]domain.LineItem, 0, len(lines))
	for _, l := range lines {
		cart = append(cart, domain.LineItem{ProductID: l.ProductID, Qty: l.Qty})
	}
	sess, err = s.Payments.CreateCheckout(ctx, payments.CheckoutRequest{
		Lines:      lines,
		Cart:       cart,
		SuccessURL: base + "/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  base + "/cancel.html",
	})
	if err != nil {
		logger(s.Log).Error("checkout.session.fail", zap.Error(err))
		return payments.CheckoutSession{}, domain.Upstream("checkout", err)
	}
	s.Metrics.CheckoutCreated()
	logger(s.Log).Info("checkout.session", zap.String("session_id", sess.ID), zap.Int("lines", len(lines)))
	return sess, nil
}
