package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sawtooth/internal/domain"
	"sawtooth/internal/payments"
)

const (
	defaultOrderLimit = 25
	maxOrderLimit     = 100
	maxTrackingLen    = 128
)

// OrderService is the admin fulfilment queue. Orders are the provider's paid
// checkout sessions; the shipped marker lives in session metadata.
type OrderService struct {
	Payments payments.Provider
	Log      *zap.Logger
	Clock    Clock
}

func NewOrderService(p payments.Provider) *OrderService {
	return &OrderService{Payments: p}
}

// Awaiting lists paid orders that have not been marked shipped, newest
// first. limit is clamped to 1..100 and defaults to 25.
func (s *OrderService) Awaiting(ctx context.Context, limit int) ([]payments.Order, error) {
	if s.Payments == nil {
		return nil, domain.Upstream("orders.list", payments.ErrNotConfigured)
	}
	switch {
	case limit <= 0:
		limit = defaultOrderLimit
	case limit > maxOrderLimit:
		limit = maxOrderLimit
	}
	all, err := s.Payments.ListPaidSessions(ctx, limit)
	if err != nil {
		return nil, domain.Upstream("orders.list", err)
	}
	out := make([]payments.Order, 0, len(all))
	for _, o := range all {
		if !o.Shipped() {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// Shipment is what MarkShipped recorded on the order.
type Shipment struct {
	SessionID string    `json:"session_id"`
	Tracking  string    `json:"tracking"`
	ShippedAt time.Time `json:"shipped_at"`
}

// MarkShipped records the shipment on a paid session. Marking again
// overwrites the tracking number and timestamp.
func (s *OrderService) MarkShipped(ctx context.Context, sessionID, tracking string) (Shipment, error) {
	sessionID = strings.TrimSpace(sessionID)
	tracking = strings.TrimSpace(tracking)
	if sessionID == "" {
		return Shipment{}, domain.Invalid("session", "Missing session id")
	}
	if len(tracking) > maxTrackingLen || strings.ContainsAny(tracking, "\r\n") {
		return Shipment{}, domain.Invalid("tracking", "invalid tracking")
	}
	if s.Payments == nil {
		return Shipment{}, domain.Upstream("orders.ship", payments.ErrNotConfigured)
	}
	sess, err := s.Payments.GetSession(ctx, sessionID)
	if err != nil {
		return Shipment{}, domain.Upstream("orders.ship.fetch", err)
	}
	if !sess.Paid {
		return Shipment{}, &domain.Error{Kind: domain.KindConflict, Code: "unpaid", Message: "Order is not paid"}
	}

	sh := Shipment{SessionID: sessionID, Tracking: tracking, ShippedAt: s.Clock.now()}
	err = s.Payments.UpdateMetadata(ctx, sessionID, map[string]string{
		payments.MetaFulfillment: payments.FulfillmentShipped,
		payments.MetaTracking:    tracking,
		payments.MetaShippedAt:   sh.ShippedAt.Format(time.RFC3339),
	})
	if err != nil {
		return Shipment{}, domain.Upstream("orders.ship.update", err)
	}
	logger(s.Log).Info("orders.shipped", zap.String("session_id", sessionID), zap.Bool("tracking", tracking != ""))
	return sh, nil
}
