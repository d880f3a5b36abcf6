package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"sawtooth/internal/domain"
)

var (
	ErrBadSignature  = errors.New("invalid payment notification signature")
	ErrNotConfigured = errors.New("payment provider is not configured")
)

// CheckoutRequest carries validated lines plus the cart that is round-tripped
// back to us in the completion notification.
type CheckoutRequest struct {
	Lines      []domain.PricedLine
	Cart       []domain.LineItem
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Session is the part of a provider checkout session settlement needs.
type Session struct {
	ID   string
	Paid bool
	Cart []domain.LineItem
}

// Notification is a verified provider event.
type Notification struct {
	EventID string
	Type    string
	Session *Session
}

// Provider is the hosted checkout collaborator.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	GetSession(ctx context.Context, id string) (Session, error)
	// Verify checks the signature header over the raw payload before decoding.
	Verify(payload []byte, signature string) (Notification, error)
	// ListPaidSessions returns up to limit recent sessions that completed
	// with a paid status, newest first.
	ListPaidSessions(ctx context.Context, limit int) ([]Order, error)
	// UpdateMetadata merges md into a session's metadata. Keys not in md keep
	// their values.
	UpdateMetadata(ctx context.Context, sessionID string, md map[string]string) error
}

// EncodeCart renders the cart metadata value.
func EncodeCart(items []domain.LineItem) (string, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}

// DecodeCart parses cart metadata leniently: malformed JSON yields an empty
// cart and malformed entries are dropped.
func DecodeCart(raw string) []domain.LineItem {
	var entries []struct {
		ProductID any `json:"productId"`
		Qty       any `json:"qty"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return []domain.LineItem{}
	}
	out := make([]domain.LineItem, 0, len(entries))
	for _, e := range entries {
		id, ok := e.ProductID.(string)
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			continue
		}
		q, ok := e.Qty.(float64)
		if !ok || q < 1 || q != float64(int(q)) {
			continue
		}
		out = append(out, domain.LineItem{ProductID: id, Qty: int(q)})
	}
	return out
}
