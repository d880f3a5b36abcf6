package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sawtooth/internal/domain"
	"sawtooth/internal/payments"
)

func newOrders(p payments.Provider) *OrderService {
	s := NewOrderService(p)
	s.Clock = fixed(t0)
	return s
}

func TestAwaitingSkipsShippedNewestFirst(t *testing.T) {
	fp := &fakeProvider{orders: []payments.Order{
		{SessionID: "cs_old", Created: t0.Add(-48 * time.Hour)},
		{SessionID: "cs_done", Created: t0.Add(-time.Hour), FulfillmentStatus: payments.FulfillmentShipped},
		{SessionID: "cs_new", Created: t0.Add(-time.Minute)},
	}}
	svc := newOrders(fp)

	got, err := svc.Awaiting(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cs_new", got[0].SessionID)
	assert.Equal(t, "cs_old", got[1].SessionID)
	assert.Equal(t, 25, fp.limit)

	_, err = svc.Awaiting(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, fp.limit)
}

func TestAwaitingProviderFailure(t *testing.T) {
	svc := newOrders(&fakeProvider{err: errors.New("stripe down")})
	_, err := svc.Awaiting(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	_, err = newOrders(nil).Awaiting(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestMarkShippedWritesMetadata(t *testing.T) {
	fp := &fakeProvider{session: payments.Session{ID: "cs_1", Paid: true}}
	svc := newOrders(fp)

	sh, err := svc.MarkShipped(context.Background(), " cs_1 ", " 1Z999 ")
	require.NoError(t, err)
	assert.Equal(t, Shipment{SessionID: "cs_1", Tracking: "1Z999", ShippedAt: t0}, sh)
	assert.Equal(t, map[string]string{
		"fulfillment_status": "shipped",
		"tracking":           "1Z999",
		"shipped_at":         "2025-11-03T12:00:00Z",
	}, fp.metadata["cs_1"])
}

func TestMarkShippedRejections(t *testing.T) {
	ctx := context.Background()
	unpaid := newOrders(&fakeProvider{session: payments.Session{ID: "cs_2"}})

	_, err := unpaid.MarkShipped(ctx, "", "x")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = unpaid.MarkShipped(ctx, "cs_2", "bad\ntracking")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = unpaid.MarkShipped(ctx, "cs_2", "")
	assert.ErrorIs(t, err, &domain.Error{Kind: domain.KindConflict, Code: "unpaid"})

	_, err = newOrders(&fakeProvider{err: errors.New("timeout")}).MarkShipped(ctx, "cs_3", "")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}
