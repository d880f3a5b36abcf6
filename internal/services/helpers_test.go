package services

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"sawtooth/internal/domain"
	"sawtooth/internal/payments"
	"sawtooth/internal/repos"
)

var t0 = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

func fixed(t time.Time) Clock { return func() time.Time { return t } }

func newDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *sqlx.DB, ps ...domain.Product) {
	t.Helper()
	products := repos.NewProductRepo(db)
	err := repos.WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		for _, p := range ps {
			if p.Status == "" {
				p.Status = domain.StatusActive
			}
			if p.Currency == "" {
				p.Currency = "usd"
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt, p.UpdatedAt = t0, t0
			}
			if err := products.Insert(context.Background(), tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func mustGet(t *testing.T, db *sqlx.DB, id string) domain.Product {
	t.Helper()
	p, err := repos.NewProductRepo(db).Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T { return &v }

// memStore is an images.Store that keeps blobs in memory.
type memStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	deleteErr error
	deleted   []string
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, productID, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "products/" + productID + "/" + time.Now().Format("150405.000000000") + ".jpg"
	m.blobs[key] = b
	return key, nil
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, "", errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(b)), "image/jpeg", nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, productID)
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := 0
	for k := range m.blobs {
		if strings.HasPrefix(k, "products/"+productID+"/") {
			delete(m.blobs, k)
			n++
		}
	}
	return n, nil
}

// fakeProvider records checkout requests and metadata updates.
type fakeProvider struct {
	reqs     []payments.CheckoutRequest
	err      error
	session  payments.Session
	orders   []payments.Order
	limit    int
	metadata map[string]map[string]string
}

func (f *fakeProvider) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return payments.CheckoutSession{}, f.err
	}
	return payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (f *fakeProvider) GetSession(context.Context, string) (payments.Session, error) {
	return f.session, f.err
}

func (f *fakeProvider) Verify([]byte, string) (payments.Notification, error) {
	return payments.Notification{}, payments.ErrBadSignature
}

func (f *fakeProvider) ListPaidSessions(_ context.Context, limit int) ([]payments.Order, error) {
	f.limit = limit
	return f.orders, f.err
}

func (f *fakeProvider) UpdateMetadata(_ context.Context, id string, md map[string]string) error {
	if f.err != nil {
		return f.err
	}
	if f.metadata == nil {
		f.metadata = map[string]map[string]string{}
	}
	f.metadata[id] = md
	return nil
}

func newMock(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return mock, raw
}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "status", "title", "description", "price_cents", "currency", "category", "clothing_subcategory",
		"inventory", "photos", "tags", "search_keywords", "source_notes", "buy_price_max_cents",
		"sold_out_since", "archived_at", "created_at", "updated_at",
	})
}

func productRow(id string, inventory int) []driver.Value {
	return []driver.Value{
		id, domain.StatusActive, id, "", int64(1000), "usd", "", "",
		int64(inventory), "[]", "[]", "[]", "", int64(0),
		nil, nil, t0, t0,
	}
}
