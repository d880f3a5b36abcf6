package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v80/webhook"

	"sawtooth/internal/config"
	"sawtooth/internal/domain"
	"sawtooth/internal/http/handlers"
	"sawtooth/internal/images"
	applog "sawtooth/internal/log"
	"sawtooth/internal/payments"
	"sawtooth/internal/repos"
)

const (
	adminToken    = "letmein"
	webhookSecret = "whsec_test_secret"
)

type testEnv struct {
	app   *fiber.App
	db    *sqlx.DB
	deps  *handlers.Deps
	store *images.DirStore
}

type envOption func(*config.Config, *handlers.Collaborators)

func withProvider(p payments.Provider) envOption {
	return func(_ *config.Config, col *handlers.Collaborators) { col.Payments = p }
}

func withAdminLimit(n int) envOption {
	return func(cfg *config.Config, _ *handlers.Collaborators) { cfg.AdminRateLimit = n }
}

func newEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := config.Config{
		DBDSN:          ":memory:",
		SiteURL:        "https://shop.example",
		AdminToken:     adminToken,
		JWTSecret:      "test-jwt-secret",
		AdminRateLimit: 1000,
	}
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := images.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("media dir: %v", err)
	}
	col := handlers.Collaborators{
		Payments: payments.NewStripe("sk_test_x", webhookSecret),
		Images:   store,
	}
	for _, o := range opts {
		o(&cfg, &col)
	}
	deps := handlers.NewDeps(db, cfg, col)
	return &testEnv{app: handlers.NewApp(deps), db: db, deps: deps, store: store}
}

func (e *testEnv) seed(t *testing.T, ps ...domain.Product) {
	t.Helper()
	now := repos.Stamp(time.Now())
	products := repos.NewProductRepo(e.db)
	err := repos.WithTx(context.Background(), e.db, func(tx *sqlx.Tx) error {
		for _, p := range ps {
			if p.Status == "" {
				p.Status = domain.StatusActive
			}
			if p.Currency == "" {
				p.Currency = "usd"
			}
			p.CreatedAt, p.UpdatedAt = now, now
			if err := products.Insert(context.Background(), tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (e *testEnv) product(t *testing.T, id string) domain.Product {
	t.Helper()
	p, err := repos.NewProductRepo(e.db).Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return p
}

func (e *testEnv) bearer(t *testing.T) string {
	t.Helper()
	tok, _, err := e.deps.Auth.Login(adminToken)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return "Bearer " + tok
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return resp, body
}

func jsonReq(method, path, body, auth string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func signed(payload string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	}).Header
}

type logEntry struct {
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	Admin  string         `json:"admin"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	restore := applog.SetOutput(buf)
	defer restore()

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
