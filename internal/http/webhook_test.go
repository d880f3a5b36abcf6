package handlers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"sawtooth/internal/domain"
	"sawtooth/internal/payments"
)

func completedEvent(eventID, sessionID, paymentStatus, cart string) string {
	return fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": %q,
    "object": "checkout.session",
    "payment_status": %q,
    "metadata": {"cart": %q}
  }}
}`, eventID, sessionID, paymentStatus, cart)
}

func postWebhook(payload, sig string) *http.Request {
	req := jsonReq("POST", "/api/stripe/webhook", payload, "")
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	return req
}

func TestWebhookSettlesOnce(t *testing.T) {
	env := newEnv(t)
	env.seed(t, domain.Product{ID: "boots", Title: "Boots", PriceCents: 4500, Inventory: 3})
	payload := completedEvent("evt_1", "cs_test_1", "paid", `[{"productId":"boots","qty":2}]`)

	resp, body := env.do(t, postWebhook(payload, signed(payload)))
	if resp.StatusCode != 200 || body["applied"] != true {
		t.Fatalf("first delivery: status=%d body=%v", resp.StatusCode, body)
	}

	// provider redelivery of the same session
	redelivery := completedEvent("evt_2", "cs_test_1", "paid", `[{"productId":"boots","qty":2}]`)
	resp, body = env.do(t, postWebhook(redelivery, signed(redelivery)))
	if resp.StatusCode != 200 || body["applied"] != false {
		t.Fatalf("redelivery: status=%d body=%v", resp.StatusCode, body)
	}

	if got := env.product(t, "boots").Inventory; got != 1 {
		t.Fatalf("inventory = %d, want 1", got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newEnv(t)
	env.seed(t, domain.Product{ID: "boots", Title: "Boots", Inventory: 3})
	payload := completedEvent("evt_1", "cs_bad", "paid", `[{"productId":"boots","qty":1}]`)

	var resp *http.Response
	logs := captureLogs(t, func() {
		resp, _ = env.do(t, postWebhook(payload, "t=1,v1=deadbeef"))
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if e, ok := findLog(logs, "stripe.webhook.bad_signature"); !ok || e.Kind != "security" {
		t.Fatalf("missing security log; logs=%v", logs)
	}

	resp, _ = env.do(t, postWebhook(payload, ""))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing signature: expected 400, got %d", resp.StatusCode)
	}
	if got := env.product(t, "boots").Inventory; got != 3 {
		t.Fatalf("inventory changed to %d", got)
	}
}

func TestWebhookIgnoresUnpaidAndOtherEvents(t *testing.T) {
	env := newEnv(t)
	env.seed(t, domain.Product{ID: "boots", Title: "Boots", Inventory: 3})

	unpaid := completedEvent("evt_3", "cs_unpaid", "unpaid", `[{"productId":"boots","qty":1}]`)
	resp, body := env.do(t, postWebhook(unpaid, signed(unpaid)))
	if resp.StatusCode != 200 || body["ignored"] != true {
		t.Fatalf("unpaid: status=%d body=%v", resp.StatusCode, body)
	}

	other := `{"id":"evt_4","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`
	resp, body = env.do(t, postWebhook(other, signed(other)))
	if resp.StatusCode != 200 || body["ignored"] != true {
		t.Fatalf("other: status=%d body=%v", resp.StatusCode, body)
	}
	if got := env.product(t, "boots").Inventory; got != 3 {
		t.Fatalf("inventory changed to %d", got)
	}
}

func TestWebhookToleratesBadCartAndUnknownProducts(t *testing.T) {
	env := newEnv(t)
	env.seed(t, domain.Product{ID: "boots", Title: "Boots", Inventory: 3})

	payload := completedEvent("evt_5", "cs_mixed", "paid", `[{"productId":"ghost","qty":1},{"productId":"boots","qty":1},{"qty":"x"}]`)
	resp, body := env.do(t, postWebhook(payload, signed(payload)))
	if resp.StatusCode != 200 || body["applied"] != true {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if got := env.product(t, "boots").Inventory; got != 2 {
		t.Fatalf("inventory = %d, want 2", got)
	}

	garbage := completedEvent("evt_6", "cs_garbage", "paid", `not json`)
	resp, _ = env.do(t, postWebhook(garbage, signed(garbage)))
	if resp.StatusCode != 200 {
		t.Fatalf("garbage cart: expected 200, got %d", resp.StatusCode)
	}
}

func TestWebhookStoreFailureAsksForRedelivery(t *testing.T) {
	env := newEnv(t)
	_ = env.db.Close()

	payload := completedEvent("evt_7", "cs_down", "paid", `[{"productId":"boots","qty":1}]`)
	resp, body := env.do(t, postWebhook(payload, signed(payload)))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); strings.Contains(msg, "sql") || !strings.Contains(msg, "Something went wrong") {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestWebhookMissingSecretIsNotASecurityEvent(t *testing.T) {
	env := newEnv(t, withProvider(payments.NewStripe("sk_test_x", "")))
	payload := completedEvent("evt_8", "cs_cfg", "paid", `[]`)

	var resp *http.Response
	var body map[string]any
	logs := captureLogs(t, func() {
		resp, body = env.do(t, postWebhook(payload, signed(payload)))
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "Upstream service unavailable") {
		t.Fatalf("unexpected error body: %v", body)
	}
	if _, ok := findLog(logs, "stripe.webhook.bad_signature"); ok {
		t.Fatalf("misconfiguration logged as bad signature")
	}
	if _, ok := findLog(logs, "stripe.webhook.unconfigured"); !ok {
		t.Fatalf("missing unconfigured log")
	}
}

func TestWebhookUndecodableSessionIsNotASecurityEvent(t *testing.T) {
	env := newEnv(t)
	payload := `{"id":"evt_9","object":"event","type":"checkout.session.completed","data":{"object":{"id":5,"object":"checkout.session"}}}`

	var resp *http.Response
	var body map[string]any
	logs := captureLogs(t, func() {
		resp, body = env.do(t, postWebhook(payload, signed(payload)))
	})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Invalid payload" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if _, ok := findLog(logs, "stripe.webhook.bad_signature"); ok {
		t.Fatalf("decode failure logged as bad signature")
	}
	if _, ok := findLog(logs, "stripe.webhook.decode.fail"); !ok {
		t.Fatalf("missing decode failure log")
	}
}
