package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sawtooth/internal/domain"
	applog "sawtooth/internal/log"
	"sawtooth/internal/payments"
	"sawtooth/internal/services"
)

const eventCheckoutCompleted = "checkout.session.completed"

type WebhookHandler struct {
	Payments  payments.Provider
	Inventory *services.InventoryService
}

// POST /api/stripe/webhook
//
// Only a verified, paid checkout completion touches inventory. Any non-2xx
// makes the provider redeliver, which the engine absorbs.
func (h *WebhookHandler) Stripe(c *fiber.Ctx) error {
	if h.Payments == nil {
		return fail(c, "stripe.webhook.unconfigured", domain.Upstream("webhook", payments.ErrNotConfigured))
	}
	n, err := h.Payments.Verify(c.Body(), c.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payments.ErrNotConfigured):
		return fail(c, "stripe.webhook.unconfigured", domain.Upstream("webhook", err))
	case errors.Is(err, payments.ErrBadSignature):
		applog.Security(c, "stripe.webhook.bad_signature", map[string]any{"err": err.Error()})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "Invalid signature"})
	case err != nil:
		applog.Error(c, "stripe.webhook.decode.fail", err, nil)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "Invalid payload"})
	}
	if n.Type != eventCheckoutCompleted || n.Session == nil || !n.Session.Paid {
		applog.Info(c, "stripe.webhook.ignored", map[string]any{"event_id": n.EventID, "type": n.Type})
		return c.JSON(fiber.Map{"received": true, "ignored": true})
	}

	res, err := h.Inventory.ApplyInventoryForSession(c.UserContext(), n.Session.ID, n.Session.Cart)
	if err != nil {
		return fail(c, "stripe.webhook.settle.fail", err)
	}
	applog.Audit(c, "stripe.webhook.settled", map[string]any{
		"event_id": n.EventID, "session_id": res.SessionID, "applied": res.Applied, "missing": res.Missing,
	})
	return c.JSON(fiber.Map{"received": true, "applied": res.Applied})
}

type syncRequest struct {
	SessionID string `json:"session_id"`
}

// POST /api/admin/stripe/sync re-fetches a session and settles it if paid.
func (h *WebhookHandler) Sync(c *fiber.Ctx) error {
	var req syncRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		return badRequest(c, "session_id", "Missing session_id")
	}
	if h.Payments == nil {
		return fail(c, "stripe.sync.unconfigured", domain.Upstream("sync", payments.ErrNotConfigured))
	}
	sess, err := h.Payments.GetSession(c.UserContext(), strings.TrimSpace(req.SessionID))
	if err != nil {
		return fail(c, "stripe.sync.fetch.fail", domain.Upstream("sync", err))
	}
	if !sess.Paid {
		return ok(c, fiber.Map{"session_id": sess.ID, "paid": false, "applied": false})
	}
	res, err := h.Inventory.ApplyInventoryForSession(c.UserContext(), sess.ID, sess.Cart)
	if err != nil {
		return fail(c, "stripe.sync.settle.fail", err)
	}
	applog.Audit(c, "stripe.sync", map[string]any{"session_id": sess.ID, "applied": res.Applied})
	return ok(c, fiber.Map{"session_id": sess.ID, "paid": true, "applied": res.Applied, "result": res})
}
