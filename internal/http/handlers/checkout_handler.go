package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sawtooth/internal/domain"
	applog "sawtooth/internal/log"
	"sawtooth/internal/services"
)

type CheckoutHandler struct {
	Checkout *services.CheckoutService
}

type cartRequest struct {
	Items []domain.LineItem `json:"items"`
}

func parseCart(c *fiber.Ctx) ([]domain.LineItem, error) {
	var req cartRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, domain.Invalid("items", "Invalid cart")
	}
	return req.Items, nil
}

// POST /api/checkout/validate
func (h *CheckoutHandler) Validate(c *fiber.Ctx) error {
	items, err := parseCart(c)
	if err != nil {
		return fail(c, "", err)
	}
	lines, err := h.Checkout.ValidateCart(c.UserContext(), items)
	if err != nil {
		return fail(c, "checkout.validate.fail", err)
	}
	return ok(c, fiber.Map{"lines": lines})
}

// POST /api/checkout
func (h *CheckoutHandler) Create(c *fiber.Ctx) error {
	items, err := parseCart(c)
	if err != nil {
		return fail(c, "", err)
	}
	base := ""
	if h.Checkout.SiteURL == "" {
		base = c.BaseURL()
	}
	sess, err := h.Checkout.CreateSession(c.UserContext(), items, base)
	if err != nil {
		if e, isDomain := domain.AsError(err); isDomain && e.Kind == domain.KindConflict {
			applog.Info(c, "checkout.reject", map[string]any{"product_id": e.ProductID, "code": e.Code})
		}
		return fail(c, "checkout.create.fail", err)
	}
	applog.Audit(c, "checkout.create", map[string]any{"session_id": sess.ID, "lines": len(items)})
	return ok(c, fiber.Map{"url": sess.URL, "id": sess.ID})
}
