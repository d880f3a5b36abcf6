package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "sawtooth/internal/log"
	"sawtooth/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

// GET /api/admin/orders/awaiting?limit=
func (h *OrderHandler) Awaiting(c *fiber.Ctx) error {
	orders, err := h.Orders.Awaiting(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return fail(c, "orders.awaiting.fail", err)
	}
	return ok(c, fiber.Map{"orders": orders})
}

type shippedRequest struct {
	Tracking string `json:"tracking"`
}

// POST /api/admin/orders/:session/shipped
func (h *OrderHandler) Shipped(c *fiber.Ctx) error {
	var req shippedRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "tracking", "Invalid request body")
		}
	}
	sh, err := h.Orders.MarkShipped(c.UserContext(), c.Params("session"), req.Tracking)
	if err != nil {
		return fail(c, "orders.shipped.fail", err)
	}
	applog.Audit(c, "orders.shipped", map[string]any{"session_id": sh.SessionID, "tracking": sh.Tracking})
	return ok(c, fiber.Map{"shipment": sh})
}
