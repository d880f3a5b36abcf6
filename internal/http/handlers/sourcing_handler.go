package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sawtooth/internal/domain"
	applog "sawtooth/internal/log"
	"sawtooth/internal/services"
)

type SourcingHandler struct {
	Sourcing *services.SourcingService
}

type oppRequest struct {
	OppID string `json:"opp_id"`
}

// oppView adds the display fields the admin queue renders.
type oppView struct {
	domain.Opportunity
	MaxBuyPrice    float64 `json:"max_buy_price"`
	SuggestedPrice float64 `json:"suggested_price"`
}

func oppViews(opps []domain.Opportunity) []oppView {
	out := make([]oppView, 0, len(opps))
	for _, o := range opps {
		out = append(out, oppView{
			Opportunity:    o,
			MaxBuyPrice:    float64(o.MaxBuyPriceCents) / 100,
			SuggestedPrice: float64(o.SuggestedPriceCents) / 100,
		})
	}
	return out
}

func (h *SourcingHandler) queue(c *fiber.Ctx, body fiber.Map) error {
	opps, err := h.Sourcing.Ensure(c.UserContext(), services.QueueSize)
	if err != nil {
		return fail(c, "sourcing.queue.fail", err)
	}
	body["opportunities"] = oppViews(opps)
	return ok(c, body)
}

// GET /api/admin/opportunities
func (h *SourcingHandler) List(c *fiber.Ctx) error {
	return h.queue(c, fiber.Map{})
}

// POST /api/admin/opportunities/accept
func (h *SourcingHandler) Accept(c *fiber.Ctx) error {
	var req oppRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "opp_id", "Missing opp_id")
	}
	p, err := h.Sourcing.Accept(c.UserContext(), req.OppID)
	if err != nil {
		return fail(c, "sourcing.accept.fail", err)
	}
	applog.Audit(c, "sourcing.accept", map[string]any{"opp_id": req.OppID, "product_id": p.ID})
	return h.queue(c, fiber.Map{"product": view(p)})
}

// POST /api/admin/opportunities/decline
func (h *SourcingHandler) Decline(c *fiber.Ctx) error {
	var req oppRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "opp_id", "Missing opp_id")
	}
	if err := h.Sourcing.Decline(c.UserContext(), req.OppID); err != nil {
		return fail(c, "sourcing.decline.fail", err)
	}
	applog.Audit(c, "sourcing.decline", map[string]any{"opp_id": req.OppID})
	return h.queue(c, fiber.Map{})
}
