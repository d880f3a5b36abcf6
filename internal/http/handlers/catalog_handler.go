package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"sawtooth/internal/images"
	"sawtooth/internal/log"
	"sawtooth/internal/services"
	"sawtooth/internal/validate"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
	Images  images.Store
}

// GET /api/products
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	ps, err := h.Catalog.ListActive(c.UserContext())
	if err != nil {
		return fail(c, "catalog.list.fail", err)
	}
	return ok(c, fiber.Map{"products": views(ps)})
}

// GET /api/products/:id
func (h *CatalogHandler) Detail(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "This item is no longer available"})
	}
	p, err := h.Catalog.GetActive(c.UserContext(), id)
	if err != nil {
		return fail(c, "catalog.detail.fail", err)
	}
	return ok(c, fiber.Map{"product": view(p)})
}

// GET /media/*
func (h *CatalogHandler) Media(c *fiber.Ctx) error {
	raw := c.Params("*")
	key, valid := images.CleanKey(raw)
	if !valid || h.Images == nil {
		log.Security(c, "media.traversal.block", map[string]any{"path": raw})
		return c.SendStatus(fiber.StatusNotFound)
	}
	rc, ctype, err := h.Images.Open(c.UserContext(), key)
	if errors.Is(err, images.ErrNotFound) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		log.Error(c, "media.open.fail", err, map[string]any{"key": key})
		return c.SendStatus(fiber.StatusNotFound)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, images.MaxUploadBytes+1))
	if err != nil {
		return fail(c, "media.read.fail", err)
	}
	if ctype != "" {
		c.Set(fiber.HeaderContentType, ctype)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(b)
}
