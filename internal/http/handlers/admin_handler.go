package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"sawtooth/internal/images"
	applog "sawtooth/internal/log"
	"sawtooth/internal/services"
	"sawtooth/internal/validate"
)

type AdminHandler struct {
	Products         *services.ProductService
	Archive          *services.ArchiveService
	StripeConfigured bool
	SiteURL          string
}

// GET /api/admin/products
func (h *AdminHandler) List(c *fiber.Ctx) error {
	ps, err := h.Products.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return fail(c, "admin.products.list.fail", err)
	}
	return ok(c, fiber.Map{"products": views(ps)})
}

// POST /api/admin/products
func (h *AdminHandler) Create(c *fiber.Ctx) error {
	f, err := decodeFields(c.Body())
	if err != nil {
		return fail(c, "", err)
	}
	in, err := newProduct(f)
	if err != nil {
		applog.Security(c, "validation.fail", map[string]any{"route": "admin.products.create"})
		return fail(c, "", err)
	}
	p, err := h.Products.CreateProduct(c.UserContext(), in)
	if err != nil {
		return fail(c, "admin.products.create.fail", err)
	}
	applog.Audit(c, "admin.products.create", map[string]any{"product_id": p.ID, "status": p.Status})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "product": view(p)})
}

// PATCH /api/admin/products/:id
func (h *AdminHandler) Update(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		return badRequest(c, "id", "Missing id")
	}
	f, err := decodeFields(c.Body())
	if err != nil {
		return fail(c, "", err)
	}
	u, err := productUpdate(f)
	if err != nil {
		applog.Security(c, "validation.fail", map[string]any{"route": "admin.products.update", "product_id": id})
		return fail(c, "", err)
	}
	p, err := h.Products.UpdateProduct(c.UserContext(), id, u)
	if err != nil {
		return fail(c, "admin.products.update.fail", err)
	}
	applog.Audit(c, "admin.products.update", map[string]any{
		"product_id": id, "status": p.Status, "inventory": p.Inventory,
	})
	return ok(c, fiber.Map{"product": view(p)})
}

// POST /api/admin/products/:id/photos (multipart field "file")
func (h *AdminHandler) UploadPhoto(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		return badRequest(c, "id", "Missing id")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file", "Missing file")
	}
	if fh.Size > images.MaxUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"ok": false, "error": "Image too large (max 6 MB)"})
	}
	ctype := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "image/") {
		applog.Security(c, "upload.reject", map[string]any{"product_id": id, "content_type": ctype})
		return badRequest(c, "file", "Only image uploads are allowed")
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, "admin.photo.open.fail", err)
	}
	defer f.Close()

	p, err := h.Products.AddPhoto(c.UserContext(), id, ctype, f)
	if err != nil {
		return fail(c, "admin.photo.fail", err)
	}
	applog.Audit(c, "admin.photo.add", map[string]any{"product_id": id, "photos": len(p.Photos)})
	return ok(c, fiber.Map{"product": view(p), "url": p.Photos[len(p.Photos)-1]})
}

// POST /api/admin/archive/sweep runs the sold-out sweep on demand.
func (h *AdminHandler) Sweep(c *fiber.Ctx) error {
	res, err := h.Archive.RunSweep(c.UserContext())
	if err != nil {
		return fail(c, "admin.sweep.fail", err)
	}
	applog.Audit(c, "admin.sweep", map[string]any{"archived": res.Archived})
	return ok(c, fiber.Map{"result": res})
}

// GET /api/admin/health
func (h *AdminHandler) Health(c *fiber.Ctx) error {
	return ok(c, fiber.Map{
		"stripe_configured": h.StripeConfigured,
		"site_url":          h.SiteURL,
		"time":              time.Now().UTC().Format(time.RFC3339),
	})
}
