package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"sawtooth/internal/images"
	"sawtooth/internal/ratelimit"
	"sawtooth/internal/telemetry"
)

// MaxJSONBody caps every request except photo uploads.
const MaxJSONBody = 1 << 20

func bodyLimit(n int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > n {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"ok": false, "error": "Request body too large"})
		}
		return c.Next()
	}
}

func (d *Deps) countRequests() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		d.Metrics.Request(c.Method(), c.Route().Path, status)
		return err
	}
}

// NewApp builds the HTTP API with every route mounted.
func NewApp(d *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		BodyLimit:             images.MaxUploadBytes + MaxJSONBody,
		DisableStartupMessage: true,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: `{"ts":"${time}","req_id":"${locals:requestid}","status":${status},"method":"${method}","path":"${path}","latency":"${latency}"}` + "\n",
	}))
	app.Use(helmet.New())
	app.Use(telemetry.Middleware())
	app.Use(d.countRequests())

	jsonOnly := bodyLimit(MaxJSONBody)

	// ---------- Public ----------
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	app.Get("/media/*", d.CatalogHandler.Media)

	api := app.Group("/api")
	api.Get("/products", d.CatalogHandler.List)
	api.Get("/products/:id", d.CatalogHandler.Detail)

	checkoutLimiter := ratelimit.New(ratelimit.Config{Name: "checkout", Max: 30, Window: time.Minute, Storage: d.RateStorage})
	api.Post("/checkout/validate", jsonOnly, checkoutLimiter, d.CheckoutHandler.Validate)
	api.Post("/checkout", jsonOnly, checkoutLimiter, d.CheckoutHandler.Create)
	api.Post("/stripe/webhook", jsonOnly, d.WebhookHandler.Stripe)

	// ---------- Admin ----------
	api.Post("/admin/login", jsonOnly,
		ratelimit.New(ratelimit.Config{Name: "login", Max: 5, Window: 10 * time.Minute, Storage: d.RateStorage}),
		d.AuthHandler.Login)
	api.Post("/admin/logout", d.AuthHandler.Logout)

	adminMax := d.Config.AdminRateLimit
	if adminMax <= 0 {
		adminMax = 120
	}
	admin := api.Group("/admin",
		ratelimit.New(ratelimit.Config{Name: "admin", Max: adminMax, Window: time.Minute, Storage: d.RateStorage}),
		RequireAdmin(d.Auth),
	)
	admin.Get("/health", d.AdminHandler.Health)
	admin.Get("/products", d.AdminHandler.List)
	admin.Post("/products", jsonOnly, d.AdminHandler.Create)
	admin.Patch("/products/:id", jsonOnly, d.AdminHandler.Update)
	admin.Post("/products/:id/photos", d.AdminHandler.UploadPhoto)
	admin.Post("/archive/sweep", d.AdminHandler.Sweep)
	admin.Post("/stripe/sync", jsonOnly, d.WebhookHandler.Sync)
	admin.Get("/opportunities", d.SourcingHandler.List)
	admin.Post("/opportunities/accept", jsonOnly, d.SourcingHandler.Accept)
	admin.Post("/opportunities/decline", jsonOnly, d.SourcingHandler.Decline)
	admin.Get("/orders/awaiting", d.OrderHandler.Awaiting)
	admin.Post("/orders/:session/shipped", jsonOnly, d.OrderHandler.Shipped)

	// 404
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "Not found"})
	})
	return app
}
