package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	applog "sawtooth/internal/log"
)

// Config describes one fixed window: at most Max requests per Window for a
// client IP. Storage holds the counters. A window's entry expires with the
// window itself, so stale clients are evicted by TTL.
type Config struct {
	Name    string
	Max     int
	Window  time.Duration
	Storage fiber.Storage
}

// New returns a Fiber limiter keyed by client IP and the limiter name.
func New(cfg Config) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               cfg.Max,
		Expiration:        cfg.Window,
		LimiterMiddleware: limiter.FixedWindow{},
		Storage:           cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return cfg.Name + "|" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate."+cfg.Name+".hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"ok":    false,
				"error": "Too many requests. Please retry shortly.",
			})
		},
	})
}
