package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "sawtooth/internal/log"
	"sawtooth/internal/services"
)

// RequireAdmin accepts the session cookie or a bearer token and answers 401
// before any handler runs.
func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := c.Cookies(adminCookie)
		if h := c.Get(fiber.HeaderAuthorization); tok == "" && strings.HasPrefix(h, "Bearer ") {
			tok = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		if tok == "" || auth.Verify(tok) != nil {
			applog.Security(c, "access.denied.admin", map[string]any{"has_token": tok != ""})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "Unauthorized"})
		}
		c.Locals("admin", "admin")
		return c.Next()
	}
}
