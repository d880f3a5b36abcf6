package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"sawtooth/internal/log"
	"sawtooth/internal/services"
)

const adminCookie = "admin_auth"

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

type loginRequest struct {
	Token string `json:"token" form:"token"`
}

// POST /api/admin/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	_ = c.BodyParser(&req)
	tok, exp, err := h.Auth.Login(req.Token)
	if err != nil {
		log.Security(c, "auth.login.fail", nil)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "Invalid admin token"})
	}
	c.Cookie(&fiber.Cookie{
		Name:     adminCookie,
		Value:    tok,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  exp,
	})
	log.Audit(c, "auth.login.success", nil)
	return c.JSON(fiber.Map{"ok": true, "expires_at": exp.Format(time.RFC3339)})
}

// POST /api/admin/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.JSON(fiber.Map{"ok": true})
}
