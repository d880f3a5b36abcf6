package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowReturns429(t *testing.T) {
	app := fiber.New()
	app.Get("/x", New(Config{Name: "admin", Max: 3, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for i := 0; i < 4; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
		require.NoError(t, err)
		if i < 3 {
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode, "request %d", i)
		} else {
			assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		}
	}
}

func TestWindowExpiryResetsCount(t *testing.T) {
	app := fiber.New()
	app.Get("/x", New(Config{Name: "short", Max: 1, Window: time.Second}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	time.Sleep(2500 * time.Millisecond)
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
