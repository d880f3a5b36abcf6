package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"sawtooth/internal/domain"
	applog "sawtooth/internal/log"
)

const genericError = "Something went wrong. Please try again."

func ok(c *fiber.Ctx, body fiber.Map) error {
	body["ok"] = true
	return c.JSON(body)
}

func badRequest(c *fiber.Ctx, field, msg string) error {
	return fail(c, "", domain.Invalid(field, msg))
}

// fail writes err as the JSON error envelope. Client errors carry their own
// message; store and internal failures are logged under action and reported
// generically.
func fail(c *fiber.Ctx, action string, err error) error {
	e, isDomain := domain.AsError(err)
	if !isDomain {
		e = &domain.Error{Kind: domain.KindInternal, Err: err}
	}
	body := fiber.Map{"ok": false, "error": e.Message}
	switch e.Kind {
	case domain.KindStore, domain.KindInternal, domain.KindUpstream:
		if action != "" {
			applog.Error(c, action, err, nil)
		}
		body["error"] = genericError
		if e.Kind == domain.KindUpstream {
			body["error"] = "Upstream service unavailable. Please try again."
		}
	default:
		if e.Field != "" {
			body["field"] = e.Field
		}
		if e.Code == domain.CodeInsufficientStock {
			body["available"] = e.Available
		}
		if e.ProductID != "" {
			body["productId"] = e.ProductID
		}
	}
	return c.Status(e.Status()).JSON(body)
}

// ErrorHandler is the app-wide fallback. It never leaks internal details.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(fiber.Map{"ok": false, "error": fe.Message})
	}
	if _, isDomain := domain.AsError(err); isDomain {
		return fail(c, "server.error", err)
	}
	applog.Error(c, "server.error", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": genericError})
}

// productView adds the decimal price the storefront displays.
type productView struct {
	domain.Product
	Price float64 `json:"price"`
}

func view(p domain.Product) productView { return productView{Product: p, Price: p.Price()} }

func views(ps []domain.Product) []productView {
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, view(p))
	}
	return out
}
