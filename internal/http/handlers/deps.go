package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"sawtooth/internal/config"
	"sawtooth/internal/images"
	"sawtooth/internal/metrics"
	"sawtooth/internal/payments"
	"sawtooth/internal/repos"
	"sawtooth/internal/services"
	"sawtooth/internal/sourcing"
)

// Collaborators are the external systems the handlers talk to. Nil values
// disable the matching feature.
type Collaborators struct {
	Payments    payments.Provider
	Images      images.Store
	Generator   sourcing.Generator
	Metrics     *metrics.Metrics
	RateStorage fiber.Storage
}

type Deps struct {
	Config  config.Config
	Metrics *metrics.Metrics
	Auth    *services.AuthService
	Archive *services.ArchiveService

	RateStorage fiber.Storage

	CatalogHandler  *CatalogHandler
	CheckoutHandler *CheckoutHandler
	WebhookHandler  *WebhookHandler
	AdminHandler    *AdminHandler
	SourcingHandler *SourcingHandler
	OrderHandler    *OrderHandler
	AuthHandler     *AuthHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, col Collaborators) *Deps {
	if col.Metrics == nil {
		col.Metrics = metrics.New()
	}
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	oppRepo := repos.NewOpportunityRepo(db)

	authSvc := services.NewAuthService(cfg.AdminToken, cfg.AdminTokenHash, cfg.JWTSecret)
	catalogSvc := services.NewCatalogService(prodRepo)
	checkoutSvc := services.NewCheckoutService(prodRepo, col.Payments, col.Metrics, cfg.SiteURL)
	invSvc := services.NewInventoryService(db, prodRepo, invRepo, col.Metrics)
	productSvc := services.NewProductService(db, prodRepo, col.Images, col.Metrics)
	archiveSvc := services.NewArchiveService(db, prodRepo, col.Images, col.Metrics)
	sourcingSvc := services.NewSourcingService(db, oppRepo, prodRepo, col.Generator)
	orderSvc := services.NewOrderService(col.Payments)

	return &Deps{
		Config:      cfg,
		Metrics:     col.Metrics,
		Auth:        authSvc,
		Archive:     archiveSvc,
		RateStorage: col.RateStorage,

		CatalogHandler:  &CatalogHandler{Catalog: catalogSvc, Images: col.Images},
		CheckoutHandler: &CheckoutHandler{Checkout: checkoutSvc},
		WebhookHandler:  &WebhookHandler{Payments: col.Payments, Inventory: invSvc},
		AdminHandler: &AdminHandler{
			Products:         productSvc,
			Archive:          archiveSvc,
			StripeConfigured: col.Payments != nil,
			SiteURL:          cfg.SiteURL,
		},
		SourcingHandler: &SourcingHandler{Sourcing: sourcingSvc},
		OrderHandler:    &OrderHandler{Orders: orderSvc},
		AuthHandler:     &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
	}
}
