package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sawtooth/internal/domain"
	"sawtooth/internal/images"
	"sawtooth/internal/metrics"
	"sawtooth/internal/repos"
	"sawtooth/internal/telemetry"
	"sawtooth/internal/validate"
)

// ProductUpdate is a partial product edit. Nil fields are left untouched.
type ProductUpdate struct {
	Title               *string
	Description         *string
	PriceCents          *int64
	Currency            *string
	Inventory           *int
	Status              *string
	Category            *string
	ClothingSubcategory *string
	Photos              *[]string
	Tags                *[]string
	SearchKeywords      *[]string
	SourceNotes         *string
	BuyPriceMaxCents    *int64
}

func (u ProductUpdate) Empty() bool {
	return u == ProductUpdate{}
}

// NewProduct is the input for a manual listing.
type NewProduct struct {
	ID                  string
	Title               string
	Description         string
	PriceCents          int64
	Currency            string
	Inventory           int
	Status              string
	Category            string
	ClothingSubcategory string
	Tags                []string
	SearchKeywords      []string
	SourceNotes         string
	BuyPriceMaxCents    int64
}

type ProductService struct {
	DB       *sqlx.DB
	Products *repos.ProductRepo
	Images   images.Store
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Clock    Clock
}

func NewProductService(db *sqlx.DB, products *repos.ProductRepo, store images.Store, m *metrics.Metrics) *ProductService {
	return &ProductService{DB: db, Products: products, Images: store, Metrics: m}
}

func (s *ProductService) List(ctx context.Context, status string) ([]domain.Product, error) {
	if status != "" {
		st, ok := validate.Status(status)
		if !ok {
			return nil, domain.Invalid("status", "invalid status")
		}
		status = st
	}
	out, err := s.Products.List(ctx, status)
	if err != nil {
		return nil, domain.StoreFailure("products.list", err)
	}
	return out, nil
}

// normalize validates every provided field of u in place.
func (u *ProductUpdate) normalize() error {
	if u.Empty() {
		return domain.Invalid("", "No valid updates")
	}
	if u.Title != nil {
		t, ok := validate.Title(*u.Title)
		if !ok {
			return domain.Invalid("title", "invalid title")
		}
		u.Title = &t
	}
	if u.Currency != nil {
		c, ok := validate.Currency(*u.Currency)
		if !ok {
			return domain.Invalid("currency", "invalid currency")
		}
		u.Currency = &c
	}
	if u.PriceCents != nil && *u.PriceCents < 0 {
		return domain.Invalid("price", "invalid price")
	}
	if u.Inventory != nil && *u.Inventory < 0 {
		return domain.Invalid("inventory", "invalid inventory")
	}
	if u.BuyPriceMaxCents != nil && *u.BuyPriceMaxCents < 0 {
		return domain.Invalid("buy_price_max_cents", "invalid buy_price_max_cents")
	}
	if u.Status != nil {
		st, ok := validate.Status(*u.Status)
		if !ok {
			return domain.Invalid("status", "invalid status")
		}
		u.Status = &st
	}
	if u.Category != nil {
		c, ok := validate.Category(*u.Category)
		if !ok {
			return domain.Invalid("category", "invalid category")
		}
		u.Category = &c
	}
	if u.ClothingSubcategory != nil {
		sc := strings.ToLower(strings.TrimSpace(*u.ClothingSubcategory))
		if _, ok := validate.Subcategory(sc); sc != "" && !ok {
			return domain.Invalid("clothing_subcategory", "invalid subcategory")
		}
		u.ClothingSubcategory = &sc
	}
	return nil
}

// classify enforces the category/subcategory pairing on p.
func classify(p *domain.Product) error {
	if p.Category != domain.CategoryClothes {
		p.ClothingSubcategory = ""
		return nil
	}
	if _, ok := validate.Subcategory(p.ClothingSubcategory); !ok {
		return domain.Invalid("clothing_subcategory", "invalid subcategory")
	}
	return nil
}

// UpdateProduct applies u under the product's row lock. Inventory edits keep
// sold_out_since in step; archiving clears photos and deletes stored images
// once the transaction has committed.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, u ProductUpdate) (p domain.Product, err error) {
	if err := u.normalize(); err != nil {
		return p, err
	}
	ctx, span := telemetry.Start(ctx, "product.update", attribute.String("product_id", id))
	defer func() { telemetry.End(span, err) }()

	now := s.Clock.now()
	var archived bool
	err = repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		cur, err := s.Products.Lock(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("Product not found")
		}
		if err != nil {
			return err
		}
		p = cur
		apply(&p, u)

		if u.Category != nil || u.ClothingSubcategory != nil {
			if err := classify(&p); err != nil {
				return err
			}
		}
		if u.Inventory != nil {
			switch {
			case p.Inventory > 0:
				p.SoldOutSince = nil
			case cur.Inventory > 0:
				p.SoldOutSince = &now
			}
		}
		if p.Status != cur.Status {
			if p.Status == domain.StatusArchived {
				p.ArchivedAt = &now
				archived = true
			} else if cur.Status == domain.StatusArchived {
				p.ArchivedAt = nil
			}
		}
		if p.Status == domain.StatusArchived {
			p.Photos = domain.JSONList[string]{}
		}
		p.UpdatedAt = now
		return s.Products.Update(ctx, tx, p)
	})
	if err != nil {
		if _, ok := domain.AsError(err); ok {
			return domain.Product{}, err
		}
		return domain.Product{}, domain.StoreFailure("product.update", err)
	}
	if archived {
		s.Metrics.Archived("admin", 1)
		s.deleteImages(ctx, []string{id})
	}
	return p, nil
}

func apply(p *domain.Product, u ProductUpdate) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.PriceCents != nil {
		p.PriceCents = *u.PriceCents
	}
	if u.Currency != nil {
		p.Currency = *u.Currency
	}
	if u.Inventory != nil {
		p.Inventory = *u.Inventory
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.ClothingSubcategory != nil {
		p.ClothingSubcategory = *u.ClothingSubcategory
	}
	if u.Photos != nil {
		p.Photos = append(domain.JSONList[string]{}, (*u.Photos)...)
	}
	if u.Tags != nil {
		p.Tags = append(domain.JSONList[string]{}, (*u.Tags)...)
	}
	if u.SearchKeywords != nil {
		p.SearchKeywords = append(domain.JSONList[string]{}, (*u.SearchKeywords)...)
	}
	if u.SourceNotes != nil {
		p.SourceNotes = *u.SourceNotes
	}
	if u.BuyPriceMaxCents != nil {
		p.BuyPriceMaxCents = *u.BuyPriceMaxCents
	}
}

// deleteImages removes stored images after an archive has committed. The
// archive stands even when the image store fails.
func (s *ProductService) deleteImages(ctx context.Context, ids []string) (deleted, failed int) {
	return deleteProductImages(ctx, s.Images, s.Metrics, logger(s.Log), ids)
}

func deleteProductImages(ctx context.Context, store images.Store, m *metrics.Metrics, log *zap.Logger, ids []string) (deleted, failed int) {
	if store == nil {
		return 0, 0
	}
	for _, id := range ids {
		n, err := store.DeleteProduct(ctx, id)
		deleted += n
		if err != nil {
			failed++
			log.Warn("images.delete.fail", zap.String("product_id", id), zap.Error(err))
		}
	}
	m.ImageDeleteFailed(failed)
	return deleted, failed
}

// CreateProduct inserts a manual listing. Without an explicit id the slug of
// the title is used, suffixed -2, -3, ... until free.
func (s *ProductService) CreateProduct(ctx context.Context, in NewProduct) (domain.Product, error) {
	title, ok := validate.Title(in.Title)
	if !ok {
		return domain.Product{}, domain.Invalid("title", "invalid title")
	}
	if in.Status == "" {
		in.Status = domain.StatusDraft
	}
	if in.Currency == "" {
		in.Currency = "usd"
	}
	u := ProductUpdate{
		Title: &title, PriceCents: &in.PriceCents, Currency: &in.Currency, Inventory: &in.Inventory,
		Status: &in.Status, BuyPriceMaxCents: &in.BuyPriceMaxCents,
	}
	if in.Category != "" || in.ClothingSubcategory != "" {
		u.Category, u.ClothingSubcategory = &in.Category, &in.ClothingSubcategory
	}
	if err := u.normalize(); err != nil {
		return domain.Product{}, err
	}
	explicit := strings.TrimSpace(in.ID) != ""
	base := validate.Slug(title)
	if explicit {
		id, ok := validate.ID(in.ID)
		if !ok {
			return domain.Product{}, domain.Invalid("id", "invalid id")
		}
		base = id
	}

	now := s.Clock.now()
	p := domain.Product{
		Status:           *u.Status,
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		PriceCents:       in.PriceCents,
		Currency:         *u.Currency,
		Inventory:        in.Inventory,
		Photos:           domain.JSONList[string]{},
		Tags:             append(domain.JSONList[string]{}, in.Tags...),
		SearchKeywords:   append(domain.JSONList[string]{}, in.SearchKeywords...),
		SourceNotes:      in.SourceNotes,
		BuyPriceMaxCents: in.BuyPriceMaxCents,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if u.Category != nil {
		p.Category, p.ClothingSubcategory = *u.Category, *u.ClothingSubcategory
		if err := classify(&p); err != nil {
			return domain.Product{}, err
		}
	}
	if p.Status == domain.StatusArchived {
		p.ArchivedAt = &now
	}

	err := repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		id, err := uniqueProductID(ctx, tx, s.Products, base, !explicit)
		if err != nil {
			return err
		}
		p.ID = id
		return s.Products.Insert(ctx, tx, p)
	})
	if err != nil {
		if _, ok := domain.AsError(err); ok {
			return domain.Product{}, err
		}
		return domain.Product{}, domain.StoreFailure("product.create", err)
	}
	return p, nil
}

// uniqueProductID returns base, or base-2, base-3, ... when suffix is allowed.
func uniqueProductID(ctx context.Context, tx *sqlx.Tx, products *repos.ProductRepo, base string, suffix bool) (string, error) {
	id := base
	for n := 2; ; n++ {
		exists, err := products.Exists(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		if !suffix {
			return "", &domain.Error{Kind: domain.KindConflict, Code: "duplicate_id", Field: "id", Message: "Product id already exists"}
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// AddPhoto stores an uploaded image and appends its URL to the product.
func (s *ProductService) AddPhoto(ctx context.Context, id, contentType string, r io.Reader) (domain.Product, error) {
	if s.Images == nil {
		return domain.Product{}, domain.Upstream("images", errors.New("image store is not configured"))
	}
	cur, err := s.Products.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.NotFound("Product not found")
	}
	if err != nil {
		return domain.Product{}, domain.StoreFailure("product.get", err)
	}
	if cur.Status == domain.StatusArchived {
		return domain.Product{}, archivedPhotoErr()
	}

	key, err := s.Images.Put(ctx, id, contentType, r)
	if err != nil {
		return domain.Product{}, domain.Upstream("images.put", err)
	}

	var p domain.Product
	err = repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		p, err = s.Products.Lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Status == domain.StatusArchived {
			return archivedPhotoErr()
		}
		p.Photos = append(p.Photos, images.URL(key))
		p.UpdatedAt = s.Clock.now()
		return s.Products.Update(ctx, tx, p)
	})
	if err != nil {
		s.discardUpload(ctx, id, key)
		if e, ok := domain.AsError(err); ok && e.Kind == domain.KindConflict {
			return domain.Product{}, err
		}
		return domain.Product{}, domain.StoreFailure("product.photo", err)
	}
	return p, nil
}

// discardUpload removes a blob whose URL never made it onto the product row.
func (s *ProductService) discardUpload(ctx context.Context, id, key string) {
	if err := s.Images.Delete(ctx, key); err != nil {
		s.Metrics.ImageDeleteFailed(1)
		logger(s.Log).Warn("product.photo.discard.fail",
			zap.String("product_id", id), zap.String("key", key), zap.Error(err))
	}
}

func archivedPhotoErr() *domain.Error {
	return &domain.Error{Kind: domain.KindConflict, Code: "archived", Message: "Archived products cannot take photos"}
}
