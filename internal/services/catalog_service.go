package services

import (
	"context"
	"database/sql"
	"errors"

	"sawtooth/internal/domain"
	"sawtooth/internal/repos"
)

type CatalogService struct {
	Products *repos.ProductRepo
}

func NewCatalogService(products *repos.ProductRepo) *CatalogService {
	return &CatalogService{Products: products}
}

func (s *CatalogService) ListActive(ctx context.Context) ([]domain.Product, error) {
	out, err := s.Products.ListActive(ctx)
	if err != nil {
		return nil, domain.StoreFailure("catalog.list", err)
	}
	return out, nil
}

// GetActive hides drafts and archived products behind NotFound.
func (s *CatalogService) GetActive(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.Products.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && p.Status != domain.StatusActive) {
		return domain.Product{}, domain.NotFound("Product not found")
	}
	if err != nil {
		return domain.Product{}, domain.StoreFailure("catalog.get", err)
	}
	return p, nil
}
