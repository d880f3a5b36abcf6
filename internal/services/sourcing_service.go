package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sawtooth/internal/domain"
	"sawtooth/internal/repos"
	"sawtooth/internal/sourcing"
	"sawtooth/internal/validate"
)

// QueueSize is how many opportunities the admin queue holds at minimum.
const QueueSize = 3

const draftTag = "ai-draft"

type SourcingService struct {
	DB        *sqlx.DB
	Opps      *repos.OpportunityRepo
	Products  *repos.ProductRepo
	Generator sourcing.Generator
	Log       *zap.Logger
	Clock     Clock
}

func NewSourcingService(db *sqlx.DB, opps *repos.OpportunityRepo, products *repos.ProductRepo, gen sourcing.Generator) *SourcingService {
	if gen == nil {
		gen = sourcing.FallbackGenerator{}
	}
	return &SourcingService{DB: db, Opps: opps, Products: products, Generator: gen}
}

// Ensure tops the queue up to min entries and returns the oldest min. A
// failing generator falls back to the seed list.
func (s *SourcingService) Ensure(ctx context.Context, min int) ([]domain.Opportunity, error) {
	n, err := s.Opps.Count(ctx)
	if err != nil {
		return nil, domain.StoreFailure("opportunities.count", err)
	}
	if n < min {
		need := min - n
		raws, err := s.Generator.Generate(ctx, need)
		if err != nil || len(raws) == 0 {
			if err != nil {
				logger(s.Log).Warn("sourcing.generate.fallback", zap.Error(err))
			}
			raws = sourcing.Fallback(need)
		}
		now := s.Clock.now()
		for _, raw := range raws {
			if err := s.Opps.Insert(ctx, sourcing.Normalize(raw, now)); err != nil {
				return nil, domain.StoreFailure("opportunities.insert", err)
			}
		}
	}
	out, err := s.Opps.Oldest(ctx, min)
	if err != nil {
		return nil, domain.StoreFailure("opportunities.list", err)
	}
	return out, nil
}

// Accept turns an opportunity into a draft product in one transaction.
func (s *SourcingService) Accept(ctx context.Context, oppID string) (domain.Product, error) {
	oppID = strings.TrimSpace(oppID)
	if oppID == "" {
		return domain.Product{}, domain.Invalid("opp_id", "Missing opp_id")
	}
	now := s.Clock.now()
	var p domain.Product
	err := repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		opp, err := s.Opps.Lock(ctx, tx, oppID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("Opportunity not found")
		}
		if err != nil {
			return err
		}
		if _, err := s.Opps.Delete(ctx, tx, oppID); err != nil {
			return err
		}
		id, err := uniqueProductID(ctx, tx, s.Products, validate.Slug(opp.Title), true)
		if err != nil {
			return err
		}
		p = draftFrom(opp, id, now)
		return s.Products.Insert(ctx, tx, p)
	})
	if err != nil {
		if _, ok := domain.AsError(err); ok {
			return domain.Product{}, err
		}
		return domain.Product{}, domain.StoreFailure("opportunities.accept", err)
	}
	logger(s.Log).Info("sourcing.accept", zap.String("opp_id", oppID), zap.String("product_id", p.ID))
	return p, nil
}

func draftFrom(o domain.Opportunity, id string, now time.Time) domain.Product {
	var category string
	if o.Category == domain.CategoryShoes {
		category = domain.CategoryShoes
	}
	return domain.Product{
		ID:     id,
		Status: domain.StatusDraft,
		Title:  o.Title,
		Description: fmt.Sprintf("AI draft listing for %s. Keywords: %s. Condition checklist: %s.",
			o.Title, strings.Join(o.SearchKeywords, ", "), strings.Join(o.ConditionChecklist, "; ")),
		PriceCents:       o.SuggestedPriceCents,
		Currency:         "usd",
		Category:         category,
		Inventory:        1,
		Photos:           domain.JSONList[string]{},
		Tags:             domain.JSONList[string]{draftTag},
		SearchKeywords:   append(domain.JSONList[string]{}, o.SearchKeywords...),
		SourceNotes:      o.Notes,
		BuyPriceMaxCents: o.MaxBuyPriceCents,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Decline drops an opportunity from the queue.
func (s *SourcingService) Decline(ctx context.Context, oppID string) error {
	oppID = strings.TrimSpace(oppID)
	if oppID == "" {
		return domain.Invalid("opp_id", "Missing opp_id")
	}
	var found bool
	err := repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		var err error
		found, err = s.Opps.Delete(ctx, tx, oppID)
		return err
	})
	if err != nil {
		return domain.StoreFailure("opportunities.decline", err)
	}
	if !found {
		return domain.NotFound("Opportunity not found")
	}
	return nil
}
