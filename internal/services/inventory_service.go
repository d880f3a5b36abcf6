package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sawtooth/internal/domain"
	"sawtooth/internal/metrics"
	"sawtooth/internal/repos"
	"sawtooth/internal/telemetry"
)

// InventoryService settles paid checkout sessions against the ledger.
type InventoryService struct {
	DB       *sqlx.DB
	Products *repos.ProductRepo
	Inv      *repos.InventoryRepo
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Clock    Clock
}

func NewInventoryService(db *sqlx.DB, products *repos.ProductRepo, inv *repos.InventoryRepo, m *metrics.Metrics) *InventoryService {
	return &InventoryService{DB: db, Products: products, Inv: inv, Metrics: m}
}

// mergeLines sums quantities per product and returns the ids sorted, which is
// also the lock order.
func mergeLines(items []domain.LineItem) (map[string]int, []string) {
	qty := make(map[string]int, len(items))
	for _, it := range items {
		qty[it.ProductID] += it.Qty
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return qty, ids
}

// ApplyInventoryForSession decrements stock for every line of a paid session,
// at most once per session id. A redelivered session commits with no effect.
// Lines naming unknown products are skipped and reported in Missing.
func (s *InventoryService) ApplyInventoryForSession(ctx context.Context, sessionID string, items []domain.LineItem) (res domain.SettlementResult, err error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return res, domain.Invalid("session_id", "missing session id")
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" || it.Qty < 1 {
			return res, domain.Invalid("items", "invalid line item")
		}
	}

	ctx, span := telemetry.Start(ctx, "inventory.settle", attribute.String("session_id", sessionID))
	defer func() { telemetry.End(span, err) }()

	started := time.Now()
	now := s.Clock.now()
	qty, ids := mergeLines(items)
	res = domain.SettlementResult{SessionID: sessionID, Adjusted: map[string]int{}}

	err = repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		claimed, err := s.Inv.ClaimSession(ctx, tx, sessionID, now)
		if err != nil || !claimed {
			return err
		}
		locked, err := s.Products.LockMany(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, ok := locked[id]
			if !ok {
				res.Missing = append(res.Missing, id)
				continue
			}
			next := max(0, p.Inventory-qty[id])
			soldOut := p.SoldOutSince
			if p.Inventory > 0 && next == 0 {
				soldOut = &now
			}
			if err := s.Inv.SetStock(ctx, tx, id, next, soldOut, now); err != nil {
				return err
			}
			res.Adjusted[id] = p.Inventory - next
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		s.Metrics.ObserveSettlement("failed", 0, time.Since(started))
		logger(s.Log).Error("inventory.settle.fail", zap.String("session_id", sessionID), zap.Error(err))
		return domain.SettlementResult{SessionID: sessionID}, domain.StoreFailure("settle", err)
	}

	if !res.Applied {
		res.Adjusted = nil
		s.Metrics.ObserveSettlement("duplicate", 0, time.Since(started))
		logger(s.Log).Info("inventory.settle.duplicate", zap.String("session_id", sessionID))
		return res, nil
	}
	s.Metrics.ObserveSettlement("applied", len(res.Missing), time.Since(started))
	if len(res.Missing) > 0 {
		logger(s.Log).Warn("inventory.settle.missing_products",
			zap.String("session_id", sessionID), zap.Strings("product_ids", res.Missing))
	}
	logger(s.Log).Info("inventory.settle", zap.String("session_id", sessionID), zap.Any("adjusted", res.Adjusted))
	return res, nil
}
