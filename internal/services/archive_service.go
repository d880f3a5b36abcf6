package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sawtooth/internal/domain"
	"sawtooth/internal/images"
	"sawtooth/internal/metrics"
	"sawtooth/internal/repos"
	"sawtooth/internal/telemetry"
)

// ArchiveService retires products that have sat sold out for longer than
// domain.SoldOutRetention.
type ArchiveService struct {
	DB       *sqlx.DB
	Products *repos.ProductRepo
	Images   images.Store
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Clock    Clock
}

func NewArchiveService(db *sqlx.DB, products *repos.ProductRepo, store images.Store, m *metrics.Metrics) *ArchiveService {
	return &ArchiveService{DB: db, Products: products, Images: store, Metrics: m}
}

// SweepSoldOut archives every unarchived product whose sold_out_since is at or
// before now minus the retention window. Image cleanup happens after commit.
func (s *ArchiveService) SweepSoldOut(ctx context.Context, now time.Time) (res domain.SweepResult, err error) {
	now = repos.Stamp(now)
	cutoff := now.Add(-domain.SoldOutRetention)
	ctx, span := telemetry.Start(ctx, "archive.sweep", attribute.String("cutoff", cutoff.Format(time.RFC3339)))
	defer func() { telemetry.End(span, err) }()
	log := logger(s.Log)

	var ids []string
	err = repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		stale, err := s.Products.LockSoldOutBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(stale))
		for _, p := range stale {
			ids = append(ids, p.ID)
		}
		_, err = s.Products.ArchiveMany(ctx, tx, ids, now)
		return err
	})
	if err != nil {
		s.Metrics.Sweep("error")
		log.Error("archive.sweep.fail", zap.Error(err))
		return domain.SweepResult{}, domain.StoreFailure("archive.sweep", err)
	}

	res.Archived = len(ids)
	res.ProductIDs = ids
	if len(ids) > 0 {
		s.Metrics.Archived("sweep", len(ids))
		res.ImagesDeleted, res.ImageFailures = deleteProductImages(ctx, s.Images, s.Metrics, log, ids)
	}
	s.Metrics.Sweep("ok")
	log.Info("archive.sweep",
		zap.Int("archived", res.Archived),
		zap.Int("images_deleted", res.ImagesDeleted),
		zap.Int("image_failures", res.ImageFailures),
		zap.Time("cutoff", cutoff))
	return res, nil
}

// RunSweep is the scheduler entry point.
func (s *ArchiveService) RunSweep(ctx context.Context) (domain.SweepResult, error) {
	return s.SweepSoldOut(ctx, s.Clock.now())
}

// RunEvery sweeps once per interval until ctx is done. Failures are logged and
// the loop keeps going.
func (s *ArchiveService) RunEvery(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = s.RunSweep(ctx)
		}
	}
}
