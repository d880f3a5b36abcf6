package repos

import (
	"context"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sawtooth/internal/domain"
	applog "sawtooth/internal/log"
)

const (
	driverPostgres = "pgx"
	driverSQLite   = "sqlite"
)

// OpenDB connects to Postgres when dsn is a postgres URL and to SQLite
// otherwise, then makes sure the schema exists.
func OpenDB(dsn string) (*sqlx.DB, error) {
	driver, conn := driverSQLite, sqliteDSN(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, conn = driverPostgres, dsn
	}
	db, err := sqlx.Open(driver, conn)
	if err != nil {
		return nil, err
	}
	if driver == driverSQLite {
		// One connection: SQLite has no row locks, so writers are serialized
		// here and a :memory: database stays shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate&_time_format=sqlite"
}

func isPostgres(q interface{ DriverName() string }) bool {
	return q.DriverName() == driverPostgres
}

// forUpdate returns the row-lock suffix for the connection's dialect. SQLite
// relies on the single writer connection instead.
func forUpdate(q interface{ DriverName() string }) string {
	if isPostgres(q) {
		return " FOR UPDATE"
	}
	return ""
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','active','archived')),
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL DEFAULT 0 CHECK (price_cents >= 0),
  currency TEXT NOT NULL DEFAULT 'usd',
  category TEXT NOT NULL DEFAULT '',
  clothing_subcategory TEXT NOT NULL DEFAULT '',
  inventory INTEGER NOT NULL DEFAULT 0 CHECK (inventory >= 0),
  photos TEXT NOT NULL DEFAULT '[]',
  tags TEXT NOT NULL DEFAULT '[]',
  search_keywords TEXT NOT NULL DEFAULT '[]',
  source_notes TEXT NOT NULL DEFAULT '',
  buy_price_max_cents INTEGER NOT NULL DEFAULT 0 CHECK (buy_price_max_cents >= 0),
  sold_out_since TIMESTAMP NULL,
  archived_at TIMESTAMP NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_products_status ON products(status)`,
	`CREATE INDEX IF NOT EXISTS idx_products_sold_out ON products(sold_out_since)`,
	`CREATE TABLE IF NOT EXISTS processed_payment_sessions(
  session_id TEXT PRIMARY KEY,
  processed_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ai_opportunities(
  opp_id TEXT PRIMARY KEY,
  category TEXT NOT NULL,
  title TEXT NOT NULL,
  max_buy_price_cents INTEGER NOT NULL DEFAULT 0,
  suggested_price_cents INTEGER NOT NULL DEFAULT 0,
  expected_margin_pct INTEGER NOT NULL DEFAULT 0,
  search_keywords TEXT NOT NULL DEFAULT '[]',
  buy_links TEXT NOT NULL DEFAULT '[]',
  local_pickup TEXT NOT NULL DEFAULT '[]',
  condition_checklist TEXT NOT NULL DEFAULT '[]',
  notes TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_opportunities_created ON ai_opportunities(created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','active','archived')),
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price_cents BIGINT NOT NULL DEFAULT 0 CHECK (price_cents >= 0),
  currency TEXT NOT NULL DEFAULT 'usd',
  category TEXT NOT NULL DEFAULT '',
  clothing_subcategory TEXT NOT NULL DEFAULT '',
  inventory INTEGER NOT NULL DEFAULT 0 CHECK (inventory >= 0),
  photos TEXT NOT NULL DEFAULT '[]',
  tags TEXT NOT NULL DEFAULT '[]',
  search_keywords TEXT NOT NULL DEFAULT '[]',
  source_notes TEXT NOT NULL DEFAULT '',
  buy_price_max_cents BIGINT NOT NULL DEFAULT 0 CHECK (buy_price_max_cents >= 0),
  sold_out_since TIMESTAMPTZ NULL,
  archived_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS category TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS clothing_subcategory TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS sold_out_since TIMESTAMPTZ NULL`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS archived_at TIMESTAMPTZ NULL`,
	`CREATE INDEX IF NOT EXISTS idx_products_status ON products(status)`,
	`CREATE INDEX IF NOT EXISTS idx_products_sold_out ON products(sold_out_since) WHERE sold_out_since IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS processed_payment_sessions(
  session_id TEXT PRIMARY KEY,
  processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS ai_opportunities(
  opp_id TEXT PRIMARY KEY,
  category TEXT NOT NULL,
  title TEXT NOT NULL,
  max_buy_price_cents BIGINT NOT NULL DEFAULT 0,
  suggested_price_cents BIGINT NOT NULL DEFAULT 0,
  expected_margin_pct INTEGER NOT NULL DEFAULT 0,
  search_keywords TEXT NOT NULL DEFAULT '[]',
  buy_links TEXT NOT NULL DEFAULT '[]',
  local_pickup TEXT NOT NULL DEFAULT '[]',
  condition_checklist TEXT NOT NULL DEFAULT '[]',
  notes TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_opportunities_created ON ai_opportunities(created_at)`,
}

// EnsureSchema creates missing tables and columns. Safe to run on every start.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	stmts := sqliteSchema
	if isPostgres(db) {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// SeedIfEmpty inserts a small demo catalog when the products table is empty.
func SeedIfEmpty(ctx context.Context, db *sqlx.DB, now time.Time) error {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	applog.Logger().Info("seed.products", zap.Int("count", len(demoProducts)))

	now = Stamp(now)
	products := NewProductRepo(db)
	return WithTx(ctx, db, func(tx *sqlx.Tx) error {
		for _, p := range demoProducts {
			p.CreatedAt, p.UpdatedAt = now, now
			if err := products.Insert(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

var demoProducts = []domain.Product{
	{ID: "nike-air-max-90", Status: domain.StatusActive, Title: "Nike Air Max 90", Description: "Gently worn, men's 10.", PriceCents: 8900, Currency: "usd", Category: domain.CategoryShoes, Inventory: 1},
	{ID: "levis-501-vintage", Status: domain.StatusActive, Title: "Levi's 501 vintage wash", Description: "32x30, classic fade.", PriceCents: 5200, Currency: "usd", Category: domain.CategoryClothes, ClothingSubcategory: "mens", Inventory: 2},
	{ID: "mid-century-side-table", Status: domain.StatusDraft, Title: "Mid-century side table", Description: "Walnut veneer, local pickup.", PriceCents: 12000, Currency: "usd", Category: domain.CategoryFurniture, Inventory: 1},
}

// Stamp normalizes a time for storage: UTC, whole seconds. SQLite compares
// timestamps as text, so every write must use the same precision and zone.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
