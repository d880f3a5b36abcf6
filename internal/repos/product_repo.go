package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"sawtooth/internal/domain"
)

const productCols = `id, status, title, description, price_cents, currency, category, clothing_subcategory,
    inventory, photos, tags, search_keywords, source_notes, buy_price_max_cents,
    sold_out_since, archived_at, created_at, updated_at`

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	return p, err
}

// GetMany reads every listed product in one statement. Unknown ids are absent
// from the result.
func (r *ProductRepo) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	return getMany(ctx, r.db, ids, "")
}

// ListActive returns the public catalog, newest first.
func (r *ProductRepo) ListActive(ctx context.Context) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
  SELECT `+productCols+`
  FROM products
  WHERE status = ?
  ORDER BY created_at DESC, id`), domain.StatusActive)
	return out, err
}

// List returns products for the admin view. An empty status lists everything.
func (r *ProductRepo) List(ctx context.Context, status string) ([]domain.Product, error) {
	out := []domain.Product{}
	q := `SELECT ` + productCols + ` FROM products`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY updated_at DESC, id`
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

// Lock reads one product and holds its row lock until tx ends.
func (r *ProductRepo) Lock(ctx context.Context, tx *sqlx.Tx, id string) (domain.Product, error) {
	var p domain.Product
	err := tx.GetContext(ctx, &p, tx.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`+forUpdate(tx)), id)
	return p, err
}

// LockMany locks the listed rows in id order so concurrent batches cannot
// deadlock against each other.
func (r *ProductRepo) LockMany(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]domain.Product, error) {
	return getMany(ctx, tx, ids, forUpdate(tx))
}

type rebindQueryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func getMany(ctx context.Context, q rebindQueryer, ids []string, suffix string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+productCols+` FROM products WHERE id IN (?) ORDER BY id`+suffix, ids)
	if err != nil {
		return nil, err
	}
	var rows []domain.Product
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepo) Exists(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM products WHERE id = ?`), id); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ProductRepo) Insert(ctx context.Context, tx *sqlx.Tx, p domain.Product) error {
	_, err := tx.NamedExecContext(ctx, `
  INSERT INTO products (`+productCols+`)
  VALUES (:id, :status, :title, :description, :price_cents, :currency, :category, :clothing_subcategory,
    :inventory, :photos, :tags, :search_keywords, :source_notes, :buy_price_max_cents,
    :sold_out_since, :archived_at, :created_at, :updated_at)`, p)
	return err
}

// Update writes every mutable column of p. Callers hold the row lock from
// Lock, so the row they read is the row they overwrite.
func (r *ProductRepo) Update(ctx context.Context, tx *sqlx.Tx, p domain.Product) error {
	_, err := tx.NamedExecContext(ctx, `
  UPDATE products SET
    status = :status, title = :title, description = :description,
    price_cents = :price_cents, currency = :currency,
    category = :category, clothing_subcategory = :clothing_subcategory,
    inventory = :inventory, photos = :photos, tags = :tags,
    search_keywords = :search_keywords, source_notes = :source_notes,
    buy_price_max_cents = :buy_price_max_cents,
    sold_out_since = :sold_out_since, archived_at = :archived_at, updated_at = :updated_at
  WHERE id = :id`, p)
	return err
}

// LockSoldOutBefore locks every unarchived product that has been sold out
// since cutoff or earlier.
func (r *ProductRepo) LockSoldOutBefore(ctx context.Context, tx *sqlx.Tx, cutoff time.Time) ([]domain.Product, error) {
	out := []domain.Product{}
	err := tx.SelectContext(ctx, &out, tx.Rebind(`
  SELECT `+productCols+`
  FROM products
  WHERE status <> ?
    AND inventory <= 0
    AND sold_out_since IS NOT NULL
    AND sold_out_since <= ?
  ORDER BY id`+forUpdate(tx)), domain.StatusArchived, Stamp(cutoff))
	return out, err
}

// ArchiveMany archives the listed products in one statement.
func (r *ProductRepo) ArchiveMany(ctx context.Context, tx *sqlx.Tx, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now = Stamp(now)
	query, args, err := sqlx.In(`
  UPDATE products
  SET status = ?, photos = '[]', archived_at = ?, updated_at = ?
  WHERE id IN (?)`, domain.StatusArchived, now, now, ids)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
