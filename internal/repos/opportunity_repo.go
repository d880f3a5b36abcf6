package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"sawtooth/internal/domain"
)

const opportunityCols = `opp_id, category, title, max_buy_price_cents, suggested_price_cents, expected_margin_pct,
    search_keywords, buy_links, local_pickup, condition_checklist, notes, created_at`

type OpportunityRepo struct{ db *sqlx.DB }

func NewOpportunityRepo(db *sqlx.DB) *OpportunityRepo { return &OpportunityRepo{db: db} }

// Oldest returns up to limit queued opportunities, oldest first.
func (r *OpportunityRepo) Oldest(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	out := []domain.Opportunity{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
  SELECT `+opportunityCols+`
  FROM ai_opportunities
  ORDER BY created_at ASC, opp_id
  LIMIT ?`), limit)
	return out, err
}

func (r *OpportunityRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ai_opportunities`)
	return n, err
}

// Insert ignores an id that is already queued.
func (r *OpportunityRepo) Insert(ctx context.Context, o domain.Opportunity) error {
	o.CreatedAt = Stamp(o.CreatedAt)
	_, err := r.db.NamedExecContext(ctx, `
  INSERT INTO ai_opportunities (`+opportunityCols+`)
  VALUES (:opp_id, :category, :title, :max_buy_price_cents, :suggested_price_cents, :expected_margin_pct,
    :search_keywords, :buy_links, :local_pickup, :condition_checklist, :notes, :created_at)
  ON CONFLICT(opp_id) DO NOTHING`, o)
	return err
}

func (r *OpportunityRepo) Lock(ctx context.Context, tx *sqlx.Tx, id string) (domain.Opportunity, error) {
	var o domain.Opportunity
	err := tx.GetContext(ctx, &o, tx.Rebind(`SELECT `+opportunityCols+` FROM ai_opportunities WHERE opp_id = ?`+forUpdate(tx)), id)
	return o, err
}

// Delete removes an opportunity inside tx and reports whether it existed.
func (r *OpportunityRepo) Delete(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM ai_opportunities WHERE opp_id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
