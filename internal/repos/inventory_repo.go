package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// InventoryRepo owns the settlement side of the ledger: stock counts and the
// processed-session witnesses that guard them.
type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// ClaimSession records sessionID as processed. It reports false when the
// session was already claimed. A concurrent claim of the same id blocks on the
// primary key until the first transaction ends.
func (r *InventoryRepo) ClaimSession(ctx context.Context, tx *sqlx.Tx, sessionID string, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO processed_payment_sessions(session_id, processed_at)
		VALUES (?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`), sessionID, Stamp(now))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Processed reports whether a session has already been settled.
func (r *InventoryRepo) Processed(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`
		SELECT COUNT(*) FROM processed_payment_sessions WHERE session_id = ?
	`), sessionID)
	return n > 0, err
}

// SetStock writes a new inventory count and sold-out marker for a locked row.
func (r *InventoryRepo) SetStock(ctx context.Context, tx *sqlx.Tx, productID string, qty int, soldOutSince *time.Time, now time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE products
		SET inventory = ?, sold_out_since = ?, updated_at = ?
		WHERE id = ?
	`), qty, soldOutSince, Stamp(now), productID)
	return err
}
