package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// WithTx runs fn inside a transaction and commits when fn returns nil.
// fn must use tx for every statement: on SQLite the pool holds a single
// connection, so a query through db while the transaction is open blocks.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
