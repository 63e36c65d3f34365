package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

// RecordEntry persists an opened trade together with the debited portfolio in one transaction.
// insert selects between creating the trade row (direct execution) and updating it (promotion).
func (r *Repository) RecordEntry(ctx context.Context, p *domain.Portfolio, t *domain.Trade, insert bool) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if insert {
			err = r.insertTrade(ctx, tx, t)
		} else {
			err = r.updateTrade(ctx, tx, t)
		}
		if err != nil {
			return err
		}
		return r.updatePortfolio(ctx, tx, p)
	})
}

// RecordExit persists a closed trade together with the credited portfolio in one transaction.
func (r *Repository) RecordExit(ctx context.Context, p *domain.Portfolio, t *domain.Trade) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.updateTrade(ctx, tx, t); err != nil {
			return err
		}
		return r.updatePortfolio(ctx, tx, p)
	})
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ports.ErrDBConnection, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error(ctx, rbErr, "Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", ports.ErrUpdateFailed, err)
	}
	return nil
}
