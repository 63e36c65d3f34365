package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

const tradeColumns = `
	id, portfolio_id, signal_id, ticker, document_ref, direction, status,
	predicted_return_pct, confidence, target_date,
	entry_date, entry_price, shares, entry_value, entry_commission,
	exit_date, exit_price, exit_value, exit_commission,
	realized_pnl, realized_pnl_pct, actual_return_pct, close_reason,
	cancel_reason, metadata, created_at, updated_at`

// tradeRow flattens the optional entry and exit into nullable columns.
type tradeRow struct {
	entryDate, exitDate                          sql.NullString
	entryPrice, entryValue, entryCommission      decimal.NullDecimal
	shares                                       sql.NullInt64
	exitPrice, exitValue, exitCommission         decimal.NullDecimal
	realizedPnL, realizedPnLPct, actualReturnPct decimal.NullDecimal
	closeReason                                  sql.NullString
	metadata                                     []byte
}

func toRow(t *domain.Trade) (tradeRow, error) {
	var row tradeRow
	if e := t.Entry; e != nil {
		row.entryDate = nullTime(e.Date)
		row.entryPrice = decimal.NewNullDecimal(e.Price)
		row.shares = sql.NullInt64{Int64: e.Shares, Valid: true}
		row.entryValue = decimal.NewNullDecimal(e.Value)
		row.entryCommission = decimal.NewNullDecimal(e.Commission)
	}
	if x := t.Exit; x != nil {
		row.exitDate = nullTime(x.Date)
		row.exitPrice = decimal.NewNullDecimal(x.Price)
		row.exitValue = decimal.NewNullDecimal(x.Value)
		row.exitCommission = decimal.NewNullDecimal(x.Commission)
		row.realizedPnL = decimal.NewNullDecimal(x.RealizedPnL)
		row.realizedPnLPct = decimal.NewNullDecimal(x.RealizedPnLPct)
		row.actualReturnPct = decimal.NewNullDecimal(x.ActualReturnPct)
		row.closeReason = sql.NullString{String: string(x.Reason), Valid: true}
	}
	meta, err := msgpack.Marshal(t.Metadata)
	if err != nil {
		return row, fmt.Errorf("failed to encode metadata for trade %s: %w", t.ID, err)
	}
	row.metadata = meta
	return row, nil
}

// CreateTrade saves a new trade.
func (r *Repository) CreateTrade(ctx context.Context, t *domain.Trade) error {
	return r.insertTrade(ctx, r.db, t)
}

func (r *Repository) insertTrade(ctx context.Context, db execer, t *domain.Trade) error {
	const query = `
	INSERT INTO trades (` + tradeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	row, err := toRow(t)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query,
		t.ID, t.PortfolioID, t.SignalID, t.Ticker, t.DocumentRef, string(t.Direction), string(t.Status),
		t.PredictedReturnPct, t.Confidence, formatTime(t.TargetDate),
		row.entryDate, row.entryPrice, row.shares, row.entryValue, row.entryCommission,
		row.exitDate, row.exitPrice, row.exitValue, row.exitCommission,
		row.realizedPnL, row.realizedPnLPct, row.actualReturnPct, row.closeReason,
		string(t.CancelReason), row.metadata, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: active trade for %s in portfolio %s: %w", ports.ErrDuplicateEntry, t.Ticker, t.PortfolioID, err)
		}
		return fmt.Errorf("%w: failed to insert trade %s: %w", ports.ErrUpdateFailed, t.ID, err)
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": t.ID, "ticker": t.Ticker, "status": t.Status})
	return nil
}

// UpdateTrade overwrites status, entry, exit and cancel fields of a trade.
func (r *Repository) UpdateTrade(ctx context.Context, t *domain.Trade) error {
	return r.updateTrade(ctx, r.db, t)
}

func (r *Repository) updateTrade(ctx context.Context, db execer, t *domain.Trade) error {
	const query = `
	UPDATE trades
	SET status = ?, entry_date = ?, entry_price = ?, shares = ?, entry_value = ?, entry_commission = ?,
	    exit_date = ?, exit_price = ?, exit_value = ?, exit_commission = ?,
	    realized_pnl = ?, realized_pnl_pct = ?, actual_return_pct = ?, close_reason = ?,
	    cancel_reason = ?, metadata = ?, updated_at = ?
	WHERE id = ?`

	row, err := toRow(t)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, query,
		string(t.Status), row.entryDate, row.entryPrice, row.shares, row.entryValue, row.entryCommission,
		row.exitDate, row.exitPrice, row.exitValue, row.exitCommission,
		row.realizedPnL, row.realizedPnLPct, row.actualReturnPct, row.closeReason,
		string(t.CancelReason), row.metadata, formatTime(t.UpdatedAt),
		t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: active trade for %s in portfolio %s: %w", ports.ErrDuplicateEntry, t.Ticker, t.PortfolioID, err)
		}
		return fmt.Errorf("%w: failed to update trade %s: %w", ports.ErrUpdateFailed, t.ID, err)
	}
	if err := requireAffected(res, "trade", t.ID); err != nil {
		return err
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": t.ID, "ticker": t.Ticker, "status": t.Status})
	return nil
}

// FindTradeByID retrieves a trade by ID. Returns nil, nil if absent.
func (r *Repository) FindTradeByID(ctx context.Context, id string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`
	return r.queryOneTrade(ctx, query, id)
}

// FindActiveByTicker returns the PENDING or OPEN trade for ticker, or nil, nil.
func (r *Repository) FindActiveByTicker(ctx context.Context, portfolioID, ticker string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
	WHERE portfolio_id = ? AND ticker = ? AND status IN (?, ?)
	LIMIT 1`
	return r.queryOneTrade(ctx, query, portfolioID, ticker, string(domain.StatusPending), string(domain.StatusOpen))
}

// FindByStatus lists a portfolio's trades in status, oldest first.
func (r *Repository) FindByStatus(ctx context.Context, portfolioID string, status domain.TradeStatus) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
	WHERE portfolio_id = ? AND status = ?
	ORDER BY created_at ASC, id ASC`
	return r.queryTrades(ctx, query, portfolioID, string(status))
}

// FindRecentClosed lists closed trades, most recent exit first.
func (r *Repository) FindRecentClosed(ctx context.Context, portfolioID string, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
	WHERE portfolio_id = ? AND status = ?
	ORDER BY exit_date DESC, id DESC
	LIMIT ?`
	return r.queryTrades(ctx, query, portfolioID, string(domain.StatusClosed), limit)
}

// SumRealizedPnL sums realized P&L over all closed trades. Summed in Go to keep decimal precision.
func (r *Repository) SumRealizedPnL(ctx context.Context, portfolioID string) (decimal.Decimal, error) {
	const query = `SELECT realized_pnl FROM trades WHERE portfolio_id = ? AND status = ? AND realized_pnl IS NOT NULL`

	rows, err := r.db.QueryContext(ctx, query, portfolioID, string(domain.StatusClosed))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to query realized pnl for %s: %w", ports.ErrQueryFailed, portfolioID, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var pnl decimal.Decimal
		if err := rows.Scan(&pnl); err != nil {
			return decimal.Zero, fmt.Errorf("%w: failed to scan realized pnl: %w", ports.ErrQueryFailed, err)
		}
		total = total.Add(pnl)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: error iterating realized pnl rows: %w", ports.ErrQueryFailed, err)
	}
	return total, nil
}

func (r *Repository) queryOneTrade(ctx context.Context, query string, args ...interface{}) (*domain.Trade, error) {
	t, err := scanTrade(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query trade: %w", ports.ErrQueryFailed, err)
	}
	return t, nil
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trades: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade: %w", ports.ErrQueryFailed, err)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating trade rows: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var row tradeRow
	var direction, status, cancelReason, targetDate, createdAt, updatedAt string
	err := s.Scan(
		&t.ID, &t.PortfolioID, &t.SignalID, &t.Ticker, &t.DocumentRef, &direction, &status,
		&t.PredictedReturnPct, &t.Confidence, &targetDate,
		&row.entryDate, &row.entryPrice, &row.shares, &row.entryValue, &row.entryCommission,
		&row.exitDate, &row.exitPrice, &row.exitValue, &row.exitCommission,
		&row.realizedPnL, &row.realizedPnLPct, &row.actualReturnPct, &row.closeReason,
		&cancelReason, &row.metadata, &createdAt, &updatedAt)
	if err != nil {
		return nil, err // sql.ErrNoRows is handled by the caller
	}
	t.Direction = domain.Direction(direction)
	t.Status = domain.TradeStatus(status)
	t.CancelReason = domain.RejectionReason(cancelReason)

	if t.TargetDate, err = parseTime(targetDate); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	if row.entryPrice.Valid {
		t.Entry = &domain.Entry{
			Price:      row.entryPrice.Decimal,
			Shares:     row.shares.Int64,
			Value:      row.entryValue.Decimal,
			Commission: row.entryCommission.Decimal,
		}
		if t.Entry.Date, err = parseTime(row.entryDate.String); err != nil {
			return nil, err
		}
	}
	if row.exitPrice.Valid {
		t.Exit = &domain.Exit{
			Price:           row.exitPrice.Decimal,
			Value:           row.exitValue.Decimal,
			Commission:      row.exitCommission.Decimal,
			RealizedPnL:     row.realizedPnL.Decimal,
			RealizedPnLPct:  row.realizedPnLPct.Decimal,
			ActualReturnPct: row.actualReturnPct.Decimal,
			Reason:          domain.CloseReasonUnknown,
		}
		if row.closeReason.Valid {
			t.Exit.Reason = domain.CloseReason(row.closeReason.String)
		}
		if t.Exit.Date, err = parseTime(row.exitDate.String); err != nil {
			return nil, err
		}
	}

	if len(row.metadata) > 0 {
		if err := msgpack.Unmarshal(row.metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for trade %s: %w", t.ID, err)
		}
	}
	return t, nil
}
