package app

import (
	"context"
	"errors"
	"fmt"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
	"paperTrader/internal/pricing"
	"paperTrader/internal/risk"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CloseResult describes the outcome of a close attempt. Closed is false when the
// attempt was declined; Reason then says why.
type CloseResult struct {
	Closed    bool
	Reason    domain.RejectionReason
	Detail    string
	PriceTier pricing.Tier
	Trade     *domain.Trade
}

func declined(reason domain.RejectionReason, detail string, t *domain.Trade) *CloseResult {
	return &CloseResult{Reason: reason, Detail: detail, Trade: t}
}

// ClosePosition exits an OPEN trade at the latest available price.
// PENDING trades are declined with NotYetExecuted, CLOSED and CANCELLED ones with NotOpen.
// Nothing is recorded when no exit price can be found. An empty reason means MANUAL.
func (e *Engine) ClosePosition(ctx context.Context, tradeID string, reason domain.CloseReason) (*CloseResult, error) {
	op := "ClosePosition"
	if reason == "" {
		reason = domain.CloseReasonManual
	}
	if !reason.Valid() {
		return nil, fmt.Errorf("%s: %w: close reason %q", op, ports.ErrInvalidRequest, reason)
	}
	t, err := e.findTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(t.PortfolioID)
	defer unlock()

	// Re-read under the lock; a sweep may have moved the trade meanwhile.
	if t, err = e.findTrade(ctx, tradeID); err != nil {
		return nil, err
	}
	switch t.Status {
	case domain.StatusOpen:
	case domain.StatusPending:
		return declined(domain.ReasonNotYetExecuted, fmt.Sprintf("trade %s has no entry yet", t.ID), t), nil
	default:
		return declined(domain.ReasonNotOpen, fmt.Sprintf("trade %s is %s", t.ID, t.Status), t), nil
	}

	p, err := e.loadPortfolio(ctx, t.PortfolioID)
	if err != nil {
		return nil, err
	}

	res, err := e.closeLocked(ctx, p, t, reason)
	if err != nil {
		return nil, err
	}
	if res.Closed {
		e.recomputeAfter(ctx, op, p)
	}
	return res, nil
}

func (e *Engine) findTrade(ctx context.Context, id string) (*domain.Trade, error) {
	t, err := e.trades.FindTradeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("trade %s: %w", id, ports.ErrNotFound)
	}
	return t, nil
}

// closeLocked prices, settles and persists the exit of an OPEN trade.
// It expects the portfolio lock to be held.
func (e *Engine) closeLocked(ctx context.Context, p *domain.Portfolio, t *domain.Trade, reason domain.CloseReason) (*CloseResult, error) {
	op := "ClosePosition"
	fields := map[string]interface{}{"portfolioID": p.ID, "tradeID": t.ID, "ticker": t.Ticker, "reason": string(reason)}

	now := e.clock()
	quote, ok := e.prices.Resolve(ctx, t.Ticker, now, domain.Latest)
	if !ok {
		e.logger.Warn(ctx, op+": Exit price unavailable, position stays open", fields)
		return declined(domain.ReasonPriceUnavailable, fmt.Sprintf("no exit price for %s", t.Ticker), t), nil
	}

	exit := e.settle(t, quote.Price)
	exit.Date = domain.Day(now)
	exit.Reason = reason
	credit := exit.Value.Sub(exit.Commission)

	pBackup, tBackup := *p, copyTrade(t)
	t.Exit = exit
	t.Status = domain.StatusClosed
	t.UpdatedAt = now
	p.Credit(credit)
	p.RecordResult(exit.RealizedPnL)
	p.UpdatedAt = now

	if err := e.ledger.RecordExit(ctx, p, t); err != nil {
		*p, *t = pBackup, tBackup
		e.logger.Error(ctx, err, op+": Failed to record exit", fields)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.logger.Info(ctx, op+": Position closed", withFields(fields, map[string]interface{}{
		"exitPrice":   exit.Price.String(),
		"realizedPnL": exit.RealizedPnL.StringFixed(2),
		"pnlPct":      exit.RealizedPnLPct.StringFixed(2),
		"cash":        p.CurrentCash.StringFixed(2),
		"priceTier":   string(quote.Tier),
	}))
	return &CloseResult{Closed: true, PriceTier: quote.Tier, Trade: t}, nil
}

// settle computes the exit economics of t at price. Both legs pay the flat commission.
func (e *Engine) settle(t *domain.Trade, price decimal.Decimal) *domain.Exit {
	entry := t.Entry
	exitComm := e.cfg.CommissionPerLeg
	pnl := t.GrossPnL(price).Sub(entry.Commission).Sub(exitComm)

	exit := &domain.Exit{
		Price:       price,
		Value:       price.Mul(decimal.NewFromInt(entry.Shares)),
		Commission:  exitComm,
		RealizedPnL: pnl,
	}
	if entry.Value.IsPositive() {
		exit.RealizedPnLPct = pnl.Div(entry.Value).Mul(hundred).Round(4)
	}
	if entry.Price.IsPositive() {
		move := price.Sub(entry.Price).Div(entry.Price).Mul(hundred)
		if t.Direction == domain.Short {
			move = move.Neg()
		}
		exit.ActualReturnPct = move.Round(4)
	}
	return exit
}

// CloseExpiredPositions closes every OPEN trade whose hold period has elapsed.
// A trade is due once now >= entry date + hold days. Positions that cannot be priced
// stay open and are retried on the next run.
func (e *Engine) CloseExpiredPositions(ctx context.Context, portfolioID string) (int, error) {
	op := "CloseExpiredPositions"
	unlock := e.locks.lock(portfolioID)
	defer unlock()

	p, err := e.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return 0, err
	}
	closed, err := e.expireLocked(ctx, p)
	if closed > 0 {
		e.recomputeAfter(ctx, op, p)
	}
	return closed, err
}

// expireLocked expects the portfolio lock to be held.
func (e *Engine) expireLocked(ctx context.Context, p *domain.Portfolio) (int, error) {
	op := "CloseExpiredPositions"
	open, err := e.trades.FindByStatus(ctx, p.ID, domain.StatusOpen)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	now := e.clock()
	closed := 0
	var errs []error
	for _, t := range open {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		t.Metadata, _ = risk.NormalizeMetadata(t.Metadata)
		if now.Before(t.ExpiresAt(e.cfg.HoldPeriodDays)) {
			continue
		}
		res, err := e.closeLocked(ctx, p, t, domain.CloseReasonHoldPeriodComplete)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.Closed {
			closed++
		}
	}
	return closed, errors.Join(errs...)
}
