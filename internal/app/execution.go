package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
	"paperTrader/internal/pricing"
	"paperTrader/internal/risk"
)

// Evaluation is the admission verdict for a signal, computed without side effects.
type Evaluation struct {
	risk.Decision
	TargetDate time.Time `json:"targetDate"`
}

// ExecutionResult describes what ExecuteTrade did with a signal.
// Status is empty when the signal was rejected; Reason then says why.
type ExecutionResult struct {
	TradeID   string
	Status    domain.TradeStatus
	Reason    domain.RejectionReason
	Detail    string
	PriceTier pricing.Tier
	Trade     *domain.Trade
	Sizing    *risk.Sizing
}

// Rejected reports whether no trade was created.
func (r *ExecutionResult) Rejected() bool {
	return r.Status == ""
}

func rejected(d risk.Decision) *ExecutionResult {
	return &ExecutionResult{Reason: d.Reason, Detail: d.Detail}
}

// PromotionResult counts what a pending sweep did for one portfolio.
type PromotionResult struct {
	Promoted     int
	Cancelled    int
	StillPending int
	Failed       int
}

// EvaluateSignal runs the admission rules against the current portfolio state.
// Nothing is persisted.
func (e *Engine) EvaluateSignal(ctx context.Context, sig domain.Signal) (Evaluation, error) {
	if err := e.gate.ValidateSignal(&sig); err != nil {
		return Evaluation{}, err
	}
	p, err := e.loadPortfolio(ctx, sig.PortfolioID)
	if err != nil {
		return Evaluation{}, err
	}
	d, err := e.gate.Admit(ctx, sig, p)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Decision: d, TargetDate: pricing.NextTradingDay(sig.OriginDate)}, nil
}

// ExecuteTrade admits, sizes and fills a signal at the next trading day's open.
// When no entry price is available the trade is recorded as PENDING without moving cash.
// Policy and funding rejections are reported in the result; only store failures and
// malformed signals are returned as errors.
func (e *Engine) ExecuteTrade(ctx context.Context, sig domain.Signal) (*ExecutionResult, error) {
	op := "ExecuteTrade"
	if err := e.gate.ValidateSignal(&sig); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(sig.PortfolioID)
	defer unlock()

	p, err := e.loadPortfolio(ctx, sig.PortfolioID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"portfolioID": p.ID,
		"signalID":    sig.ID,
		"ticker":      sig.Ticker,
		"direction":   string(sig.Direction),
	}

	decision, err := e.gate.Admit(ctx, sig, p)
	if err != nil {
		e.logger.Error(ctx, err, op+": Admission check failed", fields)
		return nil, err
	}
	if !decision.Accepted {
		e.logger.Info(ctx, op+": Signal rejected", withFields(fields, map[string]interface{}{
			"reason": string(decision.Reason), "detail": decision.Detail,
		}))
		return rejected(decision), nil
	}

	now := e.clock()
	target := pricing.NextTradingDay(sig.OriginDate)
	trade := domain.NewTradeFromSignal(sig, target, now)

	quote, ok := e.prices.Resolve(ctx, sig.Ticker, target, domain.AtOpen)
	if !ok {
		return e.recordPending(ctx, p, trade, fields)
	}

	sz := e.sizer.Size(sig.Confidence, sig.PredictedReturnPct, p, quote.Price)
	if d := e.gate.CheckAllocation(sz); !d.Accepted {
		e.logger.Info(ctx, op+": Signal rejected", withFields(fields, map[string]interface{}{"reason": string(d.Reason), "detail": d.Detail}))
		return rejected(d), nil
	}
	if d := e.checkCash(p, sz); !d.Accepted {
		e.logger.Info(ctx, op+": Signal rejected", withFields(fields, map[string]interface{}{"reason": string(d.Reason), "detail": d.Detail}))
		return rejected(d), nil
	}

	backup := *p
	e.fill(p, trade, sz, target, now)
	if err := e.ledger.RecordEntry(ctx, p, trade, true); err != nil {
		*p = backup
		if errors.Is(err, ports.ErrDuplicateEntry) {
			return rejected(risk.Decision{
				Reason: domain.ReasonDuplicatePosition,
				Detail: fmt.Sprintf("an active trade for %s was recorded concurrently", sig.Ticker),
			}), nil
		}
		e.logger.Error(ctx, err, op+": Failed to record entry", fields)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.logger.Info(ctx, op+": Position opened", withFields(fields, map[string]interface{}{
		"tradeID":    trade.ID,
		"shares":     trade.Entry.Shares,
		"entryPrice": trade.Entry.Price.String(),
		"entryValue": trade.Entry.Value.StringFixed(2),
		"cash":       p.CurrentCash.StringFixed(2),
		"priceTier":  string(quote.Tier),
	}))
	e.recomputeAfter(ctx, op, p)

	return &ExecutionResult{
		TradeID:   trade.ID,
		Status:    trade.Status,
		PriceTier: quote.Tier,
		Trade:     trade,
		Sizing:    &sz,
	}, nil
}

func (e *Engine) recordPending(ctx context.Context, p *domain.Portfolio, trade *domain.Trade, fields map[string]interface{}) (*ExecutionResult, error) {
	op := "ExecuteTrade"
	if err := e.trades.CreateTrade(ctx, trade); err != nil {
		if errors.Is(err, ports.ErrDuplicateEntry) {
			return rejected(risk.Decision{
				Reason: domain.ReasonDuplicatePosition,
				Detail: fmt.Sprintf("an active trade for %s was recorded concurrently", trade.Ticker),
			}), nil
		}
		e.logger.Error(ctx, err, op+": Failed to record pending trade", fields)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.logger.Info(ctx, op+": Entry price unavailable, trade left pending", withFields(fields, map[string]interface{}{
		"tradeID":    trade.ID,
		"targetDate": trade.TargetDate.Format(time.DateOnly),
	}))
	e.recomputeAfter(ctx, op, p)

	return &ExecutionResult{
		TradeID: trade.ID,
		Status:  trade.Status,
		Reason:  domain.ReasonPriceUnavailable,
		Detail:  "no entry price yet, execution deferred",
		Trade:   trade,
	}, nil
}

// ExecutePendingTrades tries to fill every PENDING trade of the portfolio at today's open.
// Trades that can be priced but not afforded are CANCELLED; unpriced ones stay PENDING.
// The sweep keeps no state between runs and a failure on one trade does not stop the others.
func (e *Engine) ExecutePendingTrades(ctx context.Context, portfolioID string) (PromotionResult, error) {
	op := "ExecutePendingTrades"
	unlock := e.locks.lock(portfolioID)
	defer unlock()

	p, err := e.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return PromotionResult{}, err
	}
	res, err := e.promoteLocked(ctx, p)
	if res.Promoted+res.Cancelled > 0 {
		e.recomputeAfter(ctx, op, p)
	}
	return res, err
}

// promoteLocked expects the portfolio lock to be held.
func (e *Engine) promoteLocked(ctx context.Context, p *domain.Portfolio) (PromotionResult, error) {
	op := "ExecutePendingTrades"
	var res PromotionResult

	pending, err := e.trades.FindByStatus(ctx, p.ID, domain.StatusPending)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	today := domain.Day(e.clock())
	var errs []error
	for _, t := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		fields := map[string]interface{}{"portfolioID": p.ID, "tradeID": t.ID, "ticker": t.Ticker}

		quote, ok := e.prices.Resolve(ctx, t.Ticker, today, domain.AtOpen)
		if !ok {
			res.StillPending++
			e.logger.Debug(ctx, op+": Still no entry price", fields)
			continue
		}

		sz := e.sizer.Size(t.Confidence, t.PredictedReturnPct, p, quote.Price)
		d := e.gate.CheckAllocation(sz)
		if d.Accepted {
			d = e.checkCash(p, sz)
		}
		if !d.Accepted {
			if err := e.cancel(ctx, t, d.Reason); err != nil {
				res.Failed++
				errs = append(errs, err)
				e.logger.Error(ctx, err, op+": Failed to cancel trade", fields)
				continue
			}
			res.Cancelled++
			e.logger.Info(ctx, op+": Pending trade cancelled", withFields(fields, map[string]interface{}{
				"reason": string(d.Reason), "detail": d.Detail,
			}))
			continue
		}

		now := e.clock()
		pBackup, tBackup := *p, copyTrade(t)
		e.fill(p, t, sz, today, now)
		if err := e.ledger.RecordEntry(ctx, p, t, false); err != nil {
			*p, *t = pBackup, tBackup
			res.Failed++
			errs = append(errs, fmt.Errorf("%s: trade %s: %w", op, t.ID, err))
			e.logger.Error(ctx, err, op+": Failed to record entry", fields)
			continue
		}
		res.Promoted++
		e.logger.Info(ctx, op+": Pending trade opened", withFields(fields, map[string]interface{}{
			"shares":     t.Entry.Shares,
			"entryPrice": t.Entry.Price.String(),
			"cash":       p.CurrentCash.StringFixed(2),
			"priceTier":  string(quote.Tier),
		}))
	}

	return res, errors.Join(errs...)
}

func (e *Engine) cancel(ctx context.Context, t *domain.Trade, reason domain.RejectionReason) error {
	backup := copyTrade(t)
	t.Status = domain.StatusCancelled
	t.CancelReason = reason
	t.UpdatedAt = e.clock()
	if err := e.trades.UpdateTrade(ctx, t); err != nil {
		*t = backup
		return fmt.Errorf("cancel trade %s: %w", t.ID, err)
	}
	return nil
}

func withFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
