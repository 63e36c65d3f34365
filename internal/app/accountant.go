package app

import (
	"context"
	"fmt"

	"paperTrader/internal/domain"
	"paperTrader/internal/pricing"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// PositionView is an OPEN trade valued at its latest available price.
type PositionView struct {
	Trade            *domain.Trade   `json:"trade"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	MarketValue      decimal.Decimal `json:"marketValue"`
	UnrealizedPnL    decimal.Decimal `json:"unrealizedPnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealizedPnlPct"`
	PriceTier        pricing.Tier    `json:"priceTier,omitempty"`
	MarkedAtEntry    bool            `json:"markedAtEntry"` // No price found; valued at entry
}

// RecomputePortfolio re-marks open positions, refreshes the portfolio aggregates and
// writes today's snapshot. Running it twice on the same day overwrites the snapshot.
func (e *Engine) RecomputePortfolio(ctx context.Context, portfolioID string) (*domain.PortfolioSnapshot, error) {
	unlock := e.locks.lock(portfolioID)
	defer unlock()

	p, err := e.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return e.recomputeLocked(ctx, p)
}

// recomputeAfter refreshes aggregates after a committed transition. The transition
// already stands, so a failure here is logged and left to the next run.
func (e *Engine) recomputeAfter(ctx context.Context, op string, p *domain.Portfolio) {
	if _, err := e.recomputeLocked(ctx, p); err != nil {
		e.logger.Error(ctx, err, op+": Failed to recompute portfolio", map[string]interface{}{"portfolioID": p.ID})
	}
}

// recomputeLocked expects the portfolio lock to be held.
func (e *Engine) recomputeLocked(ctx context.Context, p *domain.Portfolio) (*domain.PortfolioSnapshot, error) {
	op := "RecomputePortfolio"
	open, err := e.trades.FindByStatus(ctx, p.ID, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	realized, err := e.trades.SumRealizedPnL(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views := e.markPositions(ctx, open)
	openValue := decimal.Zero
	for _, v := range views {
		openValue = openValue.Add(v.MarketValue)
	}

	now := e.clock()
	p.Revalue(openValue, now)
	if err := e.portfolios.UpdatePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snap := &domain.PortfolioSnapshot{
		PortfolioID:       p.ID,
		Date:              domain.Day(now),
		Cash:              p.CurrentCash,
		OpenValue:         openValue,
		TotalValue:        p.TotalValue,
		CumulativeReturn:  p.TotalReturnPct,
		CumulativePnL:     realized,
		OpenPositionCount: len(open),
		UpdatedAt:         now,
	}
	if err := e.snapshots.UpsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.logger.Debug(ctx, op+": Portfolio recomputed", map[string]interface{}{
		"portfolioID":   p.ID,
		"cash":          p.CurrentCash.StringFixed(2),
		"openValue":     openValue.StringFixed(2),
		"totalValue":    p.TotalValue.StringFixed(2),
		"openPositions": len(open),
	})
	return snap, nil
}

// markPositions prices open trades concurrently. A trade with no price is valued at
// its entry value and flagged.
func (e *Engine) markPositions(ctx context.Context, open []*domain.Trade) []PositionView {
	views := make([]PositionView, len(open))
	var g errgroup.Group
	g.SetLimit(e.cfg.MarkConcurrency)
	for i, t := range open {
		g.Go(func() error {
			views[i] = e.markPosition(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return views
}

func (e *Engine) markPosition(ctx context.Context, t *domain.Trade) PositionView {
	v := PositionView{Trade: t}
	if t.Entry == nil {
		return v
	}
	quote, ok := e.prices.Resolve(ctx, t.Ticker, e.clock(), domain.Latest)
	if !ok {
		v.MarkPrice = t.Entry.Price
		v.MarketValue = t.Entry.Value
		v.MarkedAtEntry = true
		e.logger.Warn(ctx, "Mark price unavailable, valuing at entry", map[string]interface{}{"tradeID": t.ID, "ticker": t.Ticker})
	} else {
		v.MarkPrice = quote.Price
		v.MarketValue = t.MarkValue(quote.Price)
		v.PriceTier = quote.Tier
	}
	v.UnrealizedPnL = t.UnrealizedPnL(v.MarkPrice)
	if t.Entry.Value.IsPositive() {
		v.UnrealizedPnLPct = v.UnrealizedPnL.Div(t.Entry.Value).Mul(hundred).Round(4)
	}
	return v
}
