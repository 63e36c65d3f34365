package app

import (
	"context"
	"fmt"
	"time"

	"paperTrader/internal/analytics"
	"paperTrader/internal/domain"
)

// PortfolioSummary is a read-only view of a portfolio and its positions.
type PortfolioSummary struct {
	Portfolio     *domain.Portfolio
	OpenPositions []PositionView
	PendingTrades []*domain.Trade
	RecentClosed  []*domain.Trade
	Performance   *analytics.PerformanceMetrics
}

// PerformanceReport combines trade-level, equity-curve and signal-quality statistics.
type PerformanceReport struct {
	PortfolioID string                        `json:"portfolioId"`
	Trades      *analytics.PerformanceMetrics `json:"trades"`
	Equity      analytics.EquityStats         `json:"equity"`
	Calibration analytics.SignalCalibration   `json:"calibration"`
}

// GetPortfolioSummary lists open positions marked to market, pending trades and the
// most recent closed trades. Marks are computed on the fly and not persisted.
func (e *Engine) GetPortfolioSummary(ctx context.Context, portfolioID string) (*PortfolioSummary, error) {
	op := "GetPortfolioSummary"
	p, err := e.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	open, err := e.trades.FindByStatus(ctx, portfolioID, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pending, err := e.trades.FindByStatus(ctx, portfolioID, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	recent, err := e.trades.FindRecentClosed(ctx, portfolioID, e.cfg.RecentTradesLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	closed, err := e.trades.FindByStatus(ctx, portfolioID, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PortfolioSummary{
		Portfolio:     p,
		OpenPositions: e.markPositions(ctx, open),
		PendingTrades: pending,
		RecentClosed:  recent,
		Performance:   analytics.AnalyzePerformance(closed, p.StartingCapital.InexactFloat64()),
	}, nil
}

// ListSnapshots returns the portfolio's snapshots within [from, to]. Zero bounds are open.
func (e *Engine) ListSnapshots(ctx context.Context, portfolioID string, from, to time.Time) ([]*domain.PortfolioSnapshot, error) {
	if _, err := e.loadPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	snaps, err := e.snapshots.FindSnapshots(ctx, portfolioID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListSnapshots: %w", err)
	}
	return snaps, nil
}

// Performance analyzes the full closed-trade and snapshot history of a portfolio.
func (e *Engine) Performance(ctx context.Context, portfolioID string) (*PerformanceReport, error) {
	op := "Performance"
	p, err := e.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	closed, err := e.trades.FindByStatus(ctx, portfolioID, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	snaps, err := e.snapshots.FindSnapshots(ctx, portfolioID, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &PerformanceReport{
		PortfolioID: p.ID,
		Trades:      analytics.AnalyzePerformance(closed, p.StartingCapital.InexactFloat64()),
		Equity:      analytics.AnalyzeSnapshots(snaps),
		Calibration: analytics.CalibrateSignals(closed),
	}, nil
}
