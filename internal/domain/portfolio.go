package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default risk parameters for new portfolios.
var (
	DefaultStartingCapital = decimal.NewFromInt(100000)
	DefaultMaxPositionSize = decimal.RequireFromString("0.10")
	DefaultMinConfidence   = decimal.RequireFromString("0.60")
)

var hundred = decimal.NewFromInt(100)

// Portfolio is a named simulation account.
type Portfolio struct {
	ID              string
	Name            string
	StartingCapital decimal.Decimal // Immutable after creation
	CurrentCash     decimal.Decimal // Moved only by trade entries and exits
	TotalValue      decimal.Decimal // Cash plus mark-to-market of open positions
	TotalReturnPct  decimal.Decimal
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         decimal.Decimal // Percentage, 0 when nothing is closed yet
	IsActive        bool
	MinConfidence   decimal.Decimal // Admission threshold, 0-1
	MaxPositionSize decimal.Decimal // Fraction of total value, 0-1
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PortfolioOption customizes NewPortfolio.
type PortfolioOption func(*Portfolio)

// WithStartingCapital overrides the default starting capital.
func WithStartingCapital(c decimal.Decimal) PortfolioOption {
	return func(p *Portfolio) { p.StartingCapital = c }
}

// WithMaxPositionSize overrides the default max position fraction.
func WithMaxPositionSize(f decimal.Decimal) PortfolioOption {
	return func(p *Portfolio) { p.MaxPositionSize = f }
}

// WithMinConfidence overrides the default admission confidence.
func WithMinConfidence(c decimal.Decimal) PortfolioOption {
	return func(p *Portfolio) { p.MinConfidence = c }
}

// NewPortfolio builds an active portfolio whose cash and total value equal its starting capital.
func NewPortfolio(name string, now time.Time, opts ...PortfolioOption) *Portfolio {
	p := &Portfolio{
		ID:              uuid.NewString(),
		Name:            name,
		StartingCapital: DefaultStartingCapital,
		MaxPositionSize: DefaultMaxPositionSize,
		MinConfidence:   DefaultMinConfidence,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.CurrentCash = p.StartingCapital
	p.TotalValue = p.StartingCapital
	p.TotalReturnPct = decimal.Zero
	p.WinRate = decimal.Zero
	return p
}

// Deactivate stops the portfolio from admitting new signals. Portfolios are never deleted.
func (p *Portfolio) Deactivate(now time.Time) {
	p.IsActive = false
	p.UpdatedAt = now
}

// Debit removes amount from cash. Callers check affordability first.
func (p *Portfolio) Debit(amount decimal.Decimal) {
	p.CurrentCash = p.CurrentCash.Sub(amount)
}

// Credit adds amount to cash.
func (p *Portfolio) Credit(amount decimal.Decimal) {
	p.CurrentCash = p.CurrentCash.Add(amount)
}

// CanAfford reports whether amount can be debited without cash going negative.
func (p *Portfolio) CanAfford(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(p.CurrentCash)
}

// RecordResult bumps the win or loss counter. Zero P&L counts as a loss.
func (p *Portfolio) RecordResult(pnl decimal.Decimal) {
	if pnl.IsPositive() {
		p.WinningTrades++
	} else {
		p.LosingTrades++
	}
}

// ClosedTrades is the number of trades that contributed to win/loss counters.
func (p *Portfolio) ClosedTrades() int {
	return p.WinningTrades + p.LosingTrades
}

// Revalue applies a new open-positions value and refreshes the derived metrics.
func (p *Portfolio) Revalue(openValue decimal.Decimal, now time.Time) {
	p.TotalValue = p.CurrentCash.Add(openValue)
	if p.StartingCapital.IsPositive() {
		p.TotalReturnPct = p.TotalValue.Sub(p.StartingCapital).
			Div(p.StartingCapital).Mul(hundred).Round(4)
	}
	if closed := p.ClosedTrades(); closed > 0 {
		p.WinRate = decimal.NewFromInt(int64(p.WinningTrades)).
			Div(decimal.NewFromInt(int64(closed))).Mul(hundred).Round(4)
	} else {
		p.WinRate = decimal.Zero
	}
	p.UpdatedAt = now
}
