package app

import (
	"context"
	"fmt"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
	"paperTrader/internal/pricing"
	"paperTrader/internal/risk"

	"github.com/shopspring/decimal"
)

// Engine defaults applied when Config leaves a field at its zero value.
const (
	DefaultHoldPeriodDays    = 7
	DefaultRecentTradesLimit = 20
	DefaultSweepConcurrency  = 4
	DefaultMarkConcurrency   = 8
)

// DefaultCommissionPerLeg is charged on every entry and every exit.
var DefaultCommissionPerLeg = decimal.NewFromInt(1)

// PriceResolver is the tiered price lookup the engine fills trades with.
type PriceResolver interface {
	Resolve(ctx context.Context, ticker string, target time.Time, mode domain.PriceMode) (pricing.Quote, bool)
}

// Config holds the engine's execution parameters.
type Config struct {
	CommissionPerLeg  decimal.Decimal
	HoldPeriodDays    int // Overridden per trade by metadata HorizonDays
	RecentTradesLimit int // Closed trades listed in a summary
	SweepConcurrency  int // Portfolios processed in parallel by sweeps
	MarkConcurrency   int // Concurrent price lookups while marking positions

	// Defaults for CreatePortfolio requests that omit them. Zero falls back to the domain defaults.
	DefaultStartingCapital decimal.Decimal
	DefaultMaxPositionSize decimal.Decimal
	DefaultMinConfidence   decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.CommissionPerLeg.IsZero() {
		c.CommissionPerLeg = DefaultCommissionPerLeg
	}
	if c.HoldPeriodDays <= 0 {
		c.HoldPeriodDays = DefaultHoldPeriodDays
	}
	if c.RecentTradesLimit <= 0 {
		c.RecentTradesLimit = DefaultRecentTradesLimit
	}
	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = DefaultSweepConcurrency
	}
	if c.MarkConcurrency <= 0 {
		c.MarkConcurrency = DefaultMarkConcurrency
	}
	if c.DefaultStartingCapital.IsZero() {
		c.DefaultStartingCapital = domain.DefaultStartingCapital
	}
	if c.DefaultMaxPositionSize.IsZero() {
		c.DefaultMaxPositionSize = domain.DefaultMaxPositionSize
	}
	if c.DefaultMinConfidence.IsZero() {
		c.DefaultMinConfidence = domain.DefaultMinConfidence
	}
	return c
}

// Dependencies are the collaborators the engine is built from.
type Dependencies struct {
	Logger     ports.Logger
	Portfolios ports.PortfolioRepository
	Trades     ports.TradeRepository
	Snapshots  ports.SnapshotRepository
	Ledger     ports.Ledger
	Prices     PriceResolver
	Gate       *risk.Gate
	Sizer      *risk.Sizer
	Now        func() time.Time // Defaults to time.Now
}

// Engine runs the trade state machine (PENDING -> OPEN -> CLOSED, PENDING -> CANCELLED)
// and keeps portfolio aggregates in step with it.
//
// Every operation that moves cash holds the portfolio's lock for its whole duration,
// so each portfolio has a single writer. Different portfolios proceed in parallel.
type Engine struct {
	cfg        Config
	logger     ports.Logger
	portfolios ports.PortfolioRepository
	trades     ports.TradeRepository
	snapshots  ports.SnapshotRepository
	ledger     ports.Ledger
	prices     PriceResolver
	gate       *risk.Gate
	sizer      *risk.Sizer
	now        func() time.Time
	locks      *portfolioLocks
}

// NewEngine creates a new engine instance.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.Logger == nil || deps.Portfolios == nil || deps.Trades == nil ||
		deps.Snapshots == nil || deps.Ledger == nil || deps.Prices == nil || deps.Gate == nil {
		return nil, fmt.Errorf("missing required dependencies for Engine")
	}
	if cfg.CommissionPerLeg.IsNegative() {
		return nil, fmt.Errorf("configuration CommissionPerLeg cannot be negative")
	}
	sizer := deps.Sizer
	if sizer == nil {
		sizer = risk.NewSizer()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:        cfg.withDefaults(),
		logger:     deps.Logger,
		portfolios: deps.Portfolios,
		trades:     deps.Trades,
		snapshots:  deps.Snapshots,
		ledger:     deps.Ledger,
		prices:     deps.Prices,
		gate:       deps.Gate,
		sizer:      sizer,
		now:        now,
		locks:      newPortfolioLocks(),
	}, nil
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// loadPortfolio returns ports.ErrNotFound for unknown IDs.
func (e *Engine) loadPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	p, err := e.portfolios.FindPortfolioByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %s: %w", id, ports.ErrNotFound)
	}
	return p, nil
}

// cashRequired is what an entry debits: the filled value plus the entry commission.
func (e *Engine) cashRequired(sz risk.Sizing) decimal.Decimal {
	return sz.EntryValue.Add(e.cfg.CommissionPerLeg)
}

// checkCash rejects entries that would push cash below zero. Both the nominal allocation
// and the actual debit must fit.
func (e *Engine) checkCash(p *domain.Portfolio, sz risk.Sizing) risk.Decision {
	if !p.CanAfford(sz.PositionValue) || !p.CanAfford(e.cashRequired(sz)) {
		return risk.Decision{
			Reason: domain.ReasonInsufficientCash,
			Detail: fmt.Sprintf("entry needs %s (allocation %s), cash is %s",
				e.cashRequired(sz).StringFixed(2), sz.PositionValue.StringFixed(2), p.CurrentCash.StringFixed(2)),
		}
	}
	return risk.Decision{Accepted: true}
}

// fill turns a sized trade into an OPEN position and debits the portfolio.
// Callers keep copies to restore if the ledger write fails.
func (e *Engine) fill(p *domain.Portfolio, t *domain.Trade, sz risk.Sizing, entryDate, now time.Time) {
	t.Entry = &domain.Entry{
		Date:       domain.Day(entryDate),
		Price:      sz.EntryPrice,
		Shares:     sz.Shares,
		Value:      sz.EntryValue,
		Commission: e.cfg.CommissionPerLeg,
	}
	t.Status = domain.StatusOpen
	t.CancelReason = domain.ReasonNone
	t.UpdatedAt = now

	p.Debit(e.cashRequired(sz))
	p.TotalTrades++
	p.UpdatedAt = now
}

func copyTrade(t *domain.Trade) domain.Trade {
	cp := *t
	if t.Entry != nil {
		entry := *t.Entry
		cp.Entry = &entry
	}
	if t.Exit != nil {
		exit := *t.Exit
		cp.Exit = &exit
	}
	return cp
}
