package pricing

import (
	"context"
	"fmt"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/shopspring/decimal"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultLookbackDays = 7
)

// Tier identifies which fallback step produced a price.
type Tier string

const (
	TierExactDate Tier = "exact"
	TierLookback  Tier = "lookback"
	TierQuote     Tier = "quote"
)

// Quote is a resolved price and where it came from.
type Quote struct {
	Price decimal.Decimal
	Tier  Tier
	AsOf  time.Time
}

// Config holds configuration for the Resolver.
type Config struct {
	Provider     ports.PriceProvider
	Logger       ports.Logger
	Timeout      time.Duration // Per provider call
	LookbackDays int           // Window of the stale-bar tier
	Now          func() time.Time
}

// Resolver returns best-effort trade prices using a tiered fallback:
// exact-date bar, most recent bar within the lookback window, then a live quote.
// Each tier is tried at most once per call.
type Resolver struct {
	provider ports.PriceProvider
	logger   ports.Logger
	timeout  time.Duration
	lookback int
	now      func() time.Time
}

// NewResolver creates a Resolver around an explicitly injected provider.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("price provider is required for resolver")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for resolver")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		timeout:  timeout,
		lookback: lookback,
		now:      now,
	}, nil
}

// Resolve returns a price for ticker on target's calendar day. ok is false when every
// tier came back empty; that is a normal outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, ticker string, target time.Time, mode domain.PriceMode) (Quote, bool) {
	day := domain.Day(target)
	fields := map[string]interface{}{
		"ticker":   ticker,
		"date":     day.Format(time.DateOnly),
		"mode":     mode.String(),
		"provider": r.provider.Name(),
	}

	if q, ok := r.exactDate(ctx, ticker, day, mode); ok {
		r.logResolved(ctx, q, fields)
		return q, true
	}
	if q, ok := r.recentBar(ctx, ticker, day, mode); ok {
		r.logResolved(ctx, q, fields)
		return q, true
	}
	if q, ok := r.liveQuote(ctx, ticker); ok {
		r.logResolved(ctx, q, fields)
		return q, true
	}

	r.logger.Info(ctx, "Price not available from any tier", fields)
	return Quote{}, false
}

func (r *Resolver) exactDate(ctx context.Context, ticker string, day time.Time, mode domain.PriceMode) (Quote, bool) {
	bars, ok := r.historical(ctx, ticker, day, day, TierExactDate)
	if !ok {
		return Quote{}, false
	}
	for _, b := range bars {
		if domain.Day(b.Date).Equal(day) {
			price := b.Price(mode)
			if price.IsPositive() {
				return Quote{Price: price, Tier: TierExactDate, AsOf: day}, true
			}
		}
	}
	return Quote{}, false
}

func (r *Resolver) recentBar(ctx context.Context, ticker string, day time.Time, mode domain.PriceMode) (Quote, bool) {
	from := day.AddDate(0, 0, -r.lookback)
	bars, ok := r.historical(ctx, ticker, from, day, TierLookback)
	if !ok {
		return Quote{}, false
	}

	var best Quote
	found := false
	for _, b := range bars {
		barDay := domain.Day(b.Date)
		if barDay.Before(from) || barDay.After(day) {
			continue
		}
		price := b.Price(mode)
		if !price.IsPositive() {
			continue
		}
		if !found || barDay.After(best.AsOf) {
			best = Quote{Price: price, Tier: TierLookback, AsOf: barDay}
			found = true
		}
	}
	return best, found
}

func (r *Resolver) liveQuote(ctx context.Context, ticker string) (Quote, bool) {
	if clock, ok := r.provider.(ports.SessionClock); ok {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		open, err := clock.IsMarketOpen(cctx)
		cancel()
		if err != nil {
			r.logger.Warn(ctx, "Market clock unavailable, trying quote anyway", map[string]interface{}{"ticker": ticker, "error": err.Error()})
		} else if !open {
			r.logger.Debug(ctx, "Market closed, skipping live quote", map[string]interface{}{"ticker": ticker})
			return Quote{}, false
		}
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	price, err := r.provider.Quote(cctx, ticker)
	if err != nil {
		r.logger.Debug(ctx, "Live quote failed", map[string]interface{}{"ticker": ticker, "error": err.Error()})
		return Quote{}, false
	}
	if !price.IsPositive() {
		return Quote{}, false
	}
	return Quote{Price: price, Tier: TierQuote, AsOf: r.now().UTC()}, true
}

func (r *Resolver) historical(ctx context.Context, ticker string, from, to time.Time, tier Tier) ([]domain.Bar, bool) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	bars, err := r.provider.Historical(cctx, ticker, from, to)
	if err != nil {
		r.logger.Debug(ctx, "Historical lookup failed", map[string]interface{}{"ticker": ticker, "tier": string(tier), "error": err.Error()})
		return nil, false
	}
	return bars, len(bars) > 0
}

func (r *Resolver) logResolved(ctx context.Context, q Quote, fields map[string]interface{}) {
	out := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	out["tier"] = string(q.Tier)
	out["price"] = q.Price.String()
	out["asOf"] = q.AsOf.Format(time.DateOnly)
	r.logger.Debug(ctx, "Price resolved", out)
}
