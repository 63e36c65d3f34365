package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// marketData is the subset of *marketdata.Client the provider uses.
type marketData interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// tradingClock is the subset of *alpaca.Client the provider uses.
type tradingClock interface {
	GetClock() (*alpaca.Clock, error)
}

// Config holds configuration for the Alpaca provider.
type Config struct {
	APIKey    string
	APISecret string
	Feed      string // "iex" (free tier) or "sip"
	Logger    ports.Logger
}

// Provider implements ports.PriceProvider and ports.SessionClock on Alpaca market data.
type Provider struct {
	md     marketData
	clock  tradingClock
	feed   marketdata.Feed
	logger ports.Logger
}

// Ensure Provider implements the interfaces
var (
	_ ports.PriceProvider = (*Provider)(nil)
	_ ports.SessionClock  = (*Provider)(nil)
)

// New returns a new Alpaca provider. Empty keys fall back to the SDK's APCA_* environment variables.
func New(cfg Config) (*Provider, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca provider")
	}
	md := marketdata.NewClient(marketdata.ClientOpts{APIKey: cfg.APIKey, APISecret: cfg.APISecret})
	tc := alpaca.NewClient(alpaca.ClientOpts{APIKey: cfg.APIKey, APISecret: cfg.APISecret})
	return newProvider(md, tc, cfg.Feed, cfg.Logger), nil
}

func newProvider(md marketData, clock tradingClock, feed string, logger ports.Logger) *Provider {
	f := marketdata.Feed(strings.ToLower(strings.TrimSpace(feed)))
	if f == "" {
		f = marketdata.IEX
	}
	return &Provider{md: md, clock: clock, feed: f, logger: logger}
}

// Name identifies the provider in logs.
func (p *Provider) Name() string { return "alpaca" }

// Historical fetches daily bars whose trading day falls within [from, to].
func (p *Provider) Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	op := "Historical"
	start := domain.Day(from)
	end := domain.Day(to).Add(24*time.Hour - time.Second)

	raw, err := call(ctx, func() ([]marketdata.Bar, error) {
		return p.md.GetBars(ticker, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      p.feed,
		})
	})
	if err != nil {
		return nil, p.wrap(ctx, op, ticker, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		day := domain.Day(b.Timestamp)
		if day.Before(start) || day.After(domain.Day(to)) {
			continue
		}
		bars = append(bars, domain.Bar{
			Ticker: strings.ToUpper(ticker),
			Date:   day,
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: float64(b.Volume),
		})
	}
	p.logger.Debug(ctx, "Fetched Alpaca bars", map[string]interface{}{"ticker": ticker, "count": len(bars)})
	return bars, nil
}

// Quote returns the latest trade price for ticker.
func (p *Provider) Quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	op := "Quote"
	trade, err := call(ctx, func() (*marketdata.Trade, error) {
		return p.md.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{Feed: p.feed})
	})
	if err != nil {
		return decimal.Zero, p.wrap(ctx, op, ticker, err)
	}
	if trade == nil || trade.Price <= 0 {
		return decimal.Zero, fmt.Errorf("%s failed for %s: %w", op, ticker, ports.ErrNoPriceData)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

// IsMarketOpen reports whether the US equity session is open right now.
func (p *Provider) IsMarketOpen(ctx context.Context) (bool, error) {
	clock, err := call(ctx, p.clock.GetClock)
	if err != nil {
		return false, p.wrap(ctx, "IsMarketOpen", "", err)
	}
	if clock == nil {
		return false, fmt.Errorf("IsMarketOpen failed: %w", ports.ErrProviderUnavailable)
	}
	return clock.IsOpen, nil
}

func (p *Provider) wrap(ctx context.Context, op, ticker string, err error) error {
	fields := map[string]interface{}{"operation": op, "ticker": ticker}
	var mapped error
	switch {
	case ctx.Err() != nil:
		mapped = ports.ErrTimeout
	case strings.Contains(err.Error(), "429"):
		mapped = ports.ErrRateLimited
	case strings.Contains(err.Error(), "401"), strings.Contains(err.Error(), "403"):
		mapped = ports.ErrAuthenticationFailed
	case strings.Contains(err.Error(), "404"), strings.Contains(err.Error(), "422"):
		mapped = ports.ErrNoPriceData
	default:
		mapped = ports.ErrProviderUnavailable
	}
	p.logger.Warn(ctx, op+" failed", fields)
	return fmt.Errorf("%s failed: %w: %w", op, mapped, err)
}

// call runs a blocking SDK call and stops waiting once ctx is done.
// The SDK methods take no context.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
