package ports

import (
	"context"
	"time"

	"paperTrader/internal/domain"

	"github.com/shopspring/decimal"
)

// PriceProvider is the query contract of an external market-data source.
// Both calls may fail or return nothing; callers treat that as "not available", never as zero.
type PriceProvider interface {
	// Name identifies the provider in logs (e.g. "alpaca").
	Name() string

	// Historical returns daily bars whose trading day falls within [from, to], oldest first.
	Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error)

	// Quote returns the last traded price for ticker.
	Quote(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// SessionClock is implemented by providers that can tell whether the market is open.
// Live quotes are only consulted while the session is open.
type SessionClock interface {
	IsMarketOpen(ctx context.Context) (bool, error)
}
