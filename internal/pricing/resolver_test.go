package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"paperTrader/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type historicalCall struct {
	from, to time.Time
}

// fakeProvider answers from a fixed bar list, optionally failing calls.
type fakeProvider struct {
	bars       []domain.Bar
	histErr    error
	quote      decimal.Decimal
	quoteErr   error
	histCalls  []historicalCall
	quoteCalls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	f.histCalls = append(f.histCalls, historicalCall{from: from, to: to})
	if f.histErr != nil {
		return nil, f.histErr
	}
	var out []domain.Bar
	for _, b := range f.bars {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeProvider) Quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	f.quoteCalls++
	return f.quote, f.quoteErr
}

type clockedProvider struct {
	*fakeProvider
	open bool
}

func (c *clockedProvider) IsMarketOpen(ctx context.Context) (bool, error) { return c.open, nil }

func day(y int, m time.Month, dd int) time.Time { return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC) }

func bar(date time.Time, open, cls string) domain.Bar {
	return domain.Bar{Ticker: "ACME", Date: date, Open: decimal.RequireFromString(open), Close: decimal.RequireFromString(cls)}
}

func newTestResolver(t *testing.T, p interface {
	Name() string
	Historical(context.Context, string, time.Time, time.Time) ([]domain.Bar, error)
	Quote(context.Context, string) (decimal.Decimal, error)
}) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{
		Provider: p,
		Logger:   &mockLogger{},
		Timeout:  time.Second,
		Now:      func() time.Time { return day(2024, 3, 8).Add(15 * time.Hour) },
	})
	require.NoError(t, err)
	return r
}

func TestResolver_Tiers(t *testing.T) {
	target := day(2024, 3, 6) // Wednesday

	tests := []struct {
		name      string
		provider  *fakeProvider
		mode      domain.PriceMode
		wantOK    bool
		wantPrice string
		wantTier  Tier
		wantAsOf  time.Time
		wantHist  int
		wantQuote int
	}{
		{
			name:      "exact date open for entries",
			provider:  &fakeProvider{bars: []domain.Bar{bar(day(2024, 3, 5), "49", "49.5"), bar(target, "50", "51")}},
			mode:      domain.AtOpen,
			wantOK:    true,
			wantPrice: "50",
			wantTier:  TierExactDate,
			wantAsOf:  target,
			wantHist:  1,
		},
		{
			name:      "exact date close for exits",
			provider:  &fakeProvider{bars: []domain.Bar{bar(target, "50", "51")}},
			mode:      domain.AtClose,
			wantOK:    true,
			wantPrice: "51",
			wantTier:  TierExactDate,
			wantAsOf:  target,
			wantHist:  1,
		},
		{
			name:      "falls back to most recent bar in window",
			provider:  &fakeProvider{bars: []domain.Bar{bar(day(2024, 2, 26), "40", "41"), bar(day(2024, 3, 1), "47", "48"), bar(day(2024, 3, 4), "48", "49")}},
			mode:      domain.AtClose,
			wantOK:    true,
			wantPrice: "49",
			wantTier:  TierLookback,
			wantAsOf:  day(2024, 3, 4),
			wantHist:  2,
		},
		{
			name:      "ignores bars older than the window",
			provider:  &fakeProvider{bars: []domain.Bar{bar(day(2024, 2, 20), "40", "41")}, quote: decimal.RequireFromString("52.25")},
			mode:      domain.AtOpen,
			wantOK:    true,
			wantPrice: "52.25",
			wantTier:  TierQuote,
			wantAsOf:  day(2024, 3, 8).Add(15 * time.Hour),
			wantHist:  2,
			wantQuote: 1,
		},
		{
			name:      "zero price on exact bar is not a price",
			provider:  &fakeProvider{bars: []domain.Bar{bar(target, "0", "0")}, quote: decimal.RequireFromString("50.10")},
			mode:      domain.AtOpen,
			wantOK:    true,
			wantPrice: "50.1",
			wantTier:  TierQuote,
			wantAsOf:  day(2024, 3, 8).Add(15 * time.Hour),
			wantHist:  2,
			wantQuote: 1,
		},
		{
			name:      "all tiers fail",
			provider:  &fakeProvider{histErr: errors.New("boom"), quoteErr: errors.New("closed")},
			mode:      domain.AtOpen,
			wantOK:    false,
			wantHist:  2,
			wantQuote: 1,
		},
		{
			name:      "zero quote is not available",
			provider:  &fakeProvider{quote: decimal.Zero},
			mode:      domain.AtClose,
			wantOK:    false,
			wantHist:  2,
			wantQuote: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, tt.provider)
			q, ok := r.Resolve(context.Background(), "ACME", target.Add(9*time.Hour), tt.mode)

			assert.Equal(t, tt.wantOK, ok)
			assert.Len(t, tt.provider.histCalls, tt.wantHist, "each historical tier is tried at most once")
			assert.Equal(t, tt.wantQuote, tt.provider.quoteCalls)
			if !tt.wantOK {
				return
			}
			assert.True(t, decimal.RequireFromString(tt.wantPrice).Equal(q.Price), "got %s", q.Price)
			assert.Equal(t, tt.wantTier, q.Tier)
			assert.Equal(t, tt.wantAsOf, q.AsOf)
		})
	}
}

func TestResolver_LookbackWindow(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(t, p)
	target := day(2024, 3, 11)

	_, ok := r.Resolve(context.Background(), "ACME", target, domain.AtOpen)
	assert.False(t, ok)
	require.Len(t, p.histCalls, 2)
	assert.Equal(t, target, p.histCalls[0].from)
	assert.Equal(t, target, p.histCalls[0].to)
	assert.Equal(t, day(2024, 3, 4), p.histCalls[1].from)
	assert.Equal(t, target, p.histCalls[1].to)
}

func TestResolver_SkipsQuoteWhenMarketClosed(t *testing.T) {
	inner := &fakeProvider{quote: decimal.RequireFromString("50")}
	r := newTestResolver(t, &clockedProvider{fakeProvider: inner, open: false})

	_, ok := r.Resolve(context.Background(), "ACME", day(2024, 3, 6), domain.AtOpen)
	assert.False(t, ok)
	assert.Equal(t, 0, inner.quoteCalls)

	r = newTestResolver(t, &clockedProvider{fakeProvider: inner, open: true})
	q, ok := r.Resolve(context.Background(), "ACME", day(2024, 3, 6), domain.AtOpen)
	assert.True(t, ok)
	assert.Equal(t, TierQuote, q.Tier)
	assert.Equal(t, 1, inner.quoteCalls)
}

func TestResolver_RespectsTimeout(t *testing.T) {
	p := &slowProvider{}
	r, err := NewResolver(Config{Provider: p, Logger: &mockLogger{}, Timeout: 10 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, ok := r.Resolve(context.Background(), "ACME", day(2024, 3, 6), domain.AtOpen)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

type slowProvider struct{}

func (s *slowProvider) Name() string { return "slow" }

func (s *slowProvider) Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *slowProvider) Quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

func TestNewResolver_Validation(t *testing.T) {
	_, err := NewResolver(Config{Logger: &mockLogger{}})
	assert.Error(t, err)
	_, err = NewResolver(Config{Provider: &fakeProvider{}})
	assert.Error(t, err)
}

func TestNextTradingDay(t *testing.T) {
	tests := []struct {
		origin time.Time
		want   time.Time
	}{
		{origin: day(2024, 3, 5), want: day(2024, 3, 6)},                      // Tue -> Wed
		{origin: day(2024, 3, 8), want: day(2024, 3, 11)},                     // Fri -> Mon
		{origin: day(2024, 3, 9), want: day(2024, 3, 11)},                     // Sat -> Mon
		{origin: day(2024, 3, 10), want: day(2024, 3, 11)},                    // Sun -> Mon
		{origin: day(2024, 3, 7).Add(23 * time.Hour), want: day(2024, 3, 8)}, // time of day ignored
	}
	for _, tt := range tests {
		t.Run(tt.origin.Format(time.RFC3339), func(t *testing.T) {
			assert.Equal(t, tt.want, NextTradingDay(tt.origin))
		})
	}
}
