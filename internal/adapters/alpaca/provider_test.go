package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"paperTrader/internal/ports"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
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

type fakeMarketData struct {
	bars    []marketdata.Bar
	barsErr error
	gotReq  marketdata.GetBarsRequest
	trade   *marketdata.Trade
	block   chan struct{}
}

func (f *fakeMarketData) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.gotReq = req
	return f.bars, f.barsErr
}

func (f *fakeMarketData) GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error) {
	if f.block != nil {
		<-f.block
	}
	return f.trade, nil
}

type fakeClock struct {
	open bool
	err  error
}

func (f *fakeClock) GetClock() (*alpaca.Clock, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &alpaca.Clock{IsOpen: f.open}, nil
}

func TestProvider_Historical(t *testing.T) {
	// Alpaca stamps daily bars at midnight New York time.
	ny := func(dd int) time.Time { return time.Date(2024, 3, dd, 5, 0, 0, 0, time.UTC) }
	md := &fakeMarketData{bars: []marketdata.Bar{
		{Timestamp: ny(4), Open: 49.5, High: 50, Low: 49, Close: 49.9, Volume: 1000},
		{Timestamp: ny(5), Open: 50, High: 51.5, Low: 49.8, Close: 51, Volume: 2000},
	}}
	p := newProvider(md, &fakeClock{}, "", &mockLogger{})

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	bars, err := p.Historical(context.Background(), "acme", from, to)
	require.NoError(t, err)

	assert.Equal(t, marketdata.OneDay, md.gotReq.TimeFrame)
	assert.Equal(t, marketdata.IEX, md.gotReq.Feed)
	assert.Equal(t, from, md.gotReq.Start)
	require.Len(t, bars, 2)
	assert.Equal(t, to, bars[1].Date)
	assert.Equal(t, "ACME", bars[1].Ticker)
	assert.True(t, decimal.RequireFromString("50").Equal(bars[1].Open))
}

func TestProvider_HistoricalErrorMapping(t *testing.T) {
	md := &fakeMarketData{barsErr: errors.New("status code 429: too many requests")}
	p := newProvider(md, &fakeClock{}, "sip", &mockLogger{})

	_, err := p.Historical(context.Background(), "ACME", time.Now(), time.Now())
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.Equal(t, marketdata.SIP, md.gotReq.Feed)
}

func TestProvider_Quote(t *testing.T) {
	p := newProvider(&fakeMarketData{trade: &marketdata.Trade{Price: 52.25}}, &fakeClock{}, "", &mockLogger{})
	price, err := p.Quote(context.Background(), "ACME")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("52.25").Equal(price))

	p = newProvider(&fakeMarketData{}, &fakeClock{}, "", &mockLogger{})
	_, err = p.Quote(context.Background(), "ACME")
	assert.ErrorIs(t, err, ports.ErrNoPriceData)
}

func TestProvider_QuoteTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p := newProvider(&fakeMarketData{block: block}, &fakeClock{}, "", &mockLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Quote(ctx, "ACME")
	assert.ErrorIs(t, err, ports.ErrTimeout)
}

func TestProvider_IsMarketOpen(t *testing.T) {
	open, err := newProvider(&fakeMarketData{}, &fakeClock{open: true}, "", &mockLogger{}).IsMarketOpen(context.Background())
	require.NoError(t, err)
	assert.True(t, open)

	_, err = newProvider(&fakeMarketData{}, &fakeClock{err: errors.New("down")}, "", &mockLogger{}).IsMarketOpen(context.Background())
	assert.ErrorIs(t, err, ports.ErrProviderUnavailable)
}
