package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

const defaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// QuoteFunc fetches the regular-market price for a Yahoo symbol.
type QuoteFunc func(ctx context.Context, symbol string) (float64, error)

// Config holds configuration for the Yahoo Finance provider.
type Config struct {
	Logger     ports.Logger
	HTTPClient *http.Client
	ChartURL   string    // Defaults to the public v8 chart endpoint
	Quote      QuoteFunc // Defaults to go-yfinance
}

// Provider implements ports.PriceProvider using Yahoo Finance.
// Daily bars come from the chart endpoint with an explicit period window;
// live prices come from go-yfinance.
type Provider struct {
	httpClient *http.Client
	chartURL   string
	quote      QuoteFunc
	logger     ports.Logger
}

// New creates a Yahoo Finance price provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Yahoo provider")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	chartURL := strings.TrimRight(cfg.ChartURL, "/")
	if chartURL == "" {
		chartURL = defaultChartURL
	}
	quote := cfg.Quote
	if quote == nil {
		quote = yfinanceQuote
	}
	return &Provider{httpClient: hc, chartURL: chartURL, quote: quote, logger: cfg.Logger}, nil
}

// Name identifies the provider in logs.
func (p *Provider) Name() string { return "yahoo" }

// Historical fetches daily bars whose trading day falls within [from, to].
func (p *Provider) Historical(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	start := domain.Day(from)
	end := domain.Day(to).Add(24 * time.Hour) // period2 is exclusive
	endpoint := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		p.chartURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	resp, err := p.queryChart(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	bars, err := parseChart(symbol, resp)
	if err != nil {
		return nil, err
	}

	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(start) && !b.Date.After(domain.Day(to)) {
			out = append(out, b)
		}
	}
	p.logger.Debug(ctx, "Fetched Yahoo chart", map[string]interface{}{"symbol": symbol, "count": len(out)})
	return out, nil
}

// Quote returns the regular-market price for symbol.
func (p *Provider) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	type result struct {
		price float64
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		price, err := p.quote(ctx, symbol)
		ch <- result{price, err}
	}()

	select {
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("%w: yahoo quote for %s: %w", ports.ErrTimeout, symbol, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return decimal.Zero, fmt.Errorf("%w: yahoo quote for %s: %w", ports.ErrProviderUnavailable, symbol, r.err)
		}
		if r.price <= 0 {
			return decimal.Zero, fmt.Errorf("%w: yahoo quote for %s", ports.ErrNoPriceData, symbol)
		}
		return decimal.NewFromFloat(r.price), nil
	}
}

// yfinanceQuote has no context support; Quote bounds it with a select.
func yfinanceQuote(_ context.Context, symbol string) (float64, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	q, err := t.Quote()
	if err != nil {
		return 0, err
	}
	return q.RegularMarketPrice, nil
}

func (p *Provider) queryChart(ctx context.Context, endpoint string) (chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return chartResponse{}, fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return chartResponse{}, fmt.Errorf("%w: %w", ports.ErrTimeout, err)
		}
		return chartResponse{}, fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return chartResponse{}, fmt.Errorf("%w: reading chart body: %w", ports.ErrConnectionFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return chartResponse{}, fmt.Errorf("%w: yahoo chart", ports.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return chartResponse{}, fmt.Errorf("%w: yahoo chart status %d", ports.ErrAuthenticationFailed, resp.StatusCode)
	}

	var out chartResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return chartResponse{}, fmt.Errorf("%w: decoding chart (status %d): %w", ports.ErrProviderUnavailable, resp.StatusCode, err)
	}
	if out.Chart.Error != nil {
		return out, fmt.Errorf("%w: yahoo error %s: %s", ports.ErrNoPriceData, out.Chart.Error.Code, out.Chart.Error.Description)
	}
	return out, nil
}

// parseChart converts the raw chart into bars, skipping sessions with null prices.
func parseChart(symbol string, resp chartResponse) ([]domain.Bar, error) {
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: no results returned for symbol %s", ports.ErrNoPriceData, symbol)
	}
	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := result.Indicators.Quote[0]
	if len(q.Open) != len(result.Timestamp) || len(q.Close) != len(result.Timestamp) {
		return nil, fmt.Errorf("%w: mismatched chart data lengths for %s", ports.ErrProviderUnavailable, symbol)
	}

	at := func(xs []*float64, i int) (decimal.Decimal, bool) {
		if i >= len(xs) || xs[i] == nil {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(*xs[i]), true
	}

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open, okOpen := at(q.Open, i)
		cls, okClose := at(q.Close, i)
		if !okOpen || !okClose {
			continue
		}
		high, _ := at(q.High, i)
		low, _ := at(q.Low, i)
		vol, _ := at(q.Volume, i)
		bars = append(bars, domain.Bar{
			Ticker: strings.ToUpper(symbol),
			Date:   domain.Day(time.Unix(ts, 0)),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: vol.InexactFloat64(),
		})
	}
	return bars, nil
}
