package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	dailyInterval = "1d"
	maxKlineLimit = 1500
)

// Client implements ports.PriceProvider on Binance USD-M futures market data.
// Tickers are mapped to symbols by appending the quote asset (BTC -> BTCUSDT).
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	quoteAsset    string
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	QuoteAsset string // Defaults to USDT
	BaseURL    string // Overrides the production/testnet URL, used by tests
	Logger     ports.Logger
}

// New creates a new Binance price provider.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Debug(context.Background(), "Binance API keys not set; only public market data endpoints are used")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	quote := strings.ToUpper(strings.TrimSpace(cfg.QuoteAsset))
	if quote == "" {
		quote = "USDT"
	}

	return &Client{futuresClient: client, logger: cfg.Logger, quoteAsset: quote}, nil
}

// Name identifies the provider in logs.
func (c *Client) Name() string { return "binance" }

func (c *Client) symbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.HasSuffix(t, c.quoteAsset) {
		return t
	}
	return t + c.quoteAsset
}

// IsMarketOpen always reports true; crypto markets trade around the clock.
func (c *Client) IsMarketOpen(ctx context.Context) (bool, error) {
	return true, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Signature or key problems
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrNoPriceData
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1120, -1125, -1127, -1128, -1130:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrProviderUnavailable
		}
		c.logger.Warn(ctx, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	case errors.Is(err, ports.ErrNoPriceData):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Warn(ctx, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// Quote retrieves the last traded price for ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	op := "Quote"
	symbol := c.symbol(ticker)
	stats, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}
	if len(stats) == 0 {
		return decimal.Zero, c.handleError(ctx, fmt.Errorf("%w for symbol %s", ports.ErrNoPriceData, symbol), op)
	}

	price, err := decimal.NewFromString(stats[0].LastPrice)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, fmt.Errorf("could not parse price '%s': %w", stats[0].LastPrice, err), op)
	}
	return price, nil
}

// Historical fetches daily klines whose open time falls within [from, to].
func (c *Client) Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	op := "Historical"
	symbol := c.symbol(ticker)
	start := domain.Day(from)
	end := domain.Day(to).Add(24*time.Hour - time.Millisecond)

	var bars []domain.Bar
	cursor := start
	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(dailyInterval).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bar, err := translateKline(k, ticker)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			bars = append(bars, bar)
		}
		last := klines[len(klines)-1]
		cursor = time.UnixMilli(last.CloseTime + 1)
		if cursor.After(end) || len(klines) < maxKlineLimit {
			break
		}
	}

	c.logger.Debug(ctx, "Fetched daily klines", map[string]interface{}{"symbol": symbol, "count": len(bars)})
	return bars, nil
}

func translateKline(k *futures.Kline, ticker string) (domain.Bar, error) {
	if k == nil {
		return domain.Bar{}, errors.New("received nil kline")
	}
	parse := func(name, s string) (decimal.Decimal, error) {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing %s '%s': %w", name, s, err)
		}
		return v, nil
	}

	var (
		bar = domain.Bar{Ticker: strings.ToUpper(ticker), Date: domain.Day(time.UnixMilli(k.OpenTime))}
		err error
	)
	if bar.Open, err = parse("open price", k.Open); err != nil {
		return domain.Bar{}, err
	}
	if bar.High, err = parse("high price", k.High); err != nil {
		return domain.Bar{}, err
	}
	if bar.Low, err = parse("low price", k.Low); err != nil {
		return domain.Bar{}, err
	}
	if bar.Close, err = parse("close price", k.Close); err != nil {
		return domain.Bar{}, err
	}
	vol, err := parse("volume", k.Volume)
	if err != nil {
		return domain.Bar{}, err
	}
	bar.Volume = vol.InexactFloat64()
	return bar, nil
}
