package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"paperTrader/internal/ports"

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

const chartBody = `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"ACME"},
"timestamp":[%d,%d,%d],
"indicators":{"quote":[{"open":[49.5,null,50.0],"close":[49.9,null,51.0],
"high":[50,null,51.5],"low":[49,null,49.8],"volume":[1000,null,2000]}]}}],"error":null}}`

func TestProvider_Historical(t *testing.T) {
	mon := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)
	wed := mon.AddDate(0, 0, 2)

	var period1, period2 int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chart/ACME", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		period1, _ = strconv.ParseInt(r.URL.Query().Get("period1"), 10, 64)
		period2, _ = strconv.ParseInt(r.URL.Query().Get("period2"), 10, 64)
		fmt.Fprintf(w, chartBody, mon.Unix(), tue.Unix(), wed.Unix())
	}))
	defer srv.Close()

	p, err := New(Config{Logger: &mockLogger{}, ChartURL: srv.URL + "/chart"})
	require.NoError(t, err)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	bars, err := p.Historical(context.Background(), "ACME", from, to)
	require.NoError(t, err)

	assert.Equal(t, from.Unix(), period1)
	assert.Equal(t, to.AddDate(0, 0, 1).Unix(), period2)
	require.Len(t, bars, 2, "null session skipped")
	assert.Equal(t, from, bars[0].Date)
	assert.Equal(t, to, bars[1].Date)
	assert.True(t, decimal.RequireFromString("50").Equal(bars[1].Open))
	assert.True(t, decimal.RequireFromString("51").Equal(bars[1].Close))
}

func TestProvider_HistoricalErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: "", wantErr: ports.ErrRateLimited},
		{name: "yahoo error", status: http.StatusNotFound, body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, wantErr: ports.ErrNoPriceData},
		{name: "garbage", status: http.StatusOK, body: "<html>", wantErr: ports.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p, err := New(Config{Logger: &mockLogger{}, ChartURL: srv.URL})
			require.NoError(t, err)
			_, err = p.Historical(context.Background(), "ZZZZ", time.Now(), time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProvider_Quote(t *testing.T) {
	tests := []struct {
		name      string
		quote     QuoteFunc
		wantPrice string
		wantErr   error
	}{
		{
			name:      "price",
			quote:     func(ctx context.Context, s string) (float64, error) { return 187.25, nil },
			wantPrice: "187.25",
		},
		{
			name:    "zero is no data",
			quote:   func(ctx context.Context, s string) (float64, error) { return 0, nil },
			wantErr: ports.ErrNoPriceData,
		},
		{
			name:    "failure",
			quote:   func(ctx context.Context, s string) (float64, error) { return 0, errors.New("crumb") },
			wantErr: ports.ErrProviderUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(Config{Logger: &mockLogger{}, Quote: tt.quote})
			require.NoError(t, err)
			price, err := p.Quote(context.Background(), "ACME")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantPrice).Equal(price))
		})
	}
}

func TestProvider_QuoteHonoursDeadline(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p, err := New(Config{Logger: &mockLogger{}, Quote: func(ctx context.Context, s string) (float64, error) {
		<-block
		return 1, nil
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Quote(ctx, "ACME")
	assert.ErrorIs(t, err, ports.ErrTimeout)
}
