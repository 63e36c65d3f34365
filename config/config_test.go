package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperTrader/internal/adapters/logger"
)

var allKeys = []string{
	"DB_DRIVER", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "PRICE_PROVIDER",
	"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_FEED", "BINANCE_API_KEY", "BINANCE_API_SECRET",
	"IS_TESTNET", "PRICE_TIMEOUT_SECONDS", "LOOKBACK_DAYS", "COMMISSION_PER_LEG",
	"MIN_RETURN_THRESHOLD", "MIN_RETURN_THRESHOLD_BY_MODEL", "HOLD_PERIOD_DAYS",
	"DEFAULT_STARTING_CAPITAL", "DEFAULT_MAX_POSITION_SIZE", "DEFAULT_MIN_CONFIDENCE",
	"RECENT_TRADES_LIMIT", "SWEEP_CONCURRENCY", "HTTP_ADDR", "CORS_ALLOWED_ORIGINS",
	"SCHEDULER_ENABLED", "SCHEDULER_TIMEZONE", "PROMOTION_SCHEDULE", "EXPIRY_SCHEDULE", "SNAPSHOT_SCHEDULE",
}

// clearEnv blanks every key so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "./data/paper_trader.db", cfg.DBPath)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ProviderYahoo, cfg.PriceProvider)
	assert.Equal(t, 5*time.Second, cfg.PriceTimeout)
	assert.Equal(t, 7, cfg.LookbackDays)
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.CommissionPerLeg))
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.MinReturnThreshold))
	assert.Empty(t, cfg.ModelThresholds)
	assert.Equal(t, 7, cfg.HoldPeriodDays)
	assert.True(t, decimal.NewFromInt(100000).Equal(cfg.DefaultStartingCapital))
	assert.True(t, decimal.RequireFromString("0.1").Equal(cfg.DefaultMaxPositionSize))
	assert.True(t, decimal.RequireFromString("0.6").Equal(cfg.DefaultMinConfidence))
	assert.Equal(t, 20, cfg.RecentTradesLimit)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, "America/New_York", cfg.SchedulerLocation.String())
	assert.Equal(t, "0 35 9 * * MON-FRI", cfg.PromotionSchedule)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "SQLITE")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("PRICE_PROVIDER", "alpaca")
	t.Setenv("ALPACA_API_KEY", "key")
	t.Setenv("ALPACA_API_SECRET", "secret")
	t.Setenv("COMMISSION_PER_LEG", "0.50")
	t.Setenv("MIN_RETURN_THRESHOLD_BY_MODEL", "v1=0.5, v2=2.0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ProviderAlpaca, cfg.PriceProvider)
	assert.True(t, decimal.RequireFromString("0.5").Equal(cfg.CommissionPerLeg))
	require.Len(t, cfg.ModelThresholds, 2)
	assert.True(t, decimal.RequireFromString("2").Equal(cfg.ModelThresholds["v2"]))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, time.UTC, cfg.SchedulerLocation)
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICE_PROVIDER", "alpaca")
	t.Setenv("HOLD_PERIOD_DAYS", "soon")
	t.Setenv("DEFAULT_MAX_POSITION_SIZE", "1.5")
	t.Setenv("MIN_RETURN_THRESHOLD_BY_MODEL", "v1")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "ALPACA_API_KEY")
	assert.Contains(t, msg, "HOLD_PERIOD_DAYS")
	assert.Contains(t, msg, "DEFAULT_MAX_POSITION_SIZE")
	assert.Contains(t, msg, "MIN_RETURN_THRESHOLD_BY_MODEL")
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "two models", raw: "v1=0.5,v2=2", want: map[string]string{"v1": "0.5", "v2": "2"}},
		{name: "missing value", raw: "v1=", wantErr: true},
		{name: "negative", raw: "v1=-1", wantErr: true},
		{name: "no model", raw: "=1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseThresholds(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for k, v := range tt.want {
				assert.True(t, decimal.RequireFromString(v).Equal(got[k]), k)
			}
		})
	}
}
