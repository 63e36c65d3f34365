package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"paperTrader/internal/adapters/logger"
)

// Supported price providers.
const (
	ProviderAlpaca  = "alpaca"
	ProviderYahoo   = "yahoo"
	ProviderBinance = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBDriver string // sqlite3 (cgo) or sqlite (pure Go)
	DBPath   string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string

	// Price data
	PriceProvider   string
	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaFeed      string
	BinanceAPIKey   string
	BinanceSecret   string
	IsTestnet       bool
	PriceTimeout    time.Duration
	LookbackDays    int

	// Trading rules
	CommissionPerLeg   decimal.Decimal
	MinReturnThreshold decimal.Decimal            // Percentage points
	ModelThresholds    map[string]decimal.Decimal // MIN_RETURN_THRESHOLD_BY_MODEL, e.g. "v1=0.5,v2=2.0"
	HoldPeriodDays     int

	// Portfolio defaults
	DefaultStartingCapital decimal.Decimal
	DefaultMaxPositionSize decimal.Decimal
	DefaultMinConfidence   decimal.Decimal

	RecentTradesLimit int
	SweepConcurrency  int

	// HTTP
	HTTPAddr           string
	CORSAllowedOrigins []string

	// Scheduler
	SchedulerEnabled  bool
	SchedulerLocation *time.Location
	PromotionSchedule string
	ExpirySchedule    string
	SnapshotSchedule  string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", "sqlite3"))
	if cfg.DBDriver != "sqlite3" && cfg.DBDriver != "sqlite" {
		errs = append(errs, fmt.Sprintf("DB_DRIVER must be sqlite3 or sqlite, got %q", cfg.DBDriver))
	}
	cfg.DBPath = getEnv("DB_PATH", "./data/paper_trader.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	switch cfg.LogFormat {
	case "text", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be text, json or console, got %q", cfg.LogFormat))
	}

	// Price data
	cfg.PriceProvider = strings.ToLower(getEnv("PRICE_PROVIDER", ProviderYahoo))
	cfg.AlpacaAPIKey = getEnv("ALPACA_API_KEY", "")
	cfg.AlpacaAPISecret = getEnv("ALPACA_API_SECRET", "")
	cfg.AlpacaFeed = getEnv("ALPACA_FEED", "iex")
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecret = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	switch cfg.PriceProvider {
	case ProviderAlpaca:
		if cfg.AlpacaAPIKey == "" || cfg.AlpacaAPISecret == "" {
			errs = append(errs, "ALPACA_API_KEY and ALPACA_API_SECRET must be set when PRICE_PROVIDER=alpaca")
		}
	case ProviderYahoo, ProviderBinance:
	default:
		errs = append(errs, fmt.Sprintf("PRICE_PROVIDER must be alpaca, yahoo or binance, got %q", cfg.PriceProvider))
	}

	timeoutSeconds, err := getEnvAsIntRequired("PRICE_TIMEOUT_SECONDS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PRICE_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSeconds <= 0 {
		errs = append(errs, "PRICE_TIMEOUT_SECONDS must be positive")
	}
	cfg.PriceTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.LookbackDays, err = getEnvAsIntRequired("LOOKBACK_DAYS", 7)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOKBACK_DAYS: %v", err))
	} else if cfg.LookbackDays <= 0 {
		errs = append(errs, "LOOKBACK_DAYS must be positive")
	}

	// Trading rules
	cfg.CommissionPerLeg, err = getEnvAsDecimalRequired("COMMISSION_PER_LEG", decimal.NewFromInt(1))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_PER_LEG: %v", err))
	} else if cfg.CommissionPerLeg.IsNegative() {
		errs = append(errs, "COMMISSION_PER_LEG cannot be negative")
	}

	cfg.MinReturnThreshold, err = getEnvAsDecimalRequired("MIN_RETURN_THRESHOLD", decimal.NewFromInt(1))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_RETURN_THRESHOLD: %v", err))
	} else if cfg.MinReturnThreshold.IsNegative() {
		errs = append(errs, "MIN_RETURN_THRESHOLD cannot be negative")
	}

	cfg.ModelThresholds, err = parseThresholds(getEnv("MIN_RETURN_THRESHOLD_BY_MODEL", ""))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_RETURN_THRESHOLD_BY_MODEL: %v", err))
	}

	cfg.HoldPeriodDays, err = getEnvAsIntRequired("HOLD_PERIOD_DAYS", 7)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HOLD_PERIOD_DAYS: %v", err))
	} else if cfg.HoldPeriodDays <= 0 {
		errs = append(errs, "HOLD_PERIOD_DAYS must be positive")
	}

	// Portfolio defaults
	cfg.DefaultStartingCapital, err = getEnvAsDecimalRequired("DEFAULT_STARTING_CAPITAL", decimal.NewFromInt(100000))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_STARTING_CAPITAL: %v", err))
	} else if !cfg.DefaultStartingCapital.IsPositive() {
		errs = append(errs, "DEFAULT_STARTING_CAPITAL must be positive")
	}

	cfg.DefaultMaxPositionSize, err = getEnvAsDecimalRequired("DEFAULT_MAX_POSITION_SIZE", decimal.RequireFromString("0.10"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_MAX_POSITION_SIZE: %v", err))
	} else if !isFraction(cfg.DefaultMaxPositionSize) || cfg.DefaultMaxPositionSize.IsZero() {
		errs = append(errs, "DEFAULT_MAX_POSITION_SIZE must be in (0, 1]")
	}

	cfg.DefaultMinConfidence, err = getEnvAsDecimalRequired("DEFAULT_MIN_CONFIDENCE", decimal.RequireFromString("0.60"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_MIN_CONFIDENCE: %v", err))
	} else if !isFraction(cfg.DefaultMinConfidence) {
		errs = append(errs, "DEFAULT_MIN_CONFIDENCE must be in [0, 1]")
	}

	cfg.RecentTradesLimit = getEnvAsInt("RECENT_TRADES_LIMIT", 20)
	if cfg.RecentTradesLimit <= 0 {
		errs = append(errs, "RECENT_TRADES_LIMIT must be positive")
	}
	cfg.SweepConcurrency = getEnvAsInt("SWEEP_CONCURRENCY", 4)
	if cfg.SweepConcurrency <= 0 {
		errs = append(errs, "SWEEP_CONCURRENCY must be positive")
	}

	// HTTP
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))

	// Scheduler
	cfg.SchedulerEnabled = getEnvAsBool("SCHEDULER_ENABLED", true)
	tz := getEnv("SCHEDULER_TIMEZONE", "America/New_York")
	cfg.SchedulerLocation, err = time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SCHEDULER_TIMEZONE %q: %v", tz, err))
	}
	cfg.PromotionSchedule = getEnv("PROMOTION_SCHEDULE", "0 35 9 * * MON-FRI")
	cfg.ExpirySchedule = getEnv("EXPIRY_SCHEDULE", "0 5 16 * * MON-FRI")
	cfg.SnapshotSchedule = getEnv("SNAPSHOT_SCHEDULE", "0 30 16 * * MON-FRI")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// parseThresholds reads "v1=0.5,v2=2.0" into a per-model map.
func parseThresholds(raw string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, pair := range splitList(raw) {
		model, value, ok := strings.Cut(pair, "=")
		model = strings.TrimSpace(model)
		if !ok || model == "" {
			return nil, fmt.Errorf("expected model=threshold, got %q", pair)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("threshold for %s: %w", model, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("threshold for %s cannot be negative", model)
		}
		out[model] = d
	}
	return out, nil
}

func isFraction(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimalRequired(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(valueStr))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
