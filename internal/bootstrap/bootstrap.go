// Package bootstrap wires configuration into a ready engine. The service binary
// and the command line tools share it.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"paperTrader/config"
	"paperTrader/internal/adapters/alpaca"
	"paperTrader/internal/adapters/binanceclient"
	"paperTrader/internal/adapters/logger"
	"paperTrader/internal/adapters/sqlite"
	"paperTrader/internal/adapters/yahoo"
	"paperTrader/internal/app"
	"paperTrader/internal/ports"
	"paperTrader/internal/pricing"
	"paperTrader/internal/risk"
)

// App bundles the long-lived components built from a Config.
type App struct {
	Config   *config.Config
	Logger   ports.Logger
	Repo     *sqlite.Repository
	Provider ports.PriceProvider
	Engine   *app.Engine
}

// NewLogger builds the logger selected by LOG_FORMAT and LOG_LEVEL.
func NewLogger(cfg *config.Config) ports.Logger {
	return logger.New(logger.Config{
		Level:  cfg.LogLevel.String(),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
}

// NewProvider builds the price provider selected by PRICE_PROVIDER.
func NewProvider(cfg *config.Config, log ports.Logger) (ports.PriceProvider, error) {
	switch cfg.PriceProvider {
	case config.ProviderAlpaca:
		return alpaca.New(alpaca.Config{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			Feed:      cfg.AlpacaFeed,
			Logger:    log,
		})
	case config.ProviderBinance:
		return binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecret,
			UseTestnet: cfg.IsTestnet,
			Logger:     log,
		})
	case config.ProviderYahoo:
		return yahoo.New(yahoo.Config{Logger: log})
	default:
		return nil, fmt.Errorf("%w: unknown price provider %q", ports.ErrConfigurationError, cfg.PriceProvider)
	}
}

// New opens the store and builds the engine. Callers must Close the App.
func New(cfg *config.Config) (*App, error) {
	log := NewLogger(cfg)
	ctx := context.Background()
	log.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	repo, err := sqlite.NewRepository(sqlite.Config{
		Driver: cfg.DBDriver,
		DBPath: cfg.DBPath,
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database repository: %w", err)
	}
	log.Info(ctx, "Database repository initialized", map[string]interface{}{"driver": cfg.DBDriver, "path": cfg.DBPath})

	a, err := build(cfg, log, repo)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, log ports.Logger, repo *sqlite.Repository) (*App, error) {
	provider, err := NewProvider(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize price provider: %w", err)
	}
	resolver, err := pricing.NewResolver(pricing.Config{
		Provider:     provider,
		Logger:       log,
		Timeout:      cfg.PriceTimeout,
		LookbackDays: cfg.LookbackDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize price resolver: %w", err)
	}
	gate, err := risk.NewGate(risk.GateConfig{
		MinReturnThreshold: cfg.MinReturnThreshold,
		ModelThresholds:    cfg.ModelThresholds,
	}, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize admission gate: %w", err)
	}

	engine, err := app.NewEngine(app.Config{
		CommissionPerLeg:       cfg.CommissionPerLeg,
		HoldPeriodDays:         cfg.HoldPeriodDays,
		RecentTradesLimit:      cfg.RecentTradesLimit,
		SweepConcurrency:       cfg.SweepConcurrency,
		DefaultStartingCapital: cfg.DefaultStartingCapital,
		DefaultMaxPositionSize: cfg.DefaultMaxPositionSize,
		DefaultMinConfidence:   cfg.DefaultMinConfidence,
	}, app.Dependencies{
		Logger:     log,
		Portfolios: repo,
		Trades:     repo,
		Snapshots:  repo,
		Ledger:     repo,
		Prices:     resolver,
		Gate:       gate,
		Sizer:      risk.NewSizer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	log.Info(context.Background(), "Engine initialized", map[string]interface{}{"provider": provider.Name()})

	return &App{Config: cfg, Logger: log, Repo: repo, Provider: provider, Engine: engine}, nil
}

// Close releases the database.
func (a *App) Close() {
	if err := a.Repo.Close(); err != nil {
		a.Logger.Error(context.Background(), err, "Error closing database repository")
	}
}
