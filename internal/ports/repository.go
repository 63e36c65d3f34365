package ports

import (
	"context"
	"time"

	"paperTrader/internal/domain"

	"github.com/shopspring/decimal"
)

// PortfolioRepository defines the interface for storing and retrieving portfolios.
type PortfolioRepository interface {
	// CreatePortfolio saves a new portfolio.
	CreatePortfolio(ctx context.Context, p *domain.Portfolio) error
	// UpdatePortfolio overwrites the mutable fields of an existing portfolio.
	UpdatePortfolio(ctx context.Context, p *domain.Portfolio) error
	// FindPortfolioByID returns nil, nil if not found.
	FindPortfolioByID(ctx context.Context, id string) (*domain.Portfolio, error)
	// FindPortfolios retrieves portfolios ordered by creation time; activeOnly filters deactivated ones.
	FindPortfolios(ctx context.Context, activeOnly bool) ([]*domain.Portfolio, error)
}

// TradeRepository defines the interface for storing and retrieving simulated trades.
type TradeRepository interface {
	// CreateTrade saves a trade that does not move cash (PENDING).
	CreateTrade(ctx context.Context, t *domain.Trade) error
	// UpdateTrade overwrites status, entry, exit and cancel fields.
	UpdateTrade(ctx context.Context, t *domain.Trade) error
	// FindTradeByID returns nil, nil if not found.
	FindTradeByID(ctx context.Context, id string) (*domain.Trade, error)
	// FindActiveByTicker returns the PENDING or OPEN trade for ticker in the portfolio, or nil, nil.
	FindActiveByTicker(ctx context.Context, portfolioID, ticker string) (*domain.Trade, error)
	// FindByStatus lists a portfolio's trades in the given status, oldest first.
	FindByStatus(ctx context.Context, portfolioID string, status domain.TradeStatus) ([]*domain.Trade, error)
	// FindRecentClosed lists the most recently closed trades, newest first, up to limit.
	FindRecentClosed(ctx context.Context, portfolioID string, limit int) ([]*domain.Trade, error)
	// SumRealizedPnL sums realized P&L over all closed trades of the portfolio.
	SumRealizedPnL(ctx context.Context, portfolioID string) (decimal.Decimal, error)
}

// Ledger persists a trade together with the portfolio whose cash it moved, atomically.
type Ledger interface {
	// RecordEntry inserts (insert=true) or updates the trade and writes the portfolio in one transaction.
	RecordEntry(ctx context.Context, p *domain.Portfolio, t *domain.Trade, insert bool) error
	// RecordExit updates the closed trade and writes the portfolio in one transaction.
	RecordExit(ctx context.Context, p *domain.Portfolio, t *domain.Trade) error
}

// SnapshotRepository stores daily portfolio snapshots.
type SnapshotRepository interface {
	// UpsertSnapshot writes the snapshot for (PortfolioID, Date), replacing any existing row.
	UpsertSnapshot(ctx context.Context, s *domain.PortfolioSnapshot) error
	// FindSnapshots lists snapshots with Date within [from, to], oldest first.
	FindSnapshots(ctx context.Context, portfolioID string, from, to time.Time) ([]*domain.PortfolioSnapshot, error)
}
