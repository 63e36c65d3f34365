package app

import (
	"context"
	"fmt"
	"strings"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/shopspring/decimal"
)

// CreatePortfolioRequest describes a new portfolio. Nil fields take the configured defaults.
type CreatePortfolioRequest struct {
	Name            string           `json:"name"`
	StartingCapital *decimal.Decimal `json:"startingCapital,omitempty"`
	MaxPositionSize *decimal.Decimal `json:"maxPositionSize,omitempty"`
	MinConfidence   *decimal.Decimal `json:"minConfidence,omitempty"`
}

// CreatePortfolio validates the request and stores an active portfolio.
func (e *Engine) CreatePortfolio(ctx context.Context, req CreatePortfolioRequest) (*domain.Portfolio, error) {
	op := "CreatePortfolio"
	capital := orDefault(req.StartingCapital, e.cfg.DefaultStartingCapital)
	maxPos := orDefault(req.MaxPositionSize, e.cfg.DefaultMaxPositionSize)
	minConf := orDefault(req.MinConfidence, e.cfg.DefaultMinConfidence)
	one := decimal.NewFromInt(1)

	var problems []string
	name := strings.TrimSpace(req.Name)
	if name == "" {
		problems = append(problems, "name is required")
	}
	if !capital.IsPositive() {
		problems = append(problems, "startingCapital must be positive")
	}
	if !maxPos.IsPositive() || maxPos.GreaterThan(one) {
		problems = append(problems, "maxPositionSize must be in (0, 1]")
	}
	if minConf.IsNegative() || minConf.GreaterThan(one) {
		problems = append(problems, "minConfidence must be in [0, 1]")
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrInvalidRequest, strings.Join(problems, "; "))
	}

	p := domain.NewPortfolio(name, e.clock(),
		domain.WithStartingCapital(capital),
		domain.WithMaxPositionSize(maxPos),
		domain.WithMinConfidence(minConf),
	)
	if err := e.portfolios.CreatePortfolio(ctx, p); err != nil {
		e.logger.Error(ctx, err, op+": Failed to save portfolio", map[string]interface{}{"name": name})
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.logger.Info(ctx, op+": Portfolio created", map[string]interface{}{
		"portfolioID":     p.ID,
		"name":            p.Name,
		"startingCapital": p.StartingCapital.StringFixed(2),
	})
	return p, nil
}

// GetPortfolio returns ports.ErrNotFound for unknown IDs.
func (e *Engine) GetPortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error) {
	return e.loadPortfolio(ctx, portfolioID)
}

// ListPortfolios returns all portfolios, or only the active ones.
func (e *Engine) ListPortfolios(ctx context.Context, activeOnly bool) ([]*domain.Portfolio, error) {
	return e.portfolios.FindPortfolios(ctx, activeOnly)
}

// DeactivatePortfolio stops a portfolio from admitting signals. Open and pending trades
// are left to the regular sweeps.
func (e *Engine) DeactivatePortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error) {
	op := "DeactivatePortfolio"
	unlock := e.locks.lock(portfolioID)
	defer unlock()

	p, err := e.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return p, nil
	}
	p.Deactivate(e.clock())
	if err := e.portfolios.UpdatePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.logger.Info(ctx, op+": Portfolio deactivated", map[string]interface{}{"portfolioID": p.ID})
	return p, nil
}

func orDefault(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}
