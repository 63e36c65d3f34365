package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

const portfolioColumns = `
	id, name, starting_capital, current_cash, total_value, total_return_pct,
	total_trades, winning_trades, losing_trades, win_rate, is_active,
	min_confidence, max_position_size, created_at, updated_at`

// CreatePortfolio saves a new portfolio.
func (r *Repository) CreatePortfolio(ctx context.Context, p *domain.Portfolio) error {
	const query = `
	INSERT INTO portfolios (` + portfolioColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.StartingCapital, p.CurrentCash, p.TotalValue, p.TotalReturnPct,
		p.TotalTrades, p.WinningTrades, p.LosingTrades, p.WinRate, p.IsActive,
		p.MinConfidence, p.MaxPositionSize, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: portfolio %s: %w", ports.ErrDuplicateEntry, p.ID, err)
		}
		return fmt.Errorf("%w: failed to insert portfolio %s: %w", ports.ErrUpdateFailed, p.ID, err)
	}
	r.logger.Debug(ctx, "Portfolio created", map[string]interface{}{"portfolioID": p.ID, "name": p.Name})
	return nil
}

// UpdatePortfolio overwrites the mutable fields of a portfolio.
func (r *Repository) UpdatePortfolio(ctx context.Context, p *domain.Portfolio) error {
	return r.updatePortfolio(ctx, r.db, p)
}

func (r *Repository) updatePortfolio(ctx context.Context, db execer, p *domain.Portfolio) error {
	const query = `
	UPDATE portfolios
	SET name = ?, current_cash = ?, total_value = ?, total_return_pct = ?,
	    total_trades = ?, winning_trades = ?, losing_trades = ?, win_rate = ?,
	    is_active = ?, min_confidence = ?, max_position_size = ?, updated_at = ?
	WHERE id = ?`

	res, err := db.ExecContext(ctx, query,
		p.Name, p.CurrentCash, p.TotalValue, p.TotalReturnPct,
		p.TotalTrades, p.WinningTrades, p.LosingTrades, p.WinRate,
		p.IsActive, p.MinConfidence, p.MaxPositionSize, formatTime(p.UpdatedAt),
		p.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to update portfolio %s: %w", ports.ErrUpdateFailed, p.ID, err)
	}
	return requireAffected(res, "portfolio", p.ID)
}

// FindPortfolioByID retrieves a portfolio by ID. Returns nil, nil if absent.
func (r *Repository) FindPortfolioByID(ctx context.Context, id string) (*domain.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE id = ?`

	p, err := scanPortfolio(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Portfolio not found by ID", map[string]interface{}{"portfolioID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query portfolio %s: %w", ports.ErrQueryFailed, id, err)
	}
	return p, nil
}

// FindPortfolios retrieves portfolios ordered by creation time.
func (r *Repository) FindPortfolios(ctx context.Context, activeOnly bool) ([]*domain.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query portfolios: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	portfolios := make([]*domain.Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan portfolio: %w", ports.ErrQueryFailed, err)
		}
		portfolios = append(portfolios, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating portfolio rows: %w", ports.ErrQueryFailed, err)
	}
	return portfolios, nil
}

func scanPortfolio(s scanner) (*domain.Portfolio, error) {
	p := &domain.Portfolio{}
	var createdAt, updatedAt string
	err := s.Scan(
		&p.ID, &p.Name, &p.StartingCapital, &p.CurrentCash, &p.TotalValue, &p.TotalReturnPct,
		&p.TotalTrades, &p.WinningTrades, &p.LosingTrades, &p.WinRate, &p.IsActive,
		&p.MinConfidence, &p.MaxPositionSize, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return p, nil
}
