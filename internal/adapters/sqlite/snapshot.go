package sqlite

import (
	"context"
	"fmt"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

// UpsertSnapshot writes the snapshot for its (portfolio, day), replacing any existing row.
func (r *Repository) UpsertSnapshot(ctx context.Context, s *domain.PortfolioSnapshot) error {
	const query = `
	INSERT INTO portfolio_snapshots (
		portfolio_id, snapshot_date, cash, open_value, total_value,
		cumulative_return, cumulative_pnl, open_position_count, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (portfolio_id, snapshot_date) DO UPDATE SET
		cash = excluded.cash,
		open_value = excluded.open_value,
		total_value = excluded.total_value,
		cumulative_return = excluded.cumulative_return,
		cumulative_pnl = excluded.cumulative_pnl,
		open_position_count = excluded.open_position_count,
		updated_at = excluded.updated_at`

	day := domain.Day(s.Date)
	_, err := r.db.ExecContext(ctx, query,
		s.PortfolioID, day.Format(dateLayout), s.Cash, s.OpenValue, s.TotalValue,
		s.CumulativeReturn, s.CumulativePnL, s.OpenPositionCount, formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("%w: failed to upsert snapshot %s/%s: %w", ports.ErrUpdateFailed, s.PortfolioID, day.Format(dateLayout), err)
	}
	r.logger.Debug(ctx, "Snapshot upserted", map[string]interface{}{
		"portfolioID": s.PortfolioID,
		"date":        day.Format(dateLayout),
		"totalValue":  s.TotalValue.String(),
	})
	return nil
}

// FindSnapshots lists snapshots with dates in [from, to], oldest first.
// A zero from or to leaves that side of the range open.
func (r *Repository) FindSnapshots(ctx context.Context, portfolioID string, from, to time.Time) ([]*domain.PortfolioSnapshot, error) {
	query := `
	SELECT portfolio_id, snapshot_date, cash, open_value, total_value,
	       cumulative_return, cumulative_pnl, open_position_count, updated_at
	FROM portfolio_snapshots
	WHERE portfolio_id = ?`
	args := []interface{}{portfolioID}
	if !from.IsZero() {
		query += ` AND snapshot_date >= ?`
		args = append(args, domain.Day(from).Format(dateLayout))
	}
	if !to.IsZero() {
		query += ` AND snapshot_date <= ?`
		args = append(args, domain.Day(to).Format(dateLayout))
	}
	query += ` ORDER BY snapshot_date ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query snapshots for %s: %w", ports.ErrQueryFailed, portfolioID, err)
	}
	defer rows.Close()

	snapshots := make([]*domain.PortfolioSnapshot, 0)
	for rows.Next() {
		s := &domain.PortfolioSnapshot{}
		var date, updatedAt string
		if err := rows.Scan(&s.PortfolioID, &date, &s.Cash, &s.OpenValue, &s.TotalValue,
			&s.CumulativeReturn, &s.CumulativePnL, &s.OpenPositionCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan snapshot: %w", ports.ErrQueryFailed, err)
		}
		if s.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("%w: bad snapshot date %q: %w", ports.ErrQueryFailed, date, err)
		}
		if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("%w: bad snapshot timestamp %q: %w", ports.ErrQueryFailed, updatedAt, err)
		}
		snapshots = append(snapshots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating snapshot rows: %w", ports.ErrQueryFailed, err)
	}
	return snapshots, nil
}
