package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"paperTrader/internal/domain"

	"golang.org/x/sync/errgroup"
)

// SweepReport aggregates a sweep over all portfolios.
type SweepReport struct {
	Portfolios int `json:"portfolios"`
	Promoted   int `json:"promoted"`
	Cancelled  int `json:"cancelled"`
	Closed     int `json:"closed"`
	Snapshots  int `json:"snapshots"`
	Failed     int `json:"failed"` // Portfolios whose sweep returned an error
}

// SweepPending promotes pending trades in every portfolio.
func (e *Engine) SweepPending(ctx context.Context) (SweepReport, error) {
	return e.sweep(ctx, "SweepPending", func(ctx context.Context, p *domain.Portfolio, r *SweepReport) error {
		res, err := e.promoteLocked(ctx, p)
		r.Promoted += res.Promoted
		r.Cancelled += res.Cancelled
		if res.Promoted+res.Cancelled > 0 {
			if _, rerr := e.recomputeLocked(ctx, p); rerr != nil {
				err = errors.Join(err, rerr)
			} else {
				r.Snapshots++
			}
		}
		return err
	})
}

// SweepExpired closes positions past their hold period in every portfolio.
// Deactivated portfolios are included so their open positions still expire.
func (e *Engine) SweepExpired(ctx context.Context) (SweepReport, error) {
	return e.sweep(ctx, "SweepExpired", func(ctx context.Context, p *domain.Portfolio, r *SweepReport) error {
		closed, err := e.expireLocked(ctx, p)
		r.Closed += closed
		if closed > 0 {
			if _, rerr := e.recomputeLocked(ctx, p); rerr != nil {
				err = errors.Join(err, rerr)
			} else {
				r.Snapshots++
			}
		}
		return err
	})
}

// SweepSnapshots recomputes every portfolio and writes today's snapshots.
func (e *Engine) SweepSnapshots(ctx context.Context) (SweepReport, error) {
	return e.sweep(ctx, "SweepSnapshots", func(ctx context.Context, p *domain.Portfolio, r *SweepReport) error {
		if _, err := e.recomputeLocked(ctx, p); err != nil {
			return err
		}
		r.Snapshots++
		return nil
	})
}

// SweepAll promotes, expires and recomputes every portfolio, recomputing once at the end.
func (e *Engine) SweepAll(ctx context.Context) (SweepReport, error) {
	return e.sweep(ctx, "SweepAll", func(ctx context.Context, p *domain.Portfolio, r *SweepReport) error {
		res, perr := e.promoteLocked(ctx, p)
		r.Promoted += res.Promoted
		r.Cancelled += res.Cancelled

		closed, xerr := e.expireLocked(ctx, p)
		r.Closed += closed

		_, rerr := e.recomputeLocked(ctx, p)
		if rerr == nil {
			r.Snapshots++
		}
		return errors.Join(perr, xerr, rerr)
	})
}

type sweepFunc func(ctx context.Context, p *domain.Portfolio, r *SweepReport) error

// sweep runs fn for each portfolio under its lock, a bounded number at a time.
// Inactive portfolios are swept too; IsActive only gates new signals.
// A failing portfolio does not stop the others; their errors are joined.
func (e *Engine) sweep(ctx context.Context, op string, fn sweepFunc) (SweepReport, error) {
	portfolios, err := e.portfolios.FindPortfolios(ctx, false)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%s: %w", op, err)
	}

	total := SweepReport{Portfolios: len(portfolios)}
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(e.cfg.SweepConcurrency)

	for _, p := range portfolios {
		g.Go(func() error {
			var r SweepReport
			err := e.withPortfolio(ctx, p.ID, func(p *domain.Portfolio) error {
				return fn(ctx, p, &r)
			})

			mu.Lock()
			defer mu.Unlock()
			total.Promoted += r.Promoted
			total.Cancelled += r.Cancelled
			total.Closed += r.Closed
			total.Snapshots += r.Snapshots
			if err != nil {
				total.Failed++
				errs = append(errs, fmt.Errorf("portfolio %s: %w", p.ID, err))
				e.logger.Error(ctx, err, op+": Portfolio sweep failed", map[string]interface{}{"portfolioID": p.ID})
			}
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info(ctx, op+": Sweep finished", map[string]interface{}{
		"portfolios": total.Portfolios,
		"promoted":   total.Promoted,
		"cancelled":  total.Cancelled,
		"closed":     total.Closed,
		"snapshots":  total.Snapshots,
		"failed":     total.Failed,
	})
	return total, errors.Join(errs...)
}

// withPortfolio reloads the portfolio under its lock before calling fn.
func (e *Engine) withPortfolio(ctx context.Context, portfolioID string, fn func(p *domain.Portfolio) error) error {
	unlock := e.locks.lock(portfolioID)
	defer unlock()

	p, err := e.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return err
	}
	return fn(p)
}
