package scheduler

import (
	"context"

	"paperTrader/internal/app"
	"paperTrader/internal/ports"
)

// Sweeper is the part of the engine the jobs drive.
type Sweeper interface {
	SweepPending(ctx context.Context) (app.SweepReport, error)
	SweepExpired(ctx context.Context) (app.SweepReport, error)
	SweepSnapshots(ctx context.Context) (app.SweepReport, error)
}

// sweepJob runs one engine sweep over all portfolios.
type sweepJob struct {
	name   string
	sweep  func(ctx context.Context) (app.SweepReport, error)
	logger ports.Logger
}

// NewPromotePendingJob fills PENDING trades whose entry price has become available.
func NewPromotePendingJob(s Sweeper, logger ports.Logger) Job {
	return &sweepJob{name: "promote-pending", sweep: s.SweepPending, logger: logger}
}

// NewCloseExpiredJob closes positions whose hold period has elapsed.
func NewCloseExpiredJob(s Sweeper, logger ports.Logger) Job {
	return &sweepJob{name: "close-expired", sweep: s.SweepExpired, logger: logger}
}

// NewSnapshotJob writes the daily snapshot of every portfolio.
func NewSnapshotJob(s Sweeper, logger ports.Logger) Job {
	return &sweepJob{name: "snapshot", sweep: s.SweepSnapshots, logger: logger}
}

func (j *sweepJob) Name() string { return j.name }

// Run returns the joined per-portfolio errors; portfolios that succeeded keep their results.
func (j *sweepJob) Run(ctx context.Context) error {
	report, err := j.sweep(ctx)
	j.logger.Info(ctx, "Sweep job finished", map[string]interface{}{
		"job":        j.name,
		"portfolios": report.Portfolios,
		"promoted":   report.Promoted,
		"cancelled":  report.Cancelled,
		"closed":     report.Closed,
		"snapshots":  report.Snapshots,
		"failed":     report.Failed,
	})
	return err
}
