package scheduler

import (
	"context"
	"fmt"
	"time"

	"paperTrader/internal/ports"

	"github.com/robfig/cron/v3"
)

// Default cron specs (with seconds), evaluated in the scheduler's location.
const (
	DefaultPromotionSchedule = "0 35 9 * * MON-FRI"  // Shortly after the open
	DefaultExpirySchedule    = "0 5 16 * * MON-FRI"  // After the close
	DefaultSnapshotSchedule  = "0 30 16 * * MON-FRI" // End of day
)

const defaultJobTimeout = 10 * time.Minute

// Job represents a scheduled job
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Config holds configuration for the Scheduler.
type Config struct {
	Logger     ports.Logger
	Location   *time.Location // Defaults to UTC
	JobTimeout time.Duration  // Upper bound for one run of a job
}

// Scheduler runs jobs on cron schedules. Runs of the same job never overlap and a
// panicking job is recovered, so one bad run cannot stop the others.
type Scheduler struct {
	cron    *cron.Cron
	logger  ports.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new scheduler
func New(cfg Config) (*Scheduler, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for scheduler")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	cl := cronLogger{logger: cfg.Logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  cfg.Logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// AddJob registers job under a cron schedule.
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "0 35 9 * * MON-FRI" - 9:35 on weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(job); err != nil {
			s.logger.Error(s.ctx, err, "Job failed", map[string]interface{}{"job": job.Name()})
		}
	})
	if err != nil {
		return fmt.Errorf("%w: schedule %q for job %s: %w", ports.ErrConfigurationError, schedule, job.Name(), err)
	}
	s.logger.Info(s.ctx, "Job registered", map[string]interface{}{"job": job.Name(), "schedule": schedule})
	return nil
}

// Start starts the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "Scheduler started", map[string]interface{}{"jobs": len(s.cron.Entries())})
}

// Stop cancels running jobs and waits for them to return, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info(ctx, "Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn(ctx, "Timeout waiting for running jobs to stop")
	}
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info(s.ctx, "Running job immediately", map[string]interface{}{"job": job.Name()})
	return s.run(job)
}

func (s *Scheduler) run(job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug(ctx, "Running job", map[string]interface{}{"job": job.Name()})
	err := job.Run(ctx)
	if err == nil {
		s.logger.Debug(ctx, "Job completed", map[string]interface{}{"job": job.Name(), "duration": time.Since(start).String()})
	}
	return err
}

// cronLogger adapts ports.Logger to cron.Logger.
type cronLogger struct {
	logger ports.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), "cron: "+msg, kv(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), err, "cron: "+msg, kv(keysAndValues))
}

func kv(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
