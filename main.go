package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperTrader/config"
	"paperTrader/internal/api"
	"paperTrader/internal/bootstrap"
	"paperTrader/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Logger, store, price provider and engine
	application, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer application.Close()
	appLogger := application.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Scheduler
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched, err = scheduler.New(scheduler.Config{Logger: appLogger, Location: cfg.SchedulerLocation})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize scheduler")
			log.Fatalf("FATAL: Failed to initialize scheduler: %v", err)
		}
		jobs := []struct {
			schedule string
			job      scheduler.Job
		}{
			{cfg.PromotionSchedule, scheduler.NewPromotePendingJob(application.Engine, appLogger)},
			{cfg.ExpirySchedule, scheduler.NewCloseExpiredJob(application.Engine, appLogger)},
			{cfg.SnapshotSchedule, scheduler.NewSnapshotJob(application.Engine, appLogger)},
		}
		for _, j := range jobs {
			if err := sched.AddJob(j.schedule, j.job); err != nil {
				appLogger.Error(ctx, err, "FATAL: Failed to register scheduled job")
				log.Fatalf("FATAL: Failed to register job %s: %v", j.job.Name(), err)
			}
		}
		sched.Start()
	} else {
		appLogger.Info(ctx, "Scheduler disabled")
	}

	// 4. HTTP server
	server, err := api.New(api.Config{
		Addr:           cfg.HTTPAddr,
		Service:        application.Engine,
		Logger:         appLogger,
		Health:         application.Repo.Ping,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize HTTP server")
		log.Fatalf("FATAL: Failed to initialize HTTP server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(context.Background(), err, "HTTP server exited with error")
		}
	}

	// 5. Graceful shutdown: stop accepting requests, then let running jobs finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, err, "Error shutting down HTTP server")
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
