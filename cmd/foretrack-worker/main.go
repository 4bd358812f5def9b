package main

import (
	"context"
	"errors"
	"os"
	"time"

	"foretrack/internal/cli"
	"foretrack/internal/log"
	"foretrack/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap("foretrack-worker")
	logger.Info("Starting foretrack-worker")

	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}

	scheduler := worker.NewScheduler(logger)
	var warmer worker.RateWarmer
	if app.Converter != nil {
		warmer = app.Converter
	}
	err = worker.Register(scheduler, worker.Schedules{
		Recurring: cfg.RecurringSchedule,
		Summary:   cfg.SummarySchedule,
		Rates:     cfg.RatesSchedule,
	}, app.Processor, app.Summary, warmer)
	if err != nil {
		logger.Error("Failed to register jobs", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		scheduler.Stop(ctx)
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	})

	// Catch up on anything that came due while the worker was down.
	if err := scheduler.RunNow(ctx, worker.JobRecurring); err != nil {
		logger.Error("Startup recurring run failed", log.FieldError, err)
	}
	if warmer != nil {
		if err := scheduler.RunNow(ctx, worker.JobRates); err != nil {
			logger.Warn("Startup rates warm-up failed", log.FieldError, err)
		}
	}

	scheduler.Start(ctx)
	go app.Janitor.Run(ctx, 5*time.Minute)

	if app.AMQP != nil {
		events := worker.NewEventWorker(app.Insights, logger)
		go func() {
			err := app.AMQP.ConsumeTransactionEvents(ctx, events.HandleTransactionChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - AMQP not configured")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
