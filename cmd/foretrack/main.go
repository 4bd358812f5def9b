package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"foretrack/internal/cli"
	apphttp "foretrack/internal/http"
	"foretrack/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap("foretrack")

	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}

	verifier, err := app.Verifier()
	if err != nil {
		logger.Error("Failed to initialize identity", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, apphttp.Deps{
		Store:        app.Store,
		Transactions: app.Transactions,
		Budgets:      app.Budgets,
		Categories:   app.Categories,
		Settings:     app.Settings,
		Analytics:    app.Analytics,
		Insights:     app.Insights,
		Recurring:    app.Recurring,
		Export:       app.Export,
		Verifier:     verifier,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize HTTP server", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	})

	go app.Janitor.Run(ctx, 5*time.Minute)

	logger.Info("Starting foretrack server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
