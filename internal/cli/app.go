package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"foretrack/internal/amqp"
	"foretrack/internal/backend"
	"foretrack/internal/cache"
	"foretrack/internal/config"
	"foretrack/internal/identity"
	"foretrack/internal/inference"
	"foretrack/internal/log"
	"foretrack/internal/notify"
	"foretrack/internal/ports"
	"foretrack/internal/rates"
	"foretrack/internal/services"
	"foretrack/internal/sheets"
)

// App holds every long-lived component both binaries share. Optional
// integrations are nil when their configuration is absent.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Store  ports.Store

	AMQP      *amqp.Client
	Converter *rates.Converter
	Janitor   *cache.Janitor

	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Categories   *services.CategoryService
	Settings     *services.SettingsService
	Analytics    *services.AnalyticsService
	Insights     *services.InsightService
	Recurring    *services.RecurringService
	Processor    *services.RecurringProcessor
	Summary      *services.SummaryService
	Export       *services.ExportService

	closers []func() error
}

// NewApp opens the store and wires the services. On error everything
// opened so far is released.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.Open(ctx, bcfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = res.Store
	a.closers = append(a.closers, res.Cleanup)

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		a.AMQP = client
		publisher = client
		a.closers = append(a.closers, client.Close)
	} else {
		logger.Info("AMQP disabled - insights refresh on read only")
	}

	var converter services.Converter
	cleaners := []cache.Cleaner{}
	if cfg.RatesURL != "" {
		src := rates.NewECBClient(cfg.RatesURL, &http.Client{Timeout: 15 * time.Second}, logger)
		a.Converter = rates.NewConverter(src, cfg.RatesTTL, logger)
		converter = a.Converter
		cleaners = append(cleaners, a.Converter.Cache())
	}

	model, err := newModel(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	insightCache := services.NewInsightCache(cfg.InsightsCacheSize, cfg.InsightsCacheTTL)
	cleaners = append(cleaners, insightCache)
	a.Janitor = cache.NewJanitor(logger, cleaners...)

	a.Transactions = services.NewTransactionService(a.Store, publisher, logger)
	a.closers = append(a.closers, a.Transactions.Close)
	a.Budgets = services.NewBudgetService(a.Store, logger)
	a.Categories = services.NewCategoryService(a.Store)
	a.Settings = services.NewSettingsService(a.Store)
	a.Analytics = services.NewAnalyticsService(a.Store, a.Settings, converter, logger)
	a.Insights = services.NewInsightService(a.Analytics, a.Store, model, insightCache, logger)
	a.Transactions.NotifyStale(a.Insights)
	a.Budgets.NotifyStale(a.Insights)
	a.Settings.NotifyStale(a.Insights)
	a.Recurring = services.NewRecurringService(a.Store)
	a.Processor = services.NewRecurringProcessor(a.Store, a.Transactions, logger)

	var mailer services.Mailer
	if cfg.EmailEnabled() {
		mailer = notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
	} else {
		logger.Info("Email disabled - weekly summaries will not be sent")
	}
	a.Summary = services.NewSummaryService(a.Store, a.Analytics, a.Insights, mailer, logger)

	var exporter services.Exporter
	creds := sheets.Credentials{JSON: cfg.GoogleServiceAccountJSON, File: cfg.GoogleServiceAccountFile}
	if creds.Configured() {
		e, err := sheets.NewExporter(ctx, creds, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
		}
		exporter = e
	}
	a.Export = services.NewExportService(a.Store, a.Settings, exporter, logger)

	return a, nil
}

// Verifier combines the configured credential checks: JWTs first, then
// API keys.
func (a *App) Verifier() (identity.Verifier, error) {
	var chain identity.Chain
	if a.Config.JWTSecret != "" {
		var opts []identity.JWTOption
		if a.Config.JWTIssuer != "" {
			opts = append(opts, identity.WithIssuer(a.Config.JWTIssuer))
		}
		if a.Config.JWTAudience != "" {
			opts = append(opts, identity.WithAudience(a.Config.JWTAudience))
		}
		chain = append(chain, identity.NewJWTVerifier(a.Config.JWTSecret, opts...))
	}
	if len(a.Config.APIKeys) > 0 {
		v, err := identity.NewAPIKeyVerifier(a.Config.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("api keys: %w", err)
		}
		chain = append(chain, v)
	}
	return chain, nil
}

// Close releases resources in reverse order of acquisition and reports
// every failure.
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}

func newModel(ctx context.Context, cfg *config.Config, logger *log.Logger) (inference.Generator, error) {
	if !cfg.InferenceEnabled() {
		logger.Info("Inference disabled - insights use fallbacks")
		return inference.Disabled{}, nil
	}
	g, err := inference.NewGemini(ctx, inference.GeminiConfig{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Endpoint: cfg.GeminiEndpoint,
		Timeout:  cfg.InferenceTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}
	return g, nil
}
