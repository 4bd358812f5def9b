package backend

import (
	"context"
	"fmt"

	"foretrack/internal/log"
	"foretrack/internal/storage"
	"foretrack/internal/storage/memory"
)

// Open builds the store for cfg.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.WithComponent(log.ComponentBackend)

	switch cfg.Type {
	case Memory:
		logger.Warn("Using in-memory backend; data is lost on restart")
		store := memory.New()
		return &Result{Store: store, Cleanup: store.Close}, nil

	case SQLite, Postgres:
		opts := storage.Options{
			Dialect: storage.SQLite,
			DSN:     cfg.SQLiteDBPath,
			Migrate: cfg.AutoMigrate,
			Logger:  logger,
		}
		if cfg.Type == Postgres {
			opts.Dialect, opts.DSN = storage.Postgres, cfg.DatabaseURL
		}
		repo, err := storage.Open(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s backend: %w", cfg.Type, err)
		}
		logger.Info("Initialized SQL backend", "dialect", string(opts.Dialect), "migrated", cfg.AutoMigrate)
		return &Result{Store: repo, Cleanup: repo.Close}, nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
}
