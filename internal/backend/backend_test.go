package backend

import (
	"context"
	"path/filepath"
	"testing"

	"foretrack/internal/config"
	"foretrack/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		app     *config.Config
		wantErr bool
	}{
		{"nil", nil, true},
		{"memory", &config.Config{DataBackend: "memory"}, false},
		{"sqlite without path", &config.Config{DataBackend: "sqlite"}, true},
		{"postgres without url", &config.Config{DataBackend: "postgres"}, true},
		{"postgres", &config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x/y"}, false},
		{"unknown", &config.Config{DataBackend: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromAppConfig(tt.app)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []Config{
		{Type: Memory},
		{Type: SQLite, SQLiteDBPath: filepath.Join(t.TempDir(), "nested", "f.db"), AutoMigrate: true},
	} {
		t.Run(string(cfg.Type), func(t *testing.T) {
			res, err := Open(ctx, cfg, log.Discard())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer res.Cleanup()
			if err := res.Store.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}
			if rev, err := res.Store.BumpRevision(ctx, "u"); err != nil || rev != 1 {
				t.Fatalf("BumpRevision = %d, %v", rev, err)
			}
		})
	}
}
