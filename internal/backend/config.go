// Package backend selects and opens the storage backend named in config.
package backend

import (
	"fmt"

	"foretrack/internal/config"
	"foretrack/internal/ports"
)

type Type string

const (
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite, Postgres:
		return true
	default:
		return false
	}
}

type Config struct {
	Type         Type
	SQLiteDBPath string
	DatabaseURL  string
	AutoMigrate  bool
}

// FromAppConfig extracts the storage settings.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		Type:         Type(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
		AutoMigrate:  appConfig.AutoMigrate,
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Type {
	case Memory:
	case SQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case Postgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

// Result is an opened store and the function that releases it.
type Result struct {
	Store   ports.Store
	Cleanup func() error
}
