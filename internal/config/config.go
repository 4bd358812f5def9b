// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP server
	Port               string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string
	AutoMigrate  bool

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Identity
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	APIKeys     []string

	// Inference
	GeminiAPIKey     string
	GeminiModel      string
	GeminiEndpoint   string
	InferenceTimeout time.Duration

	InsightsCacheTTL  time.Duration
	InsightsCacheSize int

	// Exchange rates
	RatesURL string
	RatesTTL time.Duration

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Google Sheets export
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker schedules, standard cron syntax or descriptors
	RecurringSchedule string
	SummarySchedule   string
	RatesSchedule     string
}

var validBackends = []string{"memory", "sqlite", "postgres"}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/foretrack.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AutoMigrate:  getEnvBool("AUTO_MIGRATE", true),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "foretrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
		JWTIssuer:   getEnv("AUTH_JWT_ISSUER", ""),
		JWTAudience: getEnv("AUTH_JWT_AUDIENCE", ""),
		APIKeys:     getEnvList("AUTH_API_KEYS", nil),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEndpoint:   getEnv("GEMINI_ENDPOINT", ""),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", 20*time.Second),

		InsightsCacheTTL:  getEnvDuration("INSIGHTS_CACHE_TTL", 30*time.Minute),
		InsightsCacheSize: getEnvInt("INSIGHTS_CACHE_SIZE", 1000),

		RatesURL: getEnv("RATES_URL", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),
		RatesTTL: getEnvDuration("RATES_TTL", 12*time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		RecurringSchedule: getEnv("RECURRING_SCHEDULE", "@hourly"),
		SummarySchedule:   getEnv("SUMMARY_SCHEDULE", "0 8 * * 1"),
		RatesSchedule:     getEnv("RATES_SCHEDULE", "@every 6h"),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		fail("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		fail("invalid port %d: must be between 1 and 65535", port)
	}

	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			fail("SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					fail("cannot create SQLite database directory '%s': %v", dir, err)
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			fail("DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			fail("invalid DATABASE_URL: must be a postgres:// URL")
		}
	default:
		fail("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends)
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			fail("invalid AMQP URL '%s': %v", c.AMQPURL, err)
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			fail("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme)
		}
		if c.AMQPExchange == "" {
			fail("AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			fail("AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.JWTSecret == "" && len(c.APIKeys) == 0 {
		fail("either AUTH_JWT_SECRET or AUTH_API_KEYS must be provided")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		fail("AUTH_JWT_SECRET must be at least 32 characters")
	}
	for _, k := range c.APIKeys {
		user, hash, ok := strings.Cut(k, ":")
		if !ok || user == "" || !strings.HasPrefix(hash, "$2") {
			fail("invalid AUTH_API_KEYS entry %q: want user:bcrypt-hash", user)
		}
	}

	if c.InferenceTimeout < time.Second || c.InferenceTimeout > 2*time.Minute {
		fail("invalid inference timeout %v: must be between 1s and 2m", c.InferenceTimeout)
	}
	if c.InsightsCacheSize < 1 {
		fail("invalid insights cache size %d: must be at least 1", c.InsightsCacheSize)
	}
	if c.InsightsCacheTTL < time.Second {
		fail("invalid insights cache ttl %v: must be at least 1 second", c.InsightsCacheTTL)
	}

	if c.RatesURL != "" {
		if u, err := url.Parse(c.RatesURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			fail("invalid RATES_URL '%s': must be an http(s) URL", c.RatesURL)
		}
	}
	if c.RatesTTL < time.Minute {
		fail("invalid rates ttl %v: must be at least 1 minute", c.RatesTTL)
	}

	if c.SMTPHost != "" {
		if c.SMTPFrom == "" {
			fail("SMTP_FROM is required when SMTP_HOST is set")
		}
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			fail("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort)
		}
	}

	if c.RateLimitPerMinute < 1 {
		fail("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute)
	}

	for name, spec := range map[string]string{
		"RECURRING_SCHEDULE": c.RecurringSchedule,
		"SUMMARY_SCHEDULE":   c.SummarySchedule,
		"RATES_SCHEDULE":     c.RatesSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			fail("invalid %s '%s': %v", name, spec, err)
		}
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		lines := make([]string, len(errs))
		for i, err := range errs {
			lines[i] = err.Error()
		}
		return "configuration validation failed:\n- " + strings.Join(lines, "\n- ")
	}
	return result.ErrorOrNil()
}

// InferenceEnabled reports whether a model key is configured.
func (c *Config) InferenceEnabled() bool { return c.GeminiAPIKey != "" }

// EmailEnabled reports whether outgoing mail is configured.
func (c *Config) EmailEnabled() bool { return c.SMTPHost != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
