// Package storage is the SQL-backed ports.Store. One code path serves
// sqlite and postgres; queries use ? placeholders and are rebound for
// postgres.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"foretrack/internal/core"
	"foretrack/internal/log"
	"foretrack/internal/ports"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

var _ ports.Store = (*SQLRepository)(nil)

type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// Options control Open.
type Options struct {
	Dialect Dialect
	// DSN is a file path for sqlite and a URL for postgres.
	DSN     string
	Migrate bool
	Logger  *log.Logger
}

// Open connects, optionally migrates, and pings.
func Open(ctx context.Context, opts Options) (*SQLRepository, error) {
	dsn := opts.DSN
	if opts.Dialect == SQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	if opts.Migrate {
		if err := RunMigrations(opts.Dialect, sqliteDSN(opts.Dialect, dsn)); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(opts.Dialect.driverName(), sqliteDSN(opts.Dialect, dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Dialect, err)
	}
	if opts.Dialect == SQLite {
		// Serializes writers; WAL still lets the single connection read freely.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return NewSQLRepository(db, opts.Dialect, logger), nil
}

// NewSQLRepository wraps an already open, migrated database.
func NewSQLRepository(db *sql.DB, dialect Dialect, logger *log.Logger) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, logger: logger.WithComponent(log.ComponentStorage)}
}

func sqliteDSN(d Dialect, dsn string) string {
	if d != SQLite || strings.Contains(dsn, "_pragma") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres. Queries never carry a
// literal question mark.
func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := r.db.ExecContext(ctx, rebind(r.dialect, query), args...)
	return res, mapError(err)
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, rebind(r.dialect, query), args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, rebind(r.dialect, query), args...)
}

// mapError turns unique violations into core.ErrConflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", core.ErrConflict, pqErr.Message)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %s", core.ErrConflict, liteErr.Error())
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", core.ErrConflict, err.Error())
	}
	return err
}

// mustAffect reports core.ErrNotFound when a write touched no rows.
func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// Timestamps are stored as UTC unix microseconds; zero means unset.
func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// Dates are stored as YYYY-MM-DD text; zero is the empty string.
func parseDateText(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

const (
	minDate = "0000-01-01"
	maxDate = "9999-12-31"
)

func dateBounds(from, to core.Date) (string, string) {
	lo, hi := minDate, maxDate
	if !from.IsZero() {
		lo = from.String()
	}
	if !to.IsZero() {
		hi = to.String()
	}
	return lo, hi
}
