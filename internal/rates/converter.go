package rates

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"foretrack/internal/cache"
	"foretrack/internal/core"
	"foretrack/internal/log"
)

const tableKey = "ecb"

// Converter converts amounts with a cached rate table. Concurrent misses
// share one fetch.
type Converter struct {
	source Source
	tables *cache.LRUCache[Table]
	group  singleflight.Group
	logger *log.Logger
}

func NewConverter(source Source, ttl time.Duration, logger *log.Logger) *Converter {
	return &Converter{
		source: source,
		tables: cache.NewLRUCache[Table](1, ttl),
		logger: logger.WithComponent(log.ComponentRates),
	}
}

// Cache exposes the table cache so a janitor can sweep it.
func (c *Converter) Cache() cache.Cleaner {
	return c.tables
}

// Table returns the cached table, fetching it when absent or expired.
func (c *Converter) Table(ctx context.Context) (Table, error) {
	if t, ok := c.tables.Get(tableKey); ok {
		return t, nil
	}
	v, err, _ := c.group.Do(tableKey, func() (any, error) {
		t, err := c.source.Fetch(ctx)
		if err != nil {
			return Table{}, err
		}
		c.tables.Set(tableKey, t)
		return t, nil
	})
	if err != nil {
		return Table{}, fmt.Errorf("fetch rates: %w", err)
	}
	return v.(Table), nil
}

// Warm refreshes the cached table regardless of its age.
func (c *Converter) Warm(ctx context.Context) error {
	c.tables.Delete(tableKey)
	_, err := c.Table(ctx)
	return err
}

// Convert returns m, held in from, expressed in to. The result is rounded
// half-up to the target currency's minor unit.
func (c *Converter) Convert(ctx context.Context, m core.Money, from, to core.Currency) (core.Money, error) {
	if from == to {
		return m, nil
	}
	t, err := c.Table(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return ConvertWith(t, m, from, to)
}

// ConvertWith converts using an explicit table.
func ConvertWith(t Table, m core.Money, from, to core.Currency) (core.Money, error) {
	if from == to {
		return m, nil
	}
	rate, err := t.Rate(from, to)
	if err != nil {
		return core.Money{}, err
	}
	out, err := core.FromDecimal(m.Decimal(from).Mul(rate), to)
	if err != nil {
		return core.Money{}, fmt.Errorf("convert %s to %s: %w", from, to, err)
	}
	return out, nil
}
