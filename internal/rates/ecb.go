// Package rates converts money between supported currencies using the
// European Central Bank daily reference rates.
package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"foretrack/internal/core"
	"foretrack/internal/log"
)

// DefaultURL serves the ECB daily reference rates.
const DefaultURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

var (
	ErrUnsupported = errors.New("unsupported currency pair")
	ErrNoRates     = errors.New("no rates in response")
)

// Table holds units of each currency per one euro.
type Table struct {
	Date   core.Date
	PerEUR map[core.Currency]decimal.Decimal
}

// Rate returns the multiplier from one currency to another.
func (t Table) Rate(from, to core.Currency) (decimal.Decimal, error) {
	f, ok := t.PerEUR[from]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupported, from)
	}
	d, ok := t.PerEUR[to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupported, to)
	}
	return d.Div(f), nil
}

// Source fetches a rate table.
type Source interface {
	Fetch(ctx context.Context) (Table, error)
}

// ECBClient fetches and parses the ECB reference XML.
type ECBClient struct {
	url    string
	client *http.Client
	logger *log.Logger
}

func NewECBClient(url string, client *http.Client, logger *log.Logger) *ECBClient {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ECBClient{url: url, client: client, logger: logger.WithComponent(log.ComponentRates)}
}

func (c *ECBClient) Fetch(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Table{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Table{}, fmt.Errorf("failed to read response: %w", err)
	}

	table, err := Parse(body)
	if err != nil {
		return Table{}, err
	}
	c.logger.Info("Fetched reference rates", "date", table.Date.String(), "currencies", len(table.PerEUR))
	return table, nil
}

// Parse reads the eurofxref document. Currencies outside the supported list
// are ignored; EUR is always present at 1.
func Parse(raw []byte) (Table, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return Table{}, fmt.Errorf("failed to parse XML: %w", err)
	}

	table := Table{PerEUR: map[core.Currency]decimal.Decimal{core.EUR: decimal.NewFromInt(1)}}
	if day := doc.FindElement("//Cube[@time]"); day != nil {
		if d, err := core.ParseDate(day.SelectAttrValue("time", "")); err == nil {
			table.Date = d
		}
	}

	for _, el := range doc.FindElements("//Cube[@currency]") {
		cur, err := core.ParseCurrency(el.SelectAttrValue("currency", ""))
		if err != nil {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(el.SelectAttrValue("rate", "")))
		if err != nil || !rate.IsPositive() {
			return Table{}, fmt.Errorf("invalid rate for %s: %q", cur, el.SelectAttrValue("rate", ""))
		}
		table.PerEUR[cur] = rate
	}
	if len(table.PerEUR) == 1 {
		return Table{}, ErrNoRates
	}
	return table, nil
}
