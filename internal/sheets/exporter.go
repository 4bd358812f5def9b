// Package sheets appends ledger rows to a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"foretrack/internal/core"
	"foretrack/internal/log"
)

// Credentials locate a service account key. JSON wins over File.
type Credentials struct {
	JSON string
	File string
}

// ErrNoCredentials is returned when neither inline JSON nor a key file is set.
var ErrNoCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")

// Configured reports whether any credential source is set.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.JSON) != "" || strings.TrimSpace(c.File) != ""
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(strings.TrimSpace(c.JSON)), nil
	case strings.TrimSpace(c.File) != "":
		raw, err := os.ReadFile(strings.TrimSpace(c.File))
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return raw, nil
	default:
		return nil, ErrNoCredentials
	}
}

// Exporter writes transactions through the Sheets v4 API.
type Exporter struct {
	svc    *gsheet.Service
	logger *log.Logger
}

// NewExporter builds a Sheets client from service account credentials.
// Token exchange and API calls share one pooled transport. Extra options
// are appended after the client option.
func NewExporter(ctx context.Context, creds Credentials, logger *log.Logger, extra ...goption.ClientOption) (*Exporter, error) {
	key, err := creds.load()
	if err != nil {
		return nil, err
	}
	jwtCfg, err := google.JWTConfigFromJSON(key, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClient())
	opts := append([]goption.ClientOption{
		goption.WithHTTPClient(jwtCfg.Client(base)),
	}, extra...)
	return newExporter(ctx, logger, opts...)
}

func newExporter(ctx context.Context, logger *log.Logger, opts ...goption.ClientOption) (*Exporter, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger = logger.WithComponent(log.ComponentExport)
	logger.InfoContext(ctx, "Google Sheets service created successfully")
	return &Exporter{svc: svc, logger: logger}, nil
}

// newHTTPClient returns a pooled client suited to the Sheets API.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// Header is the column layout of exported rows.
var Header = []any{"Date", "Kind", "Category", "Note", "Amount", "Currency"}

// Rows renders one row per transaction. Amounts are plain decimals in the
// record's own currency; records without one use fallback.
func Rows(txs []core.Transaction, fallback core.Currency) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		cur := tx.Currency
		if cur == "" {
			cur = fallback
		}
		rows = append(rows, []any{
			tx.Date.String(),
			string(tx.Kind),
			cell(tx.CategoryOrOther()),
			cell(tx.Note),
			tx.Amount.Text(cur),
			string(cur),
		})
	}
	return rows
}

// cell keeps user text from being read as a formula under USER_ENTERED.
func cell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

// quoteSheet renders a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// AppendTransactions appends a header and one row per transaction after the
// last row of the sheet and returns how many transaction rows were written.
func (e *Exporter) AppendTransactions(ctx context.Context, spreadsheetID, sheet string, txs []core.Transaction, currency core.Currency) (int, error) {
	if e.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(txs) == 0 {
		return 0, nil
	}

	values := append([][]any{Header}, Rows(txs, currency)...)
	rng := quoteSheet(sheet) + "!A:F"
	resp, err := e.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", rng, err)
	}

	written := len(txs)
	if resp.Updates != nil && resp.Updates.UpdatedRows > 0 {
		written = int(resp.Updates.UpdatedRows) - 1
	}
	e.logger.DebugContext(ctx, "Appended rows", "range", rng, "rows", written)
	return written, nil
}
