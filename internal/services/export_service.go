package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foretrack/internal/analytics"
	"foretrack/internal/log"
	"foretrack/internal/ports"
)

// ErrExportDisabled is returned when no spreadsheet credentials are configured.
var ErrExportDisabled = errors.New("sheets export is not configured")

// DefaultSheet is the tab rows are appended to when none is given.
const DefaultSheet = "Transactions"

// ExportResult reports what an export appended.
type ExportResult struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Sheet         string `json:"sheet"`
	Rows          int    `json:"rows"`
}

type ExportService struct {
	store    ports.TransactionStore
	settings *SettingsService
	exporter Exporter
	logger   *log.Logger
}

func NewExportService(store ports.TransactionStore, settings *SettingsService, exporter Exporter, logger *log.Logger) *ExportService {
	return &ExportService{store: store, settings: settings, exporter: exporter, logger: logger.WithComponent(log.ComponentExport)}
}

// ExportToSheet appends the user's transactions in the range, oldest first.
func (s *ExportService) ExportToSheet(ctx context.Context, userID, spreadsheetID, sheet string, r analytics.Range, now time.Time) (ExportResult, error) {
	if s.exporter == nil {
		return ExportResult{}, ErrExportDisabled
	}
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return ExportResult{}, invalid(errors.New("spreadsheet_id is required"))
	}
	if sheet = strings.TrimSpace(sheet); sheet == "" {
		sheet = DefaultSheet
	}

	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return ExportResult{}, err
	}
	w := analytics.Select(r, now)
	txs, err := s.store.ListTransactions(ctx, userID, w.Start, w.End)
	if err != nil {
		return ExportResult{}, fmt.Errorf("list transactions: %w", err)
	}
	analytics.SortTransactions(txs, analytics.DateAsc)

	n, err := s.exporter.AppendTransactions(ctx, spreadsheetID, sheet, txs, settings.Currency)
	if err != nil {
		return ExportResult{}, fmt.Errorf("append rows: %w", err)
	}
	s.logger.InfoContext(ctx, "Exported transactions",
		log.FieldUserID, userID,
		log.FieldRange, string(r),
		"rows", n)
	return ExportResult{SpreadsheetID: spreadsheetID, Sheet: sheet, Rows: n}, nil
}
