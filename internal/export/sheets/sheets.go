// Package sheets writes the full ledger to a Google Sheets tab. The tab is
// cleared and rewritten on every export, so it always mirrors the ledger.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"budgeting/internal/core"
	"budgeting/internal/log"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the first row written to the tab. It uses the export key order.
var Header = []any{"date", "amount", "type", "category"}

// ErrNotConfigured is returned when no spreadsheet is set up.
var ErrNotConfigured = errors.New("sheets export not configured")

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Enabled reports whether enough is configured to attempt an export.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.SpreadsheetID) != ""
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Result describes what an export wrote.
type Result struct {
	UpdatedRange string `json:"updated_range"`
	Rows         int    `json:"rows"`
}

// New creates an exporter authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Exporter {
	if sheetName == "" {
		sheetName = "Transactions"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Rows converts seq to sheet rows, header first. Amounts are numbers so the
// sheet can sum them.
func Rows(seq []core.Transaction) [][]any {
	rows := make([][]any, 0, len(seq)+1)
	rows = append(rows, Header)
	for _, t := range seq {
		rows = append(rows, []any{
			t.Date.String(),
			t.Amount.Decimal().InexactFloat64(),
			string(t.Type),
			string(t.Category),
		})
	}
	return rows
}

// Export replaces the tab contents with seq.
func (e *Exporter) Export(ctx context.Context, seq []core.Transaction) (Result, error) {
	if e.svc == nil {
		return Result{}, errors.New("sheets service not initialized")
	}

	clearRange := a1Range(e.sheetName, "A:D")
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return Result{}, fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := Rows(seq)
	writeRange := a1Range(e.sheetName, fmt.Sprintf("A1:D%d", len(rows)))
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return Result{}, fmt.Errorf("update %s: %w", writeRange, err)
	}

	res := Result{UpdatedRange: resp.UpdatedRange, Rows: len(seq)}
	e.logger.InfoContext(ctx, "Ledger exported to sheet",
		log.FieldOperation, log.OpExport,
		"sheet", e.sheetName,
		"updated_range", res.UpdatedRange,
		"rows", res.Rows)
	return res, nil
}

// a1Range qualifies cells with the tab name, quoted so names with spaces or
// apostrophes stay valid A1 notation.
func a1Range(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}
