// Package google exports projection percentile bands to a Google Sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/ports"
)

// Header is the first row written to an empty bands sheet.
var Header = []any{"Esportato", "Proiezione", "Anno", "P10", "P50", "P90", "Obiettivo", "Probabilità %", "Seed"}

type Options struct {
	SpreadsheetID      string
	Sheet              string
	ServiceAccountJSON string
	ServiceAccountFile string
	Logger             *log.Logger
}

// Exporter appends one row per percentile band to a sheet.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
	now           func() time.Time
}

var _ ports.BandExporter = (*Exporter)(nil)

// New creates an exporter authenticated with a service account.
// GOOGLE_APPLICATION_CREDENTIALS is used when no credentials are given.
func New(ctx context.Context, opts Options) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(opts.Sheet)
	if sheet == "" {
		sheet = "Proiezioni"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	credentialsJSON, err := loadCredentials(opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets exporter ready", "sheet", sheet)
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func loadCredentials(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportBands appends the bands of result under label and returns the
// updated range.
func (e *Exporter) ExportBands(ctx context.Context, label string, result *core.ProjectionResult) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if result == nil || len(result.Bands) == 0 {
		return "", errors.New("nothing to export")
	}

	rng := fmt.Sprintf("%s!A1:I1", e.sheet)
	head, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}

	rows := BandRows(label, result, e.now())
	if len(head.Values) == 0 {
		rows = append([][]any{Header}, rows...)
	}

	vr := &gsheet.ValueRange{Values: rows}
	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, fmt.Sprintf("%s!A:I", e.sheet), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", e.sheet, err)
	}

	ref := e.sheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	e.logger.InfoContext(ctx, "Bands appended",
		log.FieldSheetsRef, ref,
		"rows", len(rows))
	return ref, nil
}

// BandRows lays out one row per band. Amounts are rounded to cents; the
// goal columns are filled on the terminal row only.
func BandRows(label string, result *core.ProjectionResult, exportedAt time.Time) [][]any {
	stamp := exportedAt.UTC().Format(time.DateTime)
	rows := make([][]any, 0, len(result.Bands))
	last := len(result.Bands) - 1
	for i, b := range result.Bands {
		row := []any{
			stamp,
			label,
			b.Year,
			cents(b.P10),
			cents(b.P50),
			cents(b.P90),
			"", "", "",
		}
		if i == last {
			row[6] = cents(result.Goal.EffectiveTarget)
			row[7] = result.Goal.SuccessProbability
			row[8] = fmt.Sprint(result.Seed)
		}
		rows = append(rows, row)
	}
	return rows
}

func cents(v float64) float64 {
	return core.FromEuros(v).Euros()
}
