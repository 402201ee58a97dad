package export

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/epitome/examportal/internal/models"
)

const DefaultSchedule = "*/15 * * * *"

type Config struct {
	Enabled         bool   `toml:"enabled"`
	CredentialsPath string `toml:"credentials_path"`
	SpreadsheetID   string `toml:"spreadsheet_id"`
	SheetName       string `toml:"sheet_name"`
	Schedule        string `toml:"schedule"`
}

// ResultSource supplies the full result history.
type ResultSource interface {
	ReplayFromLogs() ([]models.ExamResult, error)
}

type sheetWriter func(ctx context.Context, sheet string, rows [][]interface{}) error

// SheetsExporter periodically mirrors the daily result logs into one sheet.
type SheetsExporter struct {
	cfg       Config
	source    ResultSource
	scheduler *gocron.Scheduler
	write     sheetWriter
	now       func() time.Time
}

func NewSheetsExporter(ctx context.Context, cfg Config, source ResultSource) (*SheetsExporter, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	e := newExporter(cfg, source)
	e.write = func(ctx context.Context, sheet string, rows [][]interface{}) error {
		_, err := svc.Spreadsheets.Values.Clear(cfg.SpreadsheetID, sheet, &sheets.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to clear sheet: %w", err)
		}
		_, err = svc.Spreadsheets.Values.Update(cfg.SpreadsheetID, sheet+"!A1", &sheets.ValueRange{Values: rows}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to update sheet: %w", err)
		}
		return nil
	}
	return e, nil
}

func newExporter(cfg Config, source ResultSource) *SheetsExporter {
	if cfg.SheetName == "" {
		cfg.SheetName = "Results"
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	return &SheetsExporter{
		cfg:       cfg,
		source:    source,
		scheduler: gocron.NewScheduler(time.UTC),
		now:       time.Now,
	}
}

// Start schedules Export on the configured cron expression.
func (e *SheetsExporter) Start() error {
	_, err := e.scheduler.Cron(e.cfg.Schedule).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := e.Export(ctx); err != nil {
			logger.Error.Printf("Export failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule export: %w", err)
	}

	e.scheduler.StartAsync()
	logger.Info.Printf("Scheduled sheet export %q on %q", e.cfg.SheetName, e.cfg.Schedule)
	return nil
}

func (e *SheetsExporter) Stop() {
	e.scheduler.Stop()
}

func (e *SheetsExporter) Export(ctx context.Context) error {
	results, err := e.source.ReplayFromLogs()
	if err != nil {
		return fmt.Errorf("failed to replay result logs: %w", err)
	}

	rows := Rows(results, e.now())
	if err := e.write(ctx, e.cfg.SheetName, rows); err != nil {
		return err
	}
	logger.Info.Printf("Exported %d results to sheet %q", len(results), e.cfg.SheetName)
	return nil
}

// Rows lays out the sheet: a header, one row per result and a trailing
// update stamp.
func Rows(results []models.ExamResult, updated time.Time) [][]interface{} {
	header := make([]interface{}, 0, len(models.LogColumns)+1)
	for _, col := range models.LogColumns {
		header = append(header, col)
	}
	header = append(header, "outcome")

	rows := make([][]interface{}, 0, len(results)+2)
	rows = append(rows, header)
	for _, r := range results {
		rows = append(rows, []interface{}{
			r.Username,
			r.FullName,
			r.Email,
			r.Subject,
			r.Score,
			r.Correct,
			r.Total,
			r.Answered,
			r.TimeTaken,
			r.SubmittedAt.UTC().Format(time.RFC3339),
			string(r.Outcome),
		})
	}
	rows = append(rows, []interface{}{fmt.Sprintf("UPD: %s", updated.UTC().Format("2 January 15:04"))})
	return rows
}
