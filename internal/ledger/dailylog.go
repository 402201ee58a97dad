package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/models"
)

const (
	logFilePrefix = "exam_results_"
	logDateFormat = "2006-01-02"
)

// legacy rows carry python isoformat timestamps without a zone
var submittedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// DailyLog appends results to one CSV file per calendar day.
type DailyLog struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewDailyLog(dir string) (*DailyLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &DailyLog{dir: dir, now: time.Now}, nil
}

func (d *DailyLog) PathFor(day time.Time) string {
	return filepath.Join(d.dir, logFilePrefix+day.Format(logDateFormat)+".csv")
}

// Today returns the path of today's log and whether it exists yet.
func (d *DailyLog) Today() (string, bool) {
	path := d.PathFor(d.now())
	_, err := os.Stat(path)
	return path, err == nil
}

// Append writes one row to today's file, with the header if the file is new.
// The row goes out in a single write under the log mutex.
func (d *DailyLog) Append(r *models.ExamResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.PathFor(d.now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open result log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat result log: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		w.Write(models.LogColumns)
	}
	w.Write(logRow(r))
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode result row: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append result row: %w", err)
	}
	return nil
}

func logRow(r *models.ExamResult) []string {
	return []string{
		r.Username,
		r.FullName,
		r.Email,
		r.Subject,
		strconv.Itoa(r.Score),
		strconv.Itoa(r.Correct),
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Answered),
		strconv.Itoa(r.TimeTaken),
		r.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

// Replay reads every daily file in date order. Rows that cannot be parsed are
// skipped and counted.
func (d *DailyLog) Replay() ([]models.ExamResult, int, error) {
	paths, err := filepath.Glob(filepath.Join(d.dir, logFilePrefix+"*.csv"))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list result logs: %w", err)
	}
	sort.Strings(paths)

	results := []models.ExamResult{}
	skipped := 0
	for _, path := range paths {
		rows, bad, err := d.replayFile(path)
		if err != nil {
			logger.Error.Printf("Skipping unreadable result log %s: %v", filepath.Base(path), err)
			continue
		}
		results = append(results, rows...)
		skipped += bad
	}
	return results, skipped, nil
}

func (d *DailyLog) replayFile(path string) ([]models.ExamResult, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		results []models.ExamResult
		skipped int
		line    int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logger.Debug.Printf("%s: skipping malformed row %d: %v", filepath.Base(path), line, err)
			skipped++
			continue
		}
		if err != nil {
			return results, skipped, err
		}

		if line == 1 && len(record) > 0 && record[0] == models.LogColumns[0] {
			continue
		}

		r, err := parseLogRow(record)
		if err != nil {
			logger.Debug.Printf("%s: skipping row %d: %v", filepath.Base(path), line, err)
			skipped++
			continue
		}
		results = append(results, r)
	}
	return results, skipped, nil
}

func parseLogRow(record []string) (models.ExamResult, error) {
	if len(record) != len(models.LogColumns) {
		return models.ExamResult{}, fmt.Errorf("expected %d fields, got %d", len(models.LogColumns), len(record))
	}

	ints := make([]int, 5)
	for i := range ints {
		n, err := strconv.Atoi(record[4+i])
		if err != nil {
			return models.ExamResult{}, fmt.Errorf("field %s: %w", models.LogColumns[4+i], err)
		}
		ints[i] = n
	}

	submittedAt, err := parseSubmittedAt(record[9])
	if err != nil {
		return models.ExamResult{}, err
	}

	r := models.ExamResult{
		Username:    record[0],
		FullName:    record[1],
		Email:       record[2],
		Subject:     record[3],
		Score:       ints[0],
		Correct:     ints[1],
		Total:       ints[2],
		Answered:    ints[3],
		TimeTaken:   ints[4],
		SubmittedAt: submittedAt,
	}
	if err := r.ValidateLogged(); err != nil {
		return models.ExamResult{}, errors.New(Describe(err))
	}
	return r, nil
}

func parseSubmittedAt(value string) (time.Time, error) {
	for _, layout := range submittedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("field submitted_at: unrecognised time %q", value)
}
