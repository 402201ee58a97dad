package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/metrics"
	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/scoring"
)

const DefaultListLimit = 100

// ErrPersistence means the primary store did not accept the result. The
// caller may retry.
var ErrPersistence = errors.New("result could not be persisted")

// ValidationError rejects a result before anything is written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid result: " + e.Reason
}

type ResultStore interface {
	CreateResult(ctx context.Context, r *models.ExamResult) (int64, error)
	LatestResult(ctx context.Context, username string) (*models.ExamResult, error)
	ListResults(ctx context.Context, limit int) ([]models.ExamResult, error)
}

type Config struct {
	LogsDir      string `toml:"logs_dir"`
	DefaultLimit int    `toml:"default_limit"`
}

// Ledger records exam results to the structured store and the daily log.
// The two sinks are written independently; there is no shared transaction.
type Ledger struct {
	store        ResultStore
	log          *DailyLog
	grader       *scoring.Grader
	timeout      time.Duration
	defaultLimit int
	now          func() time.Time
}

func New(store ResultStore, log *DailyLog, grader *scoring.Grader, defaultLimit int, timeout time.Duration) *Ledger {
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	return &Ledger{
		store:        store,
		log:          log,
		grader:       grader,
		timeout:      timeout,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

func (l *Ledger) Log() *DailyLog {
	return l.log
}

// Record validates r, then writes it to both sinks. A log failure alone is
// logged and tolerated; a store failure returns ErrPersistence even when the
// log row was written.
func (l *Ledger) Record(ctx context.Context, r *models.ExamResult) (int64, error) {
	l.normalize(r)
	if err := r.Validate(); err != nil {
		return 0, &ValidationError{Reason: Describe(err)}
	}

	storeCtx, cancel := l.withTimeout(ctx)
	id, storeErr := l.store.CreateResult(storeCtx, r)
	cancel()
	if storeErr != nil {
		metrics.LedgerSinkFailures.WithLabelValues("store").Inc()
		logger.Error.Printf("Failed to store result for %s: %v", r.Username, storeErr)
	} else {
		r.ID = id
	}

	logErr := l.log.Append(r)
	if logErr != nil {
		metrics.LedgerSinkFailures.WithLabelValues("log").Inc()
		logger.Error.Printf("Failed to append result for %s to daily log: %v", r.Username, logErr)
	}

	if storeErr != nil {
		if logErr == nil {
			logger.Info.Printf("Result for %s kept in daily log only", r.Username)
		}
		return 0, fmt.Errorf("%w: %v", ErrPersistence, storeErr)
	}

	r.Outcome = l.grader.Outcome(r)
	metrics.SubmissionsTotal.WithLabelValues(r.Status, string(r.Outcome)).Inc()
	metrics.ScoreHistogram.Observe(float64(r.Score))
	logger.Info.Printf("Recorded result %d for %s: %d/%d %s", id, r.Username, r.Correct, r.Total, r.Outcome)

	return id, nil
}

func (l *Ledger) normalize(r *models.ExamResult) {
	r.Username = strings.TrimSpace(r.Username)
	if r.Status == "" {
		r.Status = models.StatusCompleted
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = l.now()
	}
	r.SubmittedAt = r.SubmittedAt.UTC()
}

// LatestFor returns nil when the candidate has no result.
func (l *Ledger) LatestFor(ctx context.Context, username string) (*models.ExamResult, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	r, err := l.store.LatestResult(ctx, username)
	if err != nil || r == nil {
		return nil, err
	}
	r.Outcome = l.grader.Outcome(r)
	return r, nil
}

// ListAll returns results newest first. limit <= 0 uses the default cap.
func (l *Ledger) ListAll(ctx context.Context, limit int) ([]models.ExamResult, error) {
	if limit <= 0 || limit > l.defaultLimit {
		limit = l.defaultLimit
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	results, err := l.store.ListResults(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Outcome = l.grader.Outcome(&results[i])
	}
	return results, nil
}

// ReplayFromLogs rebuilds the result history from the daily log files alone.
func (l *Ledger) ReplayFromLogs() ([]models.ExamResult, error) {
	results, skipped, err := l.log.Replay()
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Info.Printf("Replay skipped %d malformed or invalid log rows", skipped)
	}
	for i := range results {
		results[i].Outcome = l.grader.Outcome(&results[i])
	}
	return results, nil
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

// Describe turns validator errors into a reason safe to show the caller.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			reasons = append(reasons, field+" is required")
		case "ltefield":
			reasons = append(reasons, fmt.Sprintf("%s must not exceed %s", field, strings.ToLower(fe.Param())))
		case "min":
			reasons = append(reasons, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			reasons = append(reasons, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			reasons = append(reasons, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			reasons = append(reasons, field+" is invalid")
		}
	}
	return strings.Join(reasons, "; ")
}
