package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/models"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

const candidateSequence = "candidates"

type ExamStore interface {
	Close() error
	ApplyMigrations(dir string) error

	NextCandidateSequence(ctx context.Context) (int64, error)
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidate(ctx context.Context, username string) (*models.Candidate, error)
	ListCandidates(ctx context.Context) ([]models.Candidate, error)
	MarkIssued(ctx context.Context, usernames []string) (int64, error)

	CreateResult(ctx context.Context, r *models.ExamResult) (int64, error)
	LatestResult(ctx context.Context, username string) (*models.ExamResult, error)
	ListResults(ctx context.Context, limit int) ([]models.ExamResult, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB         *sqlx.DB
	Converter  func(string) string
	IsConflict func(error) bool
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory in file name order,
// translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			names = append(names, file.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		query := string(content)
		if translateSQL != nil {
			query = translateSQL(query)
		}

		logger.Debug.Printf("Applying migration: %s", name)
		if _, err := s.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

// NextCandidateSequence reserves the next candidate number. The increment and
// the read happen in one statement, so concurrent callers never share a value.
func (s *BaseStore) NextCandidateSequence(ctx context.Context) (int64, error) {
	var next int64
	query := s.Converter(`
		UPDATE sequences
		SET value = value + 1
		WHERE name = ?
		RETURNING value
	`)
	err := s.DB.GetContext(ctx, &next, query, candidateSequence)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("sequence %q is not initialised, apply migrations first", candidateSequence)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reserve candidate sequence: %w", err)
	}
	return next, nil
}

func (s *BaseStore) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	query := s.Converter(`
		INSERT INTO candidates (username, password_hash, password, issued, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := s.DB.GetContext(ctx, &c.ID, query, c.Username, c.PasswordHash, c.Password, c.Issued, c.CreatedAt)
	if err != nil {
		if s.IsConflict != nil && s.IsConflict(err) {
			return fmt.Errorf("%w: candidate %s", ErrDuplicate, c.Username)
		}
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

func (s *BaseStore) GetCandidate(ctx context.Context, username string) (*models.Candidate, error) {
	var c models.Candidate
	query := s.Converter(`
		SELECT id, username, password_hash, password, issued, created_at
		FROM candidates
		WHERE username = ?
	`)
	err := s.DB.GetContext(ctx, &c, query, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return &c, nil
}

func (s *BaseStore) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	candidates := []models.Candidate{}
	err := s.DB.SelectContext(ctx, &candidates, `
		SELECT id, username, password_hash, password, issued, created_at
		FROM candidates
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return candidates, nil
}

// MarkIssued flags the given usernames as issued. Unknown usernames are ignored.
func (s *BaseStore) MarkIssued(ctx context.Context, usernames []string) (int64, error) {
	if len(usernames) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		UPDATE candidates
		SET issued = ?
		WHERE username IN (?)
	`, true, usernames)
	if err != nil {
		return 0, fmt.Errorf("failed to build mark issued query: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, s.Converter(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark candidates issued: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count issued candidates: %w", err)
	}
	return n, nil
}

func (s *BaseStore) CreateResult(ctx context.Context, r *models.ExamResult) (int64, error) {
	var id int64
	query := s.Converter(`
		INSERT INTO exam_results (
			username, fullname, email, subject,
			score, correct, total, answered,
			time_taken, submitted_at, status, pass_fail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := s.DB.GetContext(ctx, &id, query,
		r.Username, r.FullName, r.Email, r.Subject,
		r.Score, r.Correct, r.Total, r.Answered,
		r.TimeTaken, r.SubmittedAt, r.Status, r.PassFail,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create exam result: %w", err)
	}
	return id, nil
}

const resultColumns = `
	id, username, fullname, email, subject,
	score, correct, total, answered,
	time_taken, submitted_at, status, pass_fail
`

func (s *BaseStore) LatestResult(ctx context.Context, username string) (*models.ExamResult, error) {
	var r models.ExamResult
	query := s.Converter(`
		SELECT` + resultColumns + `
		FROM exam_results
		WHERE username = ?
		ORDER BY id DESC
		LIMIT 1
	`)
	err := s.DB.GetContext(ctx, &r, query, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result: %w", err)
	}
	return &r, nil
}

func (s *BaseStore) ListResults(ctx context.Context, limit int) ([]models.ExamResult, error) {
	results := []models.ExamResult{}
	query := s.Converter(`
		SELECT` + resultColumns + `
		FROM exam_results
		ORDER BY id DESC
		LIMIT ?
	`)
	if err := s.DB.SelectContext(ctx, &results, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}
