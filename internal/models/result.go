package models

import (
	"time"
)

type Outcome string

const (
	OutcomePass   Outcome = "PASS"
	OutcomeFailed Outcome = "FAILED"
)

const (
	StatusCompleted    = "completed"
	StatusTimeout      = "timeout"
	StatusDisqualified = "disqualified"
)

// LogColumns is the fixed column order of the daily result log.
var LogColumns = []string{
	"username", "fullname", "email", "subject",
	"score", "correct", "total", "answered",
	"time_taken", "submitted_at",
}

type ExamResult struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username" validate:"required,max=64"`
	FullName    string    `db:"fullname" json:"fullname" validate:"required,max=128"`
	Email       string    `db:"email" json:"email" validate:"max=256"`
	Subject     string    `db:"subject" json:"subject" validate:"required,max=64"`
	Score       int       `db:"score" json:"score" validate:"min=0,max=100"`
	Correct     int       `db:"correct" json:"correct" validate:"min=0,ltefield=Total"`
	Total       int       `db:"total" json:"total" validate:"min=1"`
	Answered    int       `db:"answered" json:"answered" validate:"min=0,ltefield=Total"`
	TimeTaken   int       `db:"time_taken" json:"time_taken" validate:"min=0"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	Status      string    `db:"status" json:"status" validate:"required,max=32"`
	PassFail    string    `db:"pass_fail" json:"pass_fail,omitempty" validate:"omitempty,oneof=PASS FAILED"`

	Outcome Outcome `db:"-" json:"outcome"`
}

func (r *ExamResult) Validate() error {
	return validate.Struct(r)
}

// ValidateLogged checks a row read back from the daily log, which carries no
// status column.
func (r *ExamResult) ValidateLogged() error {
	return validate.StructExcept(r, "Status")
}

// Submission is the candidate supplied part of a result. Identity and
// profile fields come from the session, never from the payload.
type Submission struct {
	Score       int        `json:"score"`
	Correct     int        `json:"correct"`
	Total       int        `json:"total"`
	Answered    int        `json:"answered"`
	TimeTaken   int        `json:"time_taken"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Status      string     `json:"status,omitempty" validate:"omitempty,oneof=completed timeout disqualified"`
}

func (s *Submission) Validate() error {
	return validate.Struct(s)
}
