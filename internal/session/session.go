package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/epitome/examportal/internal/models"
)

type UserType string

const (
	UserTypeAdmin     UserType = "admin"
	UserTypeCandidate UserType = "candidate"
)

type State string

const (
	StateAnonymous              State = "anonymous"
	StateAdminAuthenticated     State = "admin_authenticated"
	StateCandidateAuthenticated State = "candidate_authenticated"
	StateExamInProgress         State = "exam_in_progress"
	StateExamSubmitted          State = "exam_submitted"
)

var (
	ErrNotCandidate     = errors.New("session does not belong to a candidate")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrExamNotStarted   = errors.New("exam not started")
)

// Session is the server side state of one login.
type Session struct {
	ID            string
	UserType      UserType
	Username      string
	Profile       models.Profile
	ExamStarted   bool
	ExamSubmitted bool
	CreatedAt     time.Time
}

// New returns an anonymous session with a fresh id.
func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func (s *Session) State() State {
	if s == nil {
		return StateAnonymous
	}
	switch s.UserType {
	case UserTypeAdmin:
		return StateAdminAuthenticated
	case UserTypeCandidate:
		switch {
		case s.ExamSubmitted:
			return StateExamSubmitted
		case s.ExamStarted:
			return StateExamInProgress
		default:
			return StateCandidateAuthenticated
		}
	default:
		return StateAnonymous
	}
}

func (s *Session) Authenticated() bool {
	return s.State() != StateAnonymous
}

func (s *Session) LoginAdmin(username string) {
	s.Clear()
	s.UserType = UserTypeAdmin
	s.Username = username
}

func (s *Session) LoginCandidate(username string, profile models.Profile) {
	s.Clear()
	s.UserType = UserTypeCandidate
	s.Username = username
	s.Profile = profile
}

// StartExam moves a candidate into the exam. Starting twice is a no-op;
// a submitted session returns ErrAlreadySubmitted and stays submitted.
func (s *Session) StartExam() error {
	switch s.State() {
	case StateCandidateAuthenticated:
		s.ExamStarted = true
		return nil
	case StateExamInProgress:
		return nil
	case StateExamSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotCandidate
	}
}

// Submit ends the exam. The submitted state is terminal until logout.
func (s *Session) Submit() error {
	switch s.State() {
	case StateExamInProgress:
		s.ExamStarted = false
		s.ExamSubmitted = true
		return nil
	case StateExamSubmitted:
		return ErrAlreadySubmitted
	case StateCandidateAuthenticated:
		return ErrExamNotStarted
	default:
		return ErrNotCandidate
	}
}

// Clear drops every attribute except the id.
func (s *Session) Clear() {
	*s = Session{ID: s.ID, CreatedAt: s.CreatedAt}
}
