package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/credentials"
	"github.com/epitome/examportal/internal/ledger"
	"github.com/epitome/examportal/internal/metrics"
	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/notify"
	"github.com/epitome/examportal/internal/scoring"
	"github.com/epitome/examportal/internal/session"
	"github.com/epitome/examportal/internal/store"
)

var (
	ErrInvalidLogin   = errors.New("invalid credentials")
	ErrInvalidProfile = errors.New("invalid profile")
)

const shutdownGrace = 10 * time.Second

type Service struct {
	Config     *Config
	Store      store.ExamStore
	Sessions   session.Store
	Grader     *scoring.Grader
	Issuer     *credentials.Issuer
	Ledger     *ledger.Ledger
	Dispatcher *notify.Dispatcher
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return New(context.Background(), config)
}

// New wires every component from an already loaded config.
func New(ctx context.Context, config *Config) (*Service, error) {
	st, err := NewStore(store.DBConfig{
		DSN:           config.Database.DSN,
		MigrationsDir: config.Database.MigrationsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	sessions, err := newSessionStore(ctx, config)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	dailyLog, err := ledger.NewDailyLog(config.Ledger.LogsDir)
	if err != nil {
		st.Close()
		sessions.Close()
		return nil, fmt.Errorf("failed to init result log: %w", err)
	}

	grader := scoring.NewGrader(config.Scoring.PassThreshold)
	senders, err := newSenders(config, grader, dailyLog)
	if err != nil {
		st.Close()
		sessions.Close()
		return nil, fmt.Errorf("failed to init notifications: %w", err)
	}

	return &Service{
		Config:     config,
		Store:      st,
		Sessions:   sessions,
		Grader:     grader,
		Issuer:     credentials.NewIssuer(st, config.Credentials, config.OpTimeout()),
		Ledger:     ledger.New(st, dailyLog, grader, config.Ledger.DefaultLimit, config.OpTimeout()),
		Dispatcher: notify.NewDispatcher(config.NotifyTimeout(), senders...),
	}, nil
}

func newSessionStore(ctx context.Context, config *Config) (session.Store, error) {
	if config.Sessions.RedisURL == "" {
		logger.Info.Println("No redis configured, keeping sessions in memory")
		return session.NewMemoryStore(), nil
	}
	return session.NewRedisStore(ctx, config.Sessions.RedisURL)
}

func newSenders(config *Config, grader *scoring.Grader, dailyLog *ledger.DailyLog) ([]notify.Sender, error) {
	composer := notify.NewComposer(grader)

	var senders []notify.Sender
	if config.Notify.Mail.Enabled() {
		senders = append(senders, notify.NewMailSender(config.Notify.Mail, composer, dailyLog.Today))
	}
	if config.Notify.Telegram.Enabled() {
		api, err := tgbotapi.NewBotAPI(config.Notify.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram client: %w", err)
		}
		senders = append(senders, notify.NewTelegramSender(api, config.Notify.Telegram.ChatIDs, composer))
	}
	if len(senders) == 0 {
		logger.Info.Println("No notification channels configured")
	}
	return senders, nil
}

// LoadSession returns the stored session for id, or a fresh anonymous one
// when the id is empty, unknown or expired.
func (s *Service) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return session.New(), nil
	}
	sess, err := s.Sessions.Get(ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		return session.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

func (s *Service) saveSession(ctx context.Context, sess *session.Session) error {
	return s.Sessions.Save(ctx, sess, s.Config.SessionTTL())
}

// rotate drops the old session and returns a fresh one so that a login never
// inherits state or an id from before it.
func (s *Service) rotate(ctx context.Context, old *session.Session) *session.Session {
	if old != nil && old.ID != "" {
		if err := s.Sessions.Delete(ctx, old.ID); err != nil {
			logger.Error.Printf("Failed to drop session %s on login: %v", old.ID, err)
		}
	}
	return session.New()
}

func (s *Service) LoginAdmin(ctx context.Context, old *session.Session, username, password string) (*session.Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.Config.Admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.Config.Admin.Password)) == 1
	if !userOK || !passOK {
		metrics.LoginsTotal.WithLabelValues(string(session.UserTypeAdmin), "rejected").Inc()
		logger.Info.Printf("Rejected admin login for %q", username)
		return nil, ErrInvalidLogin
	}

	sess := s.rotate(ctx, old)
	sess.LoginAdmin(username)
	if err := s.saveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues(string(session.UserTypeAdmin), "accepted").Inc()
	logger.Info.Printf("Admin %s logged in", username)
	return sess, nil
}

func (s *Service) LoginCandidate(ctx context.Context, old *session.Session, username, password string, profile models.Profile) (*session.Session, error) {
	username = strings.TrimSpace(username)
	ok, err := s.Issuer.Validate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to validate credentials: %w", err)
	}
	if !ok {
		metrics.LoginsTotal.WithLabelValues(string(session.UserTypeCandidate), "rejected").Inc()
		logger.Info.Printf("Rejected candidate login for %q", username)
		return nil, ErrInvalidLogin
	}

	profile.FullName = strings.TrimSpace(profile.FullName)
	profile.Email = strings.TrimSpace(profile.Email)
	profile.Subject = strings.TrimSpace(profile.Subject)
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProfile, ledger.Describe(err))
	}

	sess := s.rotate(ctx, old)
	sess.LoginCandidate(username, profile)
	if err := s.saveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues(string(session.UserTypeCandidate), "accepted").Inc()
	logger.Info.Printf("Candidate %s logged in for %s", username, profile.Subject)
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return nil
	}
	if sess.Authenticated() {
		logger.Info.Printf("%s %s logged out", sess.UserType, sess.Username)
	}
	sess.Clear()
	return s.Sessions.Delete(ctx, sess.ID)
}

// StartExam returns session.ErrAlreadySubmitted for a finished attempt so
// the caller can send the candidate to the result view.
func (s *Service) StartExam(ctx context.Context, sess *session.Session) error {
	if sess.State() == session.StateExamInProgress {
		return nil
	}
	if err := sess.StartExam(); err != nil {
		return err
	}
	if err := s.saveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	logger.Info.Printf("Candidate %s started the %s exam", sess.Username, sess.Profile.Subject)
	return nil
}

// SubmitExam records the candidate's result, fires notifications and closes
// the attempt. Identity and profile come from the session only.
func (s *Service) SubmitExam(ctx context.Context, sess *session.Session, sub models.Submission) (*models.ExamResult, error) {
	probe := *sess
	if err := probe.Submit(); err != nil {
		return nil, err
	}
	if err := sub.Validate(); err != nil {
		return nil, &ledger.ValidationError{Reason: ledger.Describe(err)}
	}

	result := &models.ExamResult{
		Username:  sess.Username,
		FullName:  sess.Profile.FullName,
		Email:     sess.Profile.Email,
		Subject:   sess.Profile.Subject,
		Score:     sub.Score,
		Correct:   sub.Correct,
		Total:     sub.Total,
		Answered:  sub.Answered,
		TimeTaken: sub.TimeTaken,
		Status:    sub.Status,
	}
	if sub.SubmittedAt != nil {
		result.SubmittedAt = *sub.SubmittedAt
	}

	if _, err := s.Ledger.Record(ctx, result); err != nil {
		return nil, err
	}

	s.Dispatcher.Notify(*result)

	if err := sess.Submit(); err != nil {
		return nil, err
	}
	if err := s.saveSession(ctx, sess); err != nil {
		logger.Error.Printf("Result %d recorded but session for %s not saved: %v", result.ID, sess.Username, err)
	}
	return result, nil
}

func (s *Service) LatestResult(ctx context.Context, sess *session.Session) (*models.ExamResult, error) {
	return s.LatestResultFor(ctx, sess.Username)
}

func (s *Service) LatestResultFor(ctx context.Context, username string) (*models.ExamResult, error) {
	return s.Ledger.LatestFor(ctx, username)
}

func (s *Service) Summarize(r *models.ExamResult) scoring.Summary {
	return s.Grader.Summarize(r)
}

func (s *Service) ListResults(ctx context.Context, limit int) ([]models.ExamResult, error) {
	return s.Ledger.ListAll(ctx, limit)
}

func (s *Service) ExportResults() ([]models.ExamResult, error) {
	return s.Ledger.ReplayFromLogs()
}

func (s *Service) GenerateCredentials(ctx context.Context, count int, prefix string, passwordLength int) ([]models.Credential, error) {
	return s.Issuer.Generate(ctx, s.Issuer.Request(count, prefix, passwordLength))
}

func (s *Service) ListCredentials(ctx context.Context) ([]models.Candidate, error) {
	return s.Issuer.ListAll(ctx)
}

// MarkIssued reports success only; per-row detail is not exposed.
func (s *Service) MarkIssued(ctx context.Context, usernames []string) bool {
	if err := s.Issuer.MarkIssued(ctx, usernames); err != nil {
		logger.Error.Printf("Failed to mark credentials issued: %v", err)
		return false
	}
	return true
}

func (s *Service) Close() error {
	var errs []error

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.Dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
	}
	if err := s.Sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
