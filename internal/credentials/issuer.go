package credentials

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/crypto/bcrypt"

	"github.com/epitome/examportal/internal/metrics"
	"github.com/epitome/examportal/internal/models"
)

const (
	lowerLetters = "abcdefghijklmnopqrstuvwxyz"
	digits       = "0123456789"

	passwordDigits = 2

	DefaultPrefix         = "candidate"
	DefaultPasswordLength = 5
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid credential request")
)

// CandidateStore is the persistence the issuer needs.
type CandidateStore interface {
	NextCandidateSequence(ctx context.Context) (int64, error)
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidate(ctx context.Context, username string) (*models.Candidate, error)
	ListCandidates(ctx context.Context) ([]models.Candidate, error)
	MarkIssued(ctx context.Context, usernames []string) (int64, error)
}

type Config struct {
	DefaultPrefix         string `toml:"default_prefix"`
	DefaultPasswordLength int    `toml:"default_password_length"`
	BcryptCost            int    `toml:"bcrypt_cost"`
}

type GenerateRequest struct {
	Count          int    `json:"count" validate:"min=0,max=500"`
	Prefix         string `json:"prefix" validate:"required,alphanum,max=32"`
	PasswordLength int    `json:"password_length" validate:"min=3,max=32"`
}

// Issuer creates, checks and lists candidate credentials.
type Issuer struct {
	store   CandidateStore
	cfg     Config
	timeout time.Duration
	now     func() time.Time
}

func NewIssuer(store CandidateStore, cfg Config, timeout time.Duration) *Issuer {
	if cfg.DefaultPrefix == "" {
		cfg.DefaultPrefix = DefaultPrefix
	}
	if cfg.DefaultPasswordLength == 0 {
		cfg.DefaultPasswordLength = DefaultPasswordLength
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Issuer{
		store:   store,
		cfg:     cfg,
		timeout: timeout,
		now:     time.Now,
	}
}

// Request fills in configured defaults for an admin generate call.
func (i *Issuer) Request(count int, prefix string, passwordLength int) GenerateRequest {
	if prefix == "" {
		prefix = i.cfg.DefaultPrefix
	}
	if passwordLength == 0 {
		passwordLength = i.cfg.DefaultPasswordLength
	}
	return GenerateRequest{Count: count, Prefix: prefix, PasswordLength: passwordLength}
}

// Generate creates count credentials named {prefix}{seq:02d}. Each one is
// persisted as soon as it is made; on failure the credentials already stored
// are returned together with the error.
func (i *Issuer) Generate(ctx context.Context, req GenerateRequest) ([]models.Credential, error) {
	if err := models.Validator().Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	created := make([]models.Credential, 0, req.Count)
	for n := 0; n < req.Count; n++ {
		cred, err := i.generateOne(ctx, req)
		if err != nil {
			logger.Error.Printf("Credential generation stopped after %d of %d: %v", len(created), req.Count, err)
			return created, err
		}
		metrics.CredentialsGenerated.Inc()
		created = append(created, cred)
	}

	logger.Info.Printf("Generated %d credentials with prefix %q", len(created), req.Prefix)
	return created, nil
}

func (i *Issuer) generateOne(ctx context.Context, req GenerateRequest) (models.Credential, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	seq, err := i.store.NextCandidateSequence(ctx)
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to reserve username: %w", err)
	}

	password, err := GeneratePassword(req.PasswordLength)
	if err != nil {
		return models.Credential{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), i.cfg.BcryptCost)
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to hash password: %w", err)
	}

	c := models.Candidate{
		Username:     FormatUsername(req.Prefix, seq),
		PasswordHash: string(hash),
		Password:     password,
		CreatedAt:    i.now().UTC().Unix(),
	}
	if err := i.store.CreateCandidate(ctx, &c); err != nil {
		return models.Credential{}, err
	}

	return models.Credential{Username: c.Username, Password: password}, nil
}

// Validate reports whether the pair matches a stored credential.
func (i *Issuer) Validate(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	c, err := i.store.GetCandidate(ctx, username)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare password for %s: %w", username, err)
	}
	return true, nil
}

func (i *Issuer) MarkIssued(ctx context.Context, usernames []string) error {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	n, err := i.store.MarkIssued(ctx, usernames)
	if err != nil {
		return err
	}
	logger.Info.Printf("Marked %d of %d credentials as issued", n, len(usernames))
	return nil
}

func (i *Issuer) ListAll(ctx context.Context) ([]models.Candidate, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	return i.store.ListCandidates(ctx)
}

func (i *Issuer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, i.timeout)
}

func FormatUsername(prefix string, seq int64) string {
	return fmt.Sprintf("%s%02d", prefix, seq)
}

// GeneratePassword returns length-2 lowercase letters followed by 2 digits.
func GeneratePassword(length int) (string, error) {
	if length <= passwordDigits {
		return "", fmt.Errorf("%w: password length %d is too short", ErrInvalidRequest, length)
	}

	buf := make([]byte, 0, length)
	for n := 0; n < length; n++ {
		alphabet := lowerLetters
		if n >= length-passwordDigits {
			alphabet = digits
		}
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to draw random password: %w", err)
		}
		buf = append(buf, alphabet[idx.Int64()])
	}
	return string(buf), nil
}
