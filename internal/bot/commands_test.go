package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/epitome/examportal/internal/models"
)

const (
	adminID    int64 = 42
	strangerID int64 = 7
	chatID     int64 = 1001
)

type MockPortal struct {
	mock.Mock
}

func (m *MockPortal) GenerateCredentials(ctx context.Context, count int, prefix string, passwordLength int) ([]models.Credential, error) {
	args := m.Called(count, prefix, passwordLength)
	return args.Get(0).([]models.Credential), args.Error(1)
}

func (m *MockPortal) ListCredentials(ctx context.Context) ([]models.Candidate, error) {
	args := m.Called()
	return args.Get(0).([]models.Candidate), args.Error(1)
}

func (m *MockPortal) MarkIssued(ctx context.Context, usernames []string) bool {
	return m.Called(usernames).Bool(0)
}

func (m *MockPortal) ListResults(ctx context.Context, limit int) ([]models.ExamResult, error) {
	args := m.Called(limit)
	return args.Get(0).([]models.ExamResult), args.Error(1)
}

func (m *MockPortal) LatestResultFor(ctx context.Context, username string) (*models.ExamResult, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamResult), args.Error(1)
}

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	msgs := f.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func setupBot() (*Bot, *MockPortal, *fakeAPI) {
	cfg := &Config{}
	cfg.Bot.AdminIDs = []int64{adminID}
	portal := new(MockPortal)
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	return newBot(cfg, portal, api), portal, api
}

func command(from int64, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: from},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(cmd)},
		},
	}
}

func TestHelpDependsOnRole(t *testing.T) {
	b, _, api := setupBot()
	ctx := context.Background()

	b.handleMessage(ctx, command(strangerID, "/help"))
	assert.Equal(t, publicHelp, api.last(t).Text)

	b.handleMessage(ctx, command(adminID, "/help"))
	assert.Equal(t, adminHelp, api.last(t).Text)

	b.handleMessage(ctx, &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: chatID}, From: &tgbotapi.User{ID: adminID}})
	assert.Contains(t, api.last(t).Text, "/help")
}

func TestChatID(t *testing.T) {
	b, _, api := setupBot()
	b.handleMessage(context.Background(), command(strangerID, "/chatid"))
	assert.Equal(t, "Chat id: 1001", api.last(t).Text)
}

func TestAdminCommandsIgnoredForStrangers(t *testing.T) {
	b, portal, api := setupBot()
	b.handleMessage(context.Background(), command(strangerID, "/generate 5"))

	portal.AssertNotCalled(t, "GenerateCredentials", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, api.last(t).Text, "/help")
}

func TestGenerate(t *testing.T) {
	b, portal, api := setupBot()
	portal.On("GenerateCredentials", 2, "cand", 5).Return([]models.Credential{
		{Username: "cand01", Password: "abc12"},
		{Username: "cand02", Password: "xyz34"},
	}, nil).Once()

	b.handleMessage(context.Background(), command(adminID, "/generate 2 cand 5"))

	msg := api.last(t)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Generated 2 credentials")
	assert.Contains(t, msg.Text, "<pre>")
	assert.Contains(t, msg.Text, "cand01")
	assert.Contains(t, msg.Text, "xyz34")
	portal.AssertExpectations(t)
}

func TestGenerateValidatesArguments(t *testing.T) {
	b, portal, api := setupBot()
	ctx := context.Background()

	b.handleMessage(ctx, command(adminID, "/generate"))
	assert.Contains(t, api.last(t).Text, "usage: /generate")

	b.handleMessage(ctx, command(adminID, "/generate lots"))
	assert.Contains(t, api.last(t).Text, "count must be a number")

	b.handleMessage(ctx, command(adminID, "/generate 1000"))
	assert.Contains(t, api.last(t).Text, "count must be a number")

	portal.AssertNotCalled(t, "GenerateCredentials", mock.Anything, mock.Anything, mock.Anything)
}

func TestGeneratePartialFailure(t *testing.T) {
	b, portal, api := setupBot()
	portal.On("GenerateCredentials", 3, "", 0).Return([]models.Credential{
		{Username: "candidate01", Password: "abc12"},
	}, errors.New("database is locked")).Once()

	b.handleMessage(context.Background(), command(adminID, "/generate 3"))

	msgs := api.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "candidate01")
	assert.Contains(t, msgs[1].Text, "stopped after 1 credentials")
}

func TestCredentialsListsIssuedWithPasswords(t *testing.T) {
	b, portal, api := setupBot()
	portal.On("ListCredentials").Return([]models.Candidate{
		{Username: "cand01", Password: "abc12", Issued: true},
		{Username: "cand02", Password: "qwe56"},
	}, nil).Once()

	b.handleMessage(context.Background(), command(adminID, "/credentials"))

	text := api.last(t).Text
	assert.Contains(t, text, "2 credentials, 1 not issued")
	assert.Contains(t, text, "cand01")
	assert.Contains(t, text, "abc12")
	assert.Contains(t, text, "cand02")
	assert.Contains(t, text, "qwe56")
}

func TestCredentialsEmpty(t *testing.T) {
	b, portal, api := setupBot()
	portal.On("ListCredentials").Return([]models.Candidate{}, nil).Once()

	b.handleMessage(context.Background(), command(adminID, "/credentials"))

	assert.Equal(t, "No credentials generated yet", api.last(t).Text)
}

func TestIssued(t *testing.T) {
	b, portal, api := setupBot()
	portal.On("MarkIssued", []string{"cand01", "cand02"}).Return(true).Once()
	portal.On("MarkIssued", []string{"cand09"}).Return(false).Once()
	ctx := context.Background()

	b.handleMessage(ctx, command(adminID, "/issued cand01 cand02"))
	assert.Contains(t, api.last(t).Text, "Marked as issued: cand01, cand02")

	b.handleMessage(ctx, command(adminID, "/issued cand09"))
	assert.Contains(t, api.last(t).Text, "Error: could not mark")
	portal.AssertExpectations(t)
}

func TestResultsAndLatest(t *testing.T) {
	b, portal, api := setupBot()
	result := models.ExamResult{
		Username:    "cand01",
		FullName:    "Amina Bello",
		Subject:     "biology",
		Score:       75,
		Correct:     30,
		Total:       40,
		Answered:    38,
		TimeTaken:   600,
		SubmittedAt: time.Date(2025, 10, 5, 11, 30, 0, 0, time.UTC),
		Status:      models.StatusCompleted,
		Outcome:     models.OutcomePass,
	}
	portal.On("ListResults", 10).Return([]models.ExamResult{result}, nil).Once()
	portal.On("ListResults", 3).Return([]models.ExamResult{}, nil).Once()
	portal.On("LatestResultFor", "cand01").Return(&result, nil).Once()
	portal.On("LatestResultFor", "cand99").Return(nil, nil).Once()
	ctx := context.Background()

	b.handleMessage(ctx, command(adminID, "/results"))
	text := api.last(t).Text
	assert.Contains(t, text, "BIOLOGY")
	assert.Contains(t, text, "30/40")
	assert.Contains(t, text, "PASS")

	b.handleMessage(ctx, command(adminID, "/results 3"))
	assert.Equal(t, "No exam results yet", api.last(t).Text)

	b.handleMessage(ctx, command(adminID, "/latest cand01"))
	assert.Contains(t, api.last(t).Text, "Score: 30/40 (75%) PASS")
	assert.Contains(t, api.last(t).Text, "2025-10-05 11:30:00 UTC")

	b.handleMessage(ctx, command(adminID, "/latest cand99"))
	assert.Equal(t, "No result for cand99", api.last(t).Text)
	portal.AssertExpectations(t)
}

func TestStartStopsOnContext(t *testing.T) {
	b, _, _ := setupBot()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}
