package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/models"
)

// API is the subset of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Portal is the exam service as seen by the admin bot.
type Portal interface {
	GenerateCredentials(ctx context.Context, count int, prefix string, passwordLength int) ([]models.Credential, error)
	ListCredentials(ctx context.Context) ([]models.Candidate, error)
	MarkIssued(ctx context.Context, usernames []string) bool
	ListResults(ctx context.Context, limit int) ([]models.ExamResult, error)
	LatestResultFor(ctx context.Context, username string) (*models.ExamResult, error)
}

type Bot struct {
	config *Config
	portal Portal
	api    API
	admins map[int64]bool
}

func New(config *Config, portal Portal) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return newBot(config, portal, api), nil
}

func newBot(config *Config, portal Portal, api API) *Bot {
	admins := make(map[int64]bool)
	for _, id := range config.Bot.AdminIDs {
		admins[id] = true
	}

	return &Bot{
		config: config,
		portal: portal,
		api:    api,
		admins: admins,
	}
}

// Start handles updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			go b.handleMessage(ctx, update.Message)

		case <-ctx.Done():
			logger.Info.Println("Shutting down bot...")
			return nil
		}
	}
}
