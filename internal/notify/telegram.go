package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/epitome/examportal/internal/models"
)

// ChatAPI is the part of tgbotapi.BotAPI used for posting messages.
type ChatAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramConfig struct {
	Token   string  `toml:"token"`
	ChatIDs []int64 `toml:"chat_ids"`
}

func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && len(c.ChatIDs) > 0
}

// TelegramSender posts a short summary to each admin chat.
type TelegramSender struct {
	api      ChatAPI
	chatIDs  []int64
	composer *Composer
}

func NewTelegramSender(api ChatAPI, chatIDs []int64, composer *Composer) *TelegramSender {
	return &TelegramSender{api: api, chatIDs: chatIDs, composer: composer}
}

func (t *TelegramSender) Name() string {
	return "telegram"
}

func (t *TelegramSender) Send(ctx context.Context, r models.ExamResult) error {
	text := t.composer.Chat(r)

	var errs []error
	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
