package mailer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI is the part of *tgbotapi.BotAPI the sender needs.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts digests to the user's Telegram chat.
type TelegramSender struct {
	api telegramAPI
}

// NewTelegramSender connects to the Bot API; every request is bounded by timeout.
func NewTelegramSender(token string, timeout time.Duration) (*TelegramSender, error) {
	return newTelegramSender(token, tgbotapi.APIEndpoint, timeout)
}

func newTelegramSender(token, endpoint string, timeout time.Duration) (*TelegramSender, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &TelegramSender{api: api}, nil
}

func (s *TelegramSender) Send(ctx context.Context, d Digest) error {
	if d.TelegramID == 0 {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(d.TelegramID, d.HTML())
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send digest %s to chat %d: %w", d.ID, d.TelegramID, err)
	}
	return nil
}
