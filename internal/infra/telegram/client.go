// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/infra/config"
)

// maxMessageRunes is the Telegram limit for one text message.
const maxMessageRunes = 4096

// Sender is the part of *telebot.Bot the channel needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements notify.Channel on top of gopkg.in/telebot.v3.
type TelebotAdapter struct {
	bot    Sender
	chatID int64
	logger *logrus.Entry
}

// NewBot creates an offline bot: it only sends, so it never polls for updates or calls getMe.
// apiURL may be empty for the public Bot API.
func NewBot(token, apiURL string) (*telebot.Bot, error) {
	return telebot.NewBot(telebot.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: 15 * time.Second},
	})
}

func NewTelebotAdapter(cfg config.TelegramConfig, bot Sender, logger *logrus.Entry) (*TelebotAdapter, error) {
	if !cfg.Enabled {
		return nil, notify.ErrChannelDisabled
	}
	return &TelebotAdapter{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

func (tba *TelebotAdapter) Name() string {
	return "telegram"
}

// Send posts the long-form report to the configured chat. telebot has no context support,
// so cancellation is only honoured before the request starts.
func (tba *TelebotAdapter) Send(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := truncateRunes(msg.Body, maxMessageRunes)
	sent, err := tba.bot.Send(&telebot.Chat{ID: tba.chatID}, text, &telebot.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("send telegram message to chat %d: %w", tba.chatID, err)
	}
	if sent != nil {
		tba.logger.WithFields(logrus.Fields{"chat_id": tba.chatID, "message_id": sent.ID}).Debug("Telegram message sent")
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
