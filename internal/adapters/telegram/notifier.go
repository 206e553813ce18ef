package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aegis/internal/adapters/config"
	"aegis/internal/domain/alert"
	"aegis/pkg/errors"
	"aegis/pkg/logger"
)

const sendRetries = 3

// Notifier pushes monitoring alerts to a set of Telegram chats.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	log     *logger.Logger
}

// NewNotifier creates a Telegram notifier
func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	return &Notifier{
		bot:     bot,
		chatIDs: cfg.ChatIDs,
		log:     logger.Get().With("component", "telegram_notifier"),
	}, nil
}

// NotifyAlert sends an alert to all configured chats
func (n *Notifier) NotifyAlert(ctx context.Context, a alert.Alert) error {
	text := formatAlert(a)

	for _, chatID := range n.chatIDs {
		if err := n.sendWithRetry(ctx, chatID, text); err != nil {
			return err
		}
	}
	return nil
}

// sendWithRetry sends a message, backing off between attempts
func (n *Notifier) sendWithRetry(ctx context.Context, chatID int64, text string) error {
	var lastErr error

	for attempt := 0; attempt < sendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		_, err := n.bot.Send(msg)
		if err == nil {
			return nil
		}

		lastErr = err
		n.log.Warnw("Failed to send notification, retrying...",
			"attempt", attempt+1,
			"max_retries", sendRetries,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	return errors.Wrapf(lastErr, "failed to send notification after %d retries", sendRetries)
}

func formatAlert(a alert.Alert) string {
	icon := "ℹ️"
	switch a.Level {
	case alert.LevelWarning:
		icon = "⚠️"
	case alert.LevelCritical:
		icon = "🚨"
	}

	text := fmt.Sprintf("%s [%s] %s", icon, a.Level, a.Message)
	if a.ActionRequired {
		text += "\n\nAction required."
	}
	return text
}
