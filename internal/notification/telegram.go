package notification

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// UserLookup resolves the chat a user is reachable on
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// messageSender is the part of tgbotapi.BotAPI the sink uses
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink delivers notifications as Telegram chat messages
type TelegramSink struct {
	api    messageSender
	users  UserLookup
	logger *slog.Logger
}

// NewTelegramSink connects to the Bot API with the given token
func NewTelegramSink(token string, users UserLookup) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bot API")
	}
	slog.Info("authorized on telegram", "account", api.Self.UserName)
	return newTelegramSink(api, users), nil
}

func newTelegramSink(api messageSender, users UserLookup) *TelegramSink {
	return &TelegramSink{
		api:    api,
		users:  users,
		logger: slog.Default().With("component", "telegram"),
	}
}

// Deliver sends the notification to the user's chat. Users without a linked
// chat are skipped.
func (s *TelegramSink) Deliver(ctx context.Context, n Notification) error {
	user, err := s.users.GetByID(ctx, n.UserID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Debug("no such user, skipping notification", "user_id", n.UserID)
		return nil
	}
	if err != nil {
		return err
	}
	if user.ChatID == 0 {
		s.logger.Debug("user has no chat, skipping notification", "user_id", n.UserID)
		return nil
	}

	msg := tgbotapi.NewMessage(user.ChatID, formatMessage(n))
	if _, err := s.api.Send(msg); err != nil {
		return errors.Wrapf(err, "failed to send to chat %d", user.ChatID)
	}
	return nil
}

// formatMessage renders a plain-text message for a notification
func formatMessage(n Notification) string {
	switch n.Kind {
	case KindReviewReminder:
		return fmt.Sprintf("You have %s items due for review.", n.Payload["due_count"])
	case KindDailyDigest:
		return fmt.Sprintf("Streak: %s days. Lessons completed: %s. Weak areas: %s.",
			n.Payload["streak_days"], n.Payload["lessons_completed"], n.Payload["weak_areas"])
	}
	if title := n.Payload["title"]; title != "" {
		if desc := n.Payload["description"]; desc != "" {
			return fmt.Sprintf("%s\n%s", title, desc)
		}
		return title
	}
	return n.Kind
}
