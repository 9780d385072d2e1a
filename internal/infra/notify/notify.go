// Package notify delivers operator alerts.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/port"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Log writes alerts to the structured log. It is the default notifier.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a new Log notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

var _ port.Notifier = (*Log)(nil)

// Notify logs the alert at error level.
func (l *Log) Notify(_ context.Context, alert domain.Alert) error {
	fields := []zap.Field{zap.String("alert", alert.Title), zap.String("message", alert.Message)}
	for _, k := range sortedKeys(alert.Fields) {
		fields = append(fields, zap.String(k, alert.Fields[k]))
	}
	l.logger.Error("operator alert", fields...)
	return nil
}

// sender is the part of *tgbotapi.BotAPI we need.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts alerts to a chat and mirrors them to the log.
type Telegram struct {
	api    sender
	chatID int64
	log    *Log
}

// NewTelegram creates a Telegram notifier on an existing bot client.
func NewTelegram(api sender, chatID int64, logger *zap.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: NewLog(logger)}
}

// DialTelegram authenticates the bot token and returns a notifier for chatID.
func DialTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	logger.Info("telegram alerts enabled", zap.String("bot", api.Self.UserName), zap.Int64("chat_id", chatID))
	return NewTelegram(api, chatID, logger), nil
}

var _ port.Notifier = (*Telegram)(nil)

// Notify sends the alert. The log copy is written even when Telegram fails.
func (t *Telegram) Notify(ctx context.Context, alert domain.Alert) error {
	_ = t.log.Notify(ctx, alert)

	msg := tgbotapi.NewMessage(t.chatID, Format(alert))
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

// Format renders an alert as plain text.
func Format(alert domain.Alert) string {
	var b strings.Builder
	b.WriteString("⚠️ ")
	b.WriteString(alert.Title)
	if alert.Message != "" {
		b.WriteString("\n")
		b.WriteString(alert.Message)
	}
	for _, k := range sortedKeys(alert.Fields) {
		fmt.Fprintf(&b, "\n%s: %s", k, alert.Fields[k])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
