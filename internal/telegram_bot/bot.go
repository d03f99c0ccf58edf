// Package telegram_bot pushes moderator alerts to a Telegram chat when a
// chapter gets blocked by automated analysis. Entirely optional: a nil
// *Bot is a safe no-op observer.
package telegram_bot

import (
	"fmt"
	"strings"

	"moderation-service/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot sends moderation alerts to a configured moderators chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewBot creates the alert bot.
func NewBot(token string, chatID int64, logger *zap.Logger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram alert bot initialized", zap.String("bot", api.Self.UserName))

	return &Bot{api: api, chatID: chatID, logger: logger}, nil
}

// RecordBlocked announces a newly blocked chapter to the moderators chat.
func (b *Bot) RecordBlocked(rec *models.ModerationRecord) {
	if b == nil {
		return
	}

	title := rec.ChapterTitle
	if title == "" {
		title = rec.ChapterID
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🚫 Chapter blocked by automated analysis\n\n")
	fmt.Fprintf(&sb, "Chapter: %s\n", title)
	if rec.AuthorName != "" {
		fmt.Fprintf(&sb, "Author: %s\n", rec.AuthorName)
	}
	fmt.Fprintf(&sb, "Risk score: %d\n", rec.RiskScore)
	if len(rec.Labels) > 0 {
		fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(rec.Labels, ", "))
	}
	sb.WriteString("\nThe chapter is waiting in the moderation queue.")

	msg := tgbotapi.NewMessage(b.chatID, sb.String())
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send telegram alert",
			zap.String("chapter_id", rec.ChapterID),
			zap.Error(err))
	}
}
