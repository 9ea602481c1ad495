package telegram

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Service pushes task notification summaries to the owner's Telegram chat.
// The whole service is optional: when no bot token is configured the app
// simply doesn't construct one.
type Service struct {
	logger *log.Logger
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewService authenticates the bot and binds it to the destination chat.
func NewService(botToken string, chatID int64, logger *log.Logger) (*Service, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	logger.Printf("telegram notifications enabled (bot %s)", bot.Self.UserName)

	return &Service{
		logger: logger,
		bot:    bot,
		chatID: chatID,
	}, nil
}

// SendTaskSummary delivers a task's notification summary.
func (s *Service) SendTaskSummary(taskName, summary string) error {
	msg := tgbotapi.NewMessage(s.chatID, fmt.Sprintf("🔔 %s\n%s", taskName, summary))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("send summary for %q: %w", taskName, err)
	}
	return nil
}
