package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stopguard/pkg/utils"
)

// sender.go - транспорт уведомлений в Telegram.
//
// Узкий односторонний канал: процесс только отправляет plain-text
// сообщения в один чат оператора. Входящие команды и клавиатуры
// не поддерживаются.

// Sender отправляет сообщения в заданный чат
type Sender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *utils.Logger
}

// NewSender создает отправителя и проверяет токен через getMe
func NewSender(token string, chatID int64, logger *utils.Logger) (*Sender, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	logger.Info("telegram sender initialized",
		utils.String("bot_username", bot.Self.UserName))

	return &Sender{
		bot:    bot,
		chatID: chatID,
		logger: logger.WithComponent("telegram"),
	}, nil
}

// Send отправляет plain-text сообщение в чат оператора.
// Контекст проверяется до сетевого вызова: сам клиент Telegram
// контекст не принимает.
func (s *Sender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
