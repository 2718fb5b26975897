package notification

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const telegramMaxMessage = 4096

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel posts admin alerts to a Telegram chat.
type TelegramChannel struct {
	bot     telegramSender
	chatID  int64
	limiter *rate.Limiter
}

// NewTelegram authenticates the bot token against the Bot API.
func NewTelegram(token string, chatID int64) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

// Telegram allows roughly 20 messages per minute into a group chat.
func newTelegram(bot telegramSender, chatID int64) *TelegramChannel {
	return &TelegramChannel{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 5),
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Send(ctx context.Context, event Event) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, truncate(adminAlert(event), telegramMaxMessage))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// truncate caps s at max characters, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
