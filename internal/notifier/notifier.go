// Package notifier доставляет короткие оповещения о важных трендах.
package notifier

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/trend-radar/internal/botkit/markup"
)

const (
	ProviderTelegram = "telegram"
	ProviderSMS      = "sms"
	ProviderNone     = "none"
)

// Notifier отправляет сообщение адресату: id чата или номер телефона
type Notifier interface {
	Notify(ctx context.Context, destination, message string) error
}

// Nop ничего не отправляет
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error {
	return nil
}

// MessageSender часть tgbotapi.BotAPI, которая нужна для отправки
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot MessageSender
}

func NewTelegram(bot MessageSender) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) Notify(_ context.Context, destination, message string) error {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", destination, err)
	}

	// Текст может содержать спецсимволы markdown, поэтому экранируем
	msg := tgbotapi.NewMessage(chatID, markup.EscapeForMarkdown(message))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
