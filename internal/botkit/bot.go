package botkit

import (
	"context"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/trend-radar/internal/logger"
)

// Сколько времени есть у view на обработку одного update
const updateTimeout = 10 * time.Second

type Bot struct {
	api      *tgbotapi.BotAPI
	cmdViews map[string]ViewFunc
}

// ViewFunc реагирует на одну команду.
// Update - любое событие от телеграма, bot - клиент, через который отвечаем
type ViewFunc func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error

func New(api *tgbotapi.BotAPI) *Bot {
	return &Bot{
		api: api,
	}
}

// RegisterCmdView регистрирует view для команды без слеша
func (b *Bot) RegisterCmdView(cmd string, view ViewFunc) {
	if b.cmdViews == nil {
		b.cmdViews = make(map[string]ViewFunc)
	}

	b.cmdViews[cmd] = view
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			updateCtx, updateCancel := context.WithTimeout(ctx, updateTimeout)
			b.handleUpdate(updateCtx, update)
			updateCancel()
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

// handleUpdate роутит команду в ее view
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// Паника во view не должна ронять бота
	defer func() {
		if p := recover(); p != nil {
			logger.Log.Errorf("panic recovered: %v\n%s", p, string(debug.Stack()))
		}
	}()

	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	view, ok := b.cmdViews[update.Message.Command()]
	if !ok {
		return
	}

	if err := view(ctx, b.api, update); err != nil {
		logger.Log.Errorf("failed to handle /%s: %v", update.Message.Command(), err)

		if _, err := b.api.Send(
			tgbotapi.NewMessage(update.Message.Chat.ID, "internal error"),
		); err != nil {
			logger.Log.Errorf("failed to send message: %v", err)
		}
	}
}
