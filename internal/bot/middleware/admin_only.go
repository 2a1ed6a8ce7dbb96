package middleware

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tomakado/containers/set"

	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
)

// AdminOnly пропускает к next только пользователей из списка adminIDs
func AdminOnly(adminIDs []int64, next botkit.ViewFunc) botkit.ViewFunc {
	admins := set.New(adminIDs...)

	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		if update.Message.From != nil && admins.Contains(update.Message.From.ID) {
			return next(ctx, bot, update)
		}

		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "You are not allowed to run this command")); err != nil {
			return err
		}
		return nil
	}
}
