package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
)

const startText = `AI trend radar bot

/listsources - sources and their last crawl
/stats - this week's numbers
/crawl - run crawl and analysis now (admins)
/addsource {json} - add or update a source (admins)`

func ViewCmdStart() botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, startText)); err != nil {
			return err
		}
		return nil
	}
}
