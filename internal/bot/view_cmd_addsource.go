package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
	"github.com/kovalyov-valentin/trend-radar/internal/botkit/markup"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type SourceStorage interface {
	Add(ctx context.Context, source model.Source) (int64, error)
}

type addSourceArgs struct {
	Name     string          `json:"name"`
	Icon     string          `json:"icon"`
	Kind     string          `json:"source_type"`
	Config   json.RawMessage `json:"config"`
	IsActive *bool           `json:"is_active"`
}

// ViewCmdAddSource добавляет источник или обновляет источник с тем же именем.
// Пример: /addsource {"name":"HN","source_type":"rss","config":{"feed_url":"https://hnrss.org/frontpage"}}
func ViewCmdAddSource(storage SourceStorage) botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		args, err := botkit.ParseJSON[addSourceArgs](update.Message.CommandArguments())
		if err == nil {
			err = args.validate()
		}
		if err != nil {
			// Некорректный ввод - отвечаем пользователю, а не падаем
			reply := tgbotapi.NewMessage(update.Message.Chat.ID, "Bad arguments: "+err.Error())
			_, sendErr := bot.Send(reply)
			return sendErr
		}

		sourceID, err := storage.Add(ctx, args.toModel())
		if err != nil {
			return err
		}

		reply := tgbotapi.NewMessage(update.Message.Chat.ID, fmt.Sprintf(
			"Source *%s* saved with ID: `%d`\\.",
			markup.EscapeForMarkdown(args.Name),
			sourceID,
		))
		reply.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := bot.Send(reply); err != nil {
			return err
		}
		return nil
	}
}

func (a addSourceArgs) validate() error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	if a.Kind == "" {
		return errors.New("source_type is required")
	}
	if len(a.Config) > 0 && !json.Valid(a.Config) {
		return errors.New("config must be a JSON object")
	}
	return nil
}

func (a addSourceArgs) toModel() model.Source {
	isActive := true
	if a.IsActive != nil {
		isActive = *a.IsActive
	}

	return model.Source{
		Name:     a.Name,
		Icon:     a.Icon,
		Kind:     a.Kind,
		Config:   a.Config,
		IsActive: isActive,
	}
}
