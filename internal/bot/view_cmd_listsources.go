package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
	"github.com/kovalyov-valentin/trend-radar/internal/botkit/markup"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type SourceLister interface {
	SourcesWithLogs(ctx context.Context) ([]model.SourceWithLog, error)
}

func ViewCmdListSources(lister SourceLister) botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		sources, err := lister.SourcesWithLogs(ctx)
		if err != nil {
			return err
		}

		reply := tgbotapi.NewMessage(update.Message.Chat.ID, formatSources(sources))
		reply.ParseMode = tgbotapi.ModeMarkdownV2
		reply.DisableWebPagePreview = true

		if _, err := bot.Send(reply); err != nil {
			return err
		}
		return nil
	}
}

func formatSources(sources []model.SourceWithLog) string {
	infos := lo.Map(sources, func(source model.SourceWithLog, _ int) string {
		return formatSource(source)
	})

	return fmt.Sprintf(
		"Sources \\(total %d\\):\n\n%s",
		len(sources),
		strings.Join(infos, "\n\n"),
	)
}

func formatSource(source model.SourceWithLog) string {
	state := "active"
	if !source.IsActive {
		state = "paused"
	}

	lines := []string{
		fmt.Sprintf("%s *%s* \\(%s, %s\\)",
			markup.EscapeForMarkdown(source.Icon),
			markup.EscapeForMarkdown(source.Name),
			markup.EscapeForMarkdown(source.Kind),
			state,
		),
		fmt.Sprintf("ID: `%d`, collected: %d", source.ID, source.TotalCollected),
	}

	if log := source.RecentLog; log != nil {
		last := fmt.Sprintf("last run: %s, found %d, new %d",
			log.Status, log.ItemsFound, log.ItemsNew)
		if log.ErrorMessage != nil {
			last += ", " + *log.ErrorMessage
		}
		lines = append(lines, markup.EscapeForMarkdown(last))
	}

	return strings.Join(lines, "\n")
}
