package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
	"github.com/kovalyov-valentin/trend-radar/internal/logger"
	"github.com/kovalyov-valentin/trend-radar/internal/pipeline"
)

type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// ViewCmdCrawl запускает сбор и анализ вручную.
// Запуск длиннее таймаута update, поэтому идет в фоне на контексте сервиса serveCtx,
// а итог приходит отдельным сообщением
func ViewCmdCrawl(serveCtx context.Context, runner PipelineRunner) botkit.ViewFunc {
	return func(_ context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		chatID := update.Message.Chat.ID

		if _, err := bot.Send(tgbotapi.NewMessage(chatID, "Crawl started")); err != nil {
			return err
		}

		go func() {
			summary, runErr := runner.Run(serveCtx)

			if _, err := bot.Send(tgbotapi.NewMessage(chatID, formatSummary(summary, runErr))); err != nil {
				logger.Log.Errorf("failed to send crawl summary: %v", err)
			}
		}()

		return nil
	}
}

func formatSummary(s pipeline.Summary, err error) string {
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		return "Another run is in progress, try later"
	case err != nil:
		return "Crawl failed: " + err.Error()
	case s.Crawl.Message != "":
		return s.Crawl.Message
	}

	text := fmt.Sprintf("Crawl done in %d ms: %d new items from %d sources",
		s.Crawl.DurationMs, s.Crawl.TotalNewItems, len(s.Crawl.Results))

	switch {
	case s.AnalyzeError != "":
		text += "\nAnalysis failed: " + s.AnalyzeError
	case s.Analyze != nil:
		text += fmt.Sprintf("\nAnalysis: %d items, %d trends (%d high impact), %d actions",
			s.Analyze.ItemsAnalyzed, s.Analyze.TrendsCreated, s.Analyze.HighImpactCount, s.Analyze.ActionsCreated)
	}

	return text
}
