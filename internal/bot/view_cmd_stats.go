package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type StatsProvider interface {
	Weekly(ctx context.Context, weekStart time.Time) (model.WeeklyStats, error)
}

func ViewCmdStats(stats StatsProvider, loc *time.Location) botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		weekly, err := stats.Weekly(ctx, model.WeekStart(time.Now(), loc))
		if err != nil {
			return err
		}

		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, formatStats(weekly))); err != nil {
			return err
		}
		return nil
	}
}

func formatStats(s model.WeeklyStats) string {
	return fmt.Sprintf(
		"Week of %s\nTrends: %d (high impact: %d)\nActions: %d, done: %d\nApply rate: %d%%",
		s.WeekStart,
		s.TotalTrends,
		s.HighImpactCount,
		s.TotalActions,
		s.CompletedActions,
		s.ApplyRate,
	)
}
