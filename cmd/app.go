package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"github.com/kovalyov-valentin/trend-radar/internal/analyzer"
	"github.com/kovalyov-valentin/trend-radar/internal/collector"
	"github.com/kovalyov-valentin/trend-radar/internal/config"
	"github.com/kovalyov-valentin/trend-radar/internal/extract"
	"github.com/kovalyov-valentin/trend-radar/internal/llm"
	"github.com/kovalyov-valentin/trend-radar/internal/logger"
	"github.com/kovalyov-valentin/trend-radar/internal/notifier"
	"github.com/kovalyov-valentin/trend-radar/internal/pipeline"
	"github.com/kovalyov-valentin/trend-radar/internal/storage"
)

// app все зависимости процесса, собранные из конфига
type app struct {
	cfg config.Config
	db  *sqlx.DB

	sources  *storage.SourcePostgresStorage
	items    *storage.ItemPostgresStorage
	trends   *storage.TrendPostgresStorage
	actions  *storage.ActionPostgresStorage
	logs     *storage.CrawlLogPostgresStorage
	stats    *storage.StatsPostgresStorage
	pipeline *pipeline.Pipeline

	// nil, если токен бота не задан
	botAPI *tgbotapi.BotAPI
}

func connect(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newApp собирает хранилища, сборщик, анализатор и конвейер.
// Без ключа модели crawl только собирает записи, а analyze и serve не стартуют
func newApp(ctx context.Context, needAnalyzer bool) (*app, error) {
	cfg := config.Get()

	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		sources: storage.NewSourcePostgresStorage(db),
		items:   storage.NewItemPostgresStorage(db),
		trends:  storage.NewTrendPostgresStorage(db),
		actions: storage.NewActionPostgresStorage(db),
		logs:    storage.NewCrawlLogPostgresStorage(db),
		stats:   storage.NewStatsPostgresStorage(db),
	}

	if cfg.TelegramBotToken != "" {
		a.botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create bot: %w", err)
		}
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}

	coll := collector.New(
		a.sources,
		a.items,
		a.logs,
		collector.DefaultRegistry(client, cfg.UserAgent, cfg.RedditBaseURL, rate.NewLimiter(rate.Limit(cfg.RedditRPS), 1)),
		cfg.FilterKeywords,
	)
	if cfg.EnrichMinChars > 0 {
		coll.WithEnrichment(extract.NewReadability(client, cfg.UserAgent), cfg.EnrichMinChars)
	}

	anl, err := a.newAnalyzer(client)
	if err != nil {
		if needAnalyzer {
			db.Close()
			return nil, err
		}
		logger.Log.Warnf("analysis after crawl disabled: %v", err)
		anl = noAnalyzer{}
	}

	a.pipeline = pipeline.New(coll, anl, cfg.CrawlInterval)

	return a, nil
}

func (a *app) newAnalyzer(client *http.Client) (pipeline.Analyzer, error) {
	generator, err := newGenerator(a.cfg)
	if err != nil {
		return nil, err
	}

	alerts, destination, err := newNotifier(a.cfg, client, a.botAPI)
	if err != nil {
		return nil, err
	}

	return analyzer.New(
		a.items,
		a.trends,
		a.actions,
		generator,
		alerts,
		destination,
		a.cfg.ClaimTTL,
		a.cfg.Location(),
	), nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func newGenerator(cfg config.Config) (llm.Generator, error) {
	opts := llm.Options{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.AnthropicKey,
		Model:     cfg.AnthropicModel,
		BaseURL:   cfg.LLMBaseURL,
		MaxTokens: cfg.LLMMaxTokens,
	}
	if cfg.LLMProvider == llm.ProviderOpenAI {
		opts.APIKey = cfg.OpenAIKey
		opts.Model = cfg.OpenAIModel
	}

	return llm.New(opts)
}

// newNotifier возвращает канал оповещений и адресата в нем
func newNotifier(cfg config.Config, client *http.Client, botAPI *tgbotapi.BotAPI) (notifier.Notifier, string, error) {
	switch cfg.NotifyProvider {
	case notifier.ProviderTelegram:
		if botAPI == nil {
			return nil, "", fmt.Errorf("notify provider telegram needs telegram_bot_token")
		}
		return notifier.NewTelegram(botAPI), strconv.FormatInt(cfg.TelegramChatID, 10), nil
	case notifier.ProviderSMS:
		return notifier.NewSMS(client, cfg.SolapiBaseURL, cfg.SolapiAPIKey, cfg.SolapiAPISecret, cfg.SolapiSender),
			cfg.NotifyPhone, nil
	case notifier.ProviderNone, "":
		return notifier.Nop{}, "", nil
	default:
		return nil, "", fmt.Errorf("unknown notify provider %q", cfg.NotifyProvider)
	}
}

// noAnalyzer стоит на месте анализатора в команде crawl
type noAnalyzer struct{}

func (noAnalyzer) Run(context.Context) (analyzer.Result, error) {
	return analyzer.Result{Message: "Analyzer is not configured"}, nil
}
