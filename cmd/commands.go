package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kovalyov-valentin/trend-radar/internal/api"
	"github.com/kovalyov-valentin/trend-radar/internal/bot"
	"github.com/kovalyov-valentin/trend-radar/internal/bot/middleware"
	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
	"github.com/kovalyov-valentin/trend-radar/internal/config"
	"github.com/kovalyov-valentin/trend-radar/internal/logger"
	"github.com/kovalyov-valentin/trend-radar/internal/storage"
)

// Сколько ждем завершения запросов при остановке сервера
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the scheduled pipeline and the admin bot",
	RunE:  runServe,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl all active sources once and analyze new items",
	RunE:  runCrawl,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one batch of unprocessed items",
	RunE:  runAnalyze,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create database tables",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add or update sources from a yaml file",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().String("file", "", "sources file (default from config)")

	rootCmd.AddCommand(serveCmd, crawlCmd, analyzeCmd, migrateCmd, seedCmd)
}

// Graceful shutdown по SIGINT и SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	// Воркер конвейера
	go func(ctx context.Context) {
		if err := a.pipeline.Start(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Log.Errorf("failed to start pipeline: %v", err)
				return
			}

			logger.Log.Info("pipeline stopped")
		}
	}(ctx)

	if a.botAPI != nil {
		// Админские команды закрыты middleware
		adminBot := botkit.New(a.botAPI)
		adminBot.RegisterCmdView("start", bot.ViewCmdStart())
		adminBot.RegisterCmdView("listsources", bot.ViewCmdListSources(a.sources))
		adminBot.RegisterCmdView("stats", bot.ViewCmdStats(a.stats, a.cfg.Location()))
		adminBot.RegisterCmdView(
			"crawl",
			middleware.AdminOnly(a.cfg.TelegramAdminIDs, bot.ViewCmdCrawl(ctx, a.pipeline)),
		)
		adminBot.RegisterCmdView(
			"addsource",
			middleware.AdminOnly(a.cfg.TelegramAdminIDs, bot.ViewCmdAddSource(a.sources)),
		)

		go func(ctx context.Context) {
			if err := adminBot.Run(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Log.Errorf("failed to start bot: %v", err)
					return
				}

				logger.Log.Info("bot stopped")
			}
		}(ctx)
	}

	server := &http.Server{
		Addr: a.cfg.HTTPAddr,
		Handler: api.New(
			a.trends,
			a.actions,
			a.sources,
			a.stats,
			a.pipeline,
			a.cfg.Location(),
		).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("failed to shutdown server: %v", err)
		}
	}()

	logger.Log.Infof("listening on %s", a.cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Log.Info("server stopped")
	return nil
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.pipeline.Run(ctx)
	if err != nil {
		return printRunError(cmd, err, summary.Crawl.DurationMs)
	}

	return printJSON(cmd, summary)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Analyze(ctx)
	if err != nil {
		return printRunError(cmd, err, result.DurationMs)
	}

	return printJSON(cmd, result)
}

// printRunError печатает тот же объект, что отдает API, и возвращает ошибку дальше
func printRunError(cmd *cobra.Command, err error, durationMs int64) error {
	if perr := printJSON(cmd, api.RunError{Error: err.Error(), DurationMs: durationMs}); perr != nil {
		return perr
	}
	return err
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	db, err := connect(ctx, config.Get())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = config.Get().SourcesFile
	}

	sources, err := config.LoadSources(path)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	db, err := connect(ctx, config.Get())
	if err != nil {
		return err
	}
	defer db.Close()

	sourceStorage := storage.NewSourcePostgresStorage(db)
	for _, source := range sources {
		id, err := sourceStorage.Add(ctx, source)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s): id %d\n", source.Icon, source.Name, source.Kind, id)
	}

	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
