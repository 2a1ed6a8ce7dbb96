// Package api отдает тренды, действия, источники и статистику фронтенду по HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kovalyov-valentin/trend-radar/internal/analyzer"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
	"github.com/kovalyov-valentin/trend-radar/internal/pipeline"
)

// Лимит списка трендов, если клиент его не передал
const defaultTrendsLimit = 50

type TrendStorage interface {
	Trends(ctx context.Context, filter model.TrendFilter) ([]model.Trend, error)
	SetArchived(ctx context.Context, id int64, archived bool) error
}

type ActionStorage interface {
	Actions(ctx context.Context, status string) ([]model.Action, error)
	Update(ctx context.Context, id int64, upd model.ActionUpdate, now time.Time) (*model.Action, error)
}

type SourceStorage interface {
	SourcesWithLogs(ctx context.Context) ([]model.SourceWithLog, error)
}

type StatsStorage interface {
	Weekly(ctx context.Context, weekStart time.Time) (model.WeeklyStats, error)
}

// Runner ручной запуск сбора и анализа
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
	Analyze(ctx context.Context) (analyzer.Result, error)
}

type Server struct {
	trends  TrendStorage
	actions ActionStorage
	sources SourceStorage
	stats   StatsStorage
	runner  Runner

	// Пояс, в котором считается начало недели
	loc *time.Location
	now func() time.Time
}

func New(
	trends TrendStorage,
	actions ActionStorage,
	sources SourceStorage,
	stats StatsStorage,
	runner Runner,
	loc *time.Location,
) *Server {
	if loc == nil {
		loc = time.UTC
	}

	return &Server{
		trends:  trends,
		actions: actions,
		sources: sources,
		stats:   stats,
		runner:  runner,
		loc:     loc,
		now:     time.Now,
	}
}

// Router собирает все маршруты
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler())
	r.Use(preflightOK)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/trends", s.handleTrends)
		r.Patch("/trends/{id}/archive", s.handleArchiveTrend)

		r.Get("/actions", s.handleActions)
		r.Patch("/actions/{id}", s.handleUpdateAction)

		r.Get("/sources", s.handleSources)
		r.Get("/stats", s.handleStats)

		r.Post("/crawl/trigger", s.handleCrawlTrigger)
		r.Post("/analyze/trigger", s.handleAnalyzeTrigger)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found", "path": r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found", "path": r.URL.Path})
	})

	return r
}
