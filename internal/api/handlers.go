package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tomakado/containers/set"

	"github.com/kovalyov-valentin/trend-radar/internal/logger"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
	"github.com/kovalyov-valentin/trend-radar/internal/pipeline"
	"github.com/kovalyov-valentin/trend-radar/internal/storage"
)

var actionStatuses = set.New(model.StatusPending, model.StatusInProgress, model.StatusDone)

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	trends, err := s.trends.Trends(r.Context(), model.TrendFilter{
		Category: q.Get("category"),
		Impact:   q.Get("impact"),
		Limit:    queryLimit(q.Get("limit")),
	})
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(trends))
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

// handleArchiveTrend без тела архивирует тренд, {"archived": false} возвращает его обратно
func (s *Server) handleArchiveTrend(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req archiveRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	archived := req.Archived == nil || *req.Archived
	if err := s.trends.SetArchived(r.Context(), id, archived); err != nil {
		s.storageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_archived": archived})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.actions.Actions(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(actions))
}

type updateActionRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req updateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	upd := model.ActionUpdate{Notes: req.Notes}
	if req.Status != "" {
		if !actionStatuses.Contains(req.Status) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid status: %s", req.Status))
			return
		}
		upd.Status = &req.Status
	}

	action, err := s.actions.Update(r.Context(), id, upd, s.now())
	if err != nil {
		s.storageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.SourcesWithLogs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(sources))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Weekly(r.Context(), model.WeekStart(s.now(), s.loc))
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Запуск идет синхронно, клиент получает итог сбора и анализа
func (s *Server) handleCrawlTrigger(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.Run(r.Context())
	if err != nil {
		s.runError(w, err, summary.Crawl.DurationMs)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAnalyzeTrigger(w http.ResponseWriter, r *http.Request) {
	result, err := s.runner.Analyze(r.Context())
	if err != nil {
		s.runError(w, err, result.DurationMs)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RunError итог упавшего запуска: ошибка и сколько он успел проработать
type RunError struct {
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (s *Server) runError(w http.ResponseWriter, err error, durationMs int64) {
	code := http.StatusInternalServerError
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		code = http.StatusConflict
	} else {
		logger.Log.Errorf("api error: %v", err)
	}

	writeJSON(w, code, RunError{Error: err.Error(), DurationMs: durationMs})
}

func (s *Server) storageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.internalError(w, err)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	logger.Log.Errorf("api error: %v", err)
	writeError(w, http.StatusInternalServerError, err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryLimit(s string) int {
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return defaultTrendsLimit
	}
	return limit
}

// decodeOptional разбирает тело, если оно есть
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

// Пустой список отдаем как [], а не null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
