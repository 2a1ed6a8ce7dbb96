package collector

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tomakado/containers/set"
	"golang.org/x/time/rate"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
	"github.com/kovalyov-valentin/trend-radar/internal/source"
)

// Интерфейс источника
type Source interface {
	ID() int64
	Name() string
	Fetch(ctx context.Context) ([]model.Item, error)
}

// Factory создает клиент источника из его записи в БД
type Factory func(m model.Source) (Source, error)

// Registry сопоставляет вид источника с его фабрикой.
// Новый вид источника - это новая запись в реестре, цикл сбора не меняется
type Registry map[string]Factory

// Виды, о которых мы знаем, но сборщиков для них пока нет
var plannedKinds = set.New(
	model.KindThreads,
	model.KindTwitter,
	model.KindYouTube,
	model.KindProductHunt,
)

// SkippedSourceError источник пропущен. Это не ошибка сбора
type SkippedSourceError struct {
	Kind   string
	Reason string
}

func (e *SkippedSourceError) Error() string {
	return e.Reason
}

// Resolve находит фабрику по виду источника
func (r Registry) Resolve(m model.Source) (Source, error) {
	if factory, ok := r[m.Kind]; ok {
		return factory(m)
	}

	if plannedKinds.Contains(m.Kind) {
		return nil, &SkippedSourceError{Kind: m.Kind, Reason: fmt.Sprintf("%s crawler not yet implemented", m.Kind)}
	}

	return nil, &SkippedSourceError{Kind: m.Kind, Reason: fmt.Sprintf("Unknown source type: %s", m.Kind)}
}

// DefaultRegistry реестр с rss и reddit источниками
func DefaultRegistry(client *http.Client, userAgent, redditBaseURL string, redditLimiter *rate.Limiter) Registry {
	return Registry{
		model.KindRSS: func(m model.Source) (Source, error) {
			return source.NewRSSSourceFromModel(m, client, userAgent)
		},
		model.KindReddit: func(m model.Source) (Source, error) {
			return source.NewRedditSourceFromModel(m, redditBaseURL, client, redditLimiter, userAgent)
		},
	}
}
