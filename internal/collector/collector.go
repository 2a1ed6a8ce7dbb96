package collector

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tomakado/containers/set"

	"github.com/kovalyov-valentin/trend-radar/internal/logger"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type SourceProvider interface {
	ActiveSources(ctx context.Context) ([]model.Source, error)
	MarkCrawled(ctx context.Context, id int64, newItems int, at time.Time) error
}

type ItemStorage interface {
	Store(ctx context.Context, sourceID int64, items []model.Item) (int, error)
}

type LogStorage interface {
	Add(ctx context.Context, log model.CrawlLog) error
}

// Extractor достает текст страницы по ссылке
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// Итог по одному источнику
type SourceResult struct {
	Source   string `json:"source"`
	Found    int    `json:"found"`
	NewItems int    `json:"new_items"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Итог запуска сборщика
type Result struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message,omitempty"`
	RunID         string         `json:"run_id,omitempty"`
	TotalNewItems int            `json:"total_new_items"`
	DurationMs    int64          `json:"duration_ms"`
	Results       []SourceResult `json:"results,omitempty"`
}

// Структура сборщика
type Collector struct {
	sources  SourceProvider
	items    ItemStorage
	logs     LogStorage
	registry Registry

	// Ключевые слова, по которым записи отбрасываются
	filterKeywords []string

	// Записи с телом короче enrichMinChars дополняются текстом страницы
	extractor      Extractor
	enrichMinChars int
}

func New(
	sourceProvider SourceProvider,
	itemStorage ItemStorage,
	logStorage LogStorage,
	registry Registry,
	filterKeywords []string,
) *Collector {
	return &Collector{
		sources:        sourceProvider,
		items:          itemStorage,
		logs:           logStorage,
		registry:       registry,
		filterKeywords: filterKeywords,
	}
}

// WithEnrichment включает дозагрузку текста для коротких записей
func (c *Collector) WithEnrichment(extractor Extractor, minChars int) *Collector {
	c.extractor = extractor
	c.enrichMinChars = minChars
	return c
}

// Run обходит все активные источники по очереди.
// Ошибка одного источника попадает в журнал и не прерывает обход остальных.
// Ошибкой заканчивается только чтение списка источников
func (c *Collector) Run(ctx context.Context) (Result, error) {
	started := time.Now()

	sources, err := c.sources.ActiveSources(ctx)
	if err != nil {
		return Result{DurationMs: time.Since(started).Milliseconds()}, err
	}

	if len(sources) == 0 {
		return Result{Message: "No active sources"}, nil
	}

	runID := uuid.NewString()
	log := logger.Log.WithField("run_id", runID)

	result := Result{RunID: runID, Results: make([]SourceResult, 0, len(sources))}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			result.DurationMs = time.Since(started).Milliseconds()
			return result, err
		}

		res := c.collectSource(ctx, runID, src, log.WithField("source", src.Name))
		result.TotalNewItems += res.NewItems
		result.Results = append(result.Results, res)
	}

	result.Success = true
	result.DurationMs = time.Since(started).Milliseconds()

	log.Infof("collected %d new items from %d sources", result.TotalNewItems, len(sources))

	return result, nil
}

func (c *Collector) collectSource(ctx context.Context, runID string, src model.Source, log *logrus.Entry) SourceResult {
	started := time.Now()

	var (
		items    []model.Item
		status   = model.CrawlSuccess
		errorMsg string
		newCount int
	)

	client, err := c.registry.Resolve(src)
	if err == nil {
		items, err = client.Fetch(ctx)
	}

	var skipped *SkippedSourceError
	switch {
	case errors.As(err, &skipped):
		status = model.CrawlSkipped
		errorMsg = skipped.Reason
		log.Infof("skipping: %s", errorMsg)
	case err != nil:
		status = model.CrawlError
		errorMsg = err.Error()
		log.Errorf("crawl: %v", err)
	}

	found := len(items)

	if prepared := c.prepareItems(ctx, items); len(prepared) > 0 {
		n, err := c.items.Store(ctx, src.ID, prepared)
		if err != nil {
			status = model.CrawlError
			errorMsg = err.Error()
			log.Errorf("store items: %v", err)
		} else {
			newCount = n
		}
	}

	entry := model.CrawlLog{
		RunID:      runID,
		SourceID:   src.ID,
		Status:     status,
		ItemsFound: found,
		ItemsNew:   newCount,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if errorMsg != "" {
		entry.ErrorMessage = &errorMsg
	}
	if err := c.logs.Add(ctx, entry); err != nil {
		log.Errorf("write crawl log: %v", err)
	}

	if status == model.CrawlSuccess {
		if err := c.sources.MarkCrawled(ctx, src.ID, newCount, time.Now().UTC()); err != nil {
			log.Errorf("mark crawled: %v", err)
		}
	}

	return SourceResult{
		Source:   src.Name,
		Found:    found,
		NewItems: newCount,
		Status:   status,
		Error:    errorMsg,
	}
}

// prepareItems убирает повторы внутри одной выборки (первый выигрывает),
// отбрасывает записи по ключевым словам и дополняет короткие записи
func (c *Collector) prepareItems(ctx context.Context, items []model.Item) []model.Item {
	seen := make(map[string]struct{}, len(items))
	prepared := make([]model.Item, 0, len(items))

	for _, item := range items {
		if _, ok := seen[item.ExternalID]; ok {
			continue
		}
		seen[item.ExternalID] = struct{}{}

		if c.itemShouldBeSkipped(item) {
			continue
		}

		prepared = append(prepared, c.enrich(ctx, item))
	}

	return prepared
}

// Пропускаем запись, если ключевое слово есть среди ее категорий или в заголовке
func (c *Collector) itemShouldBeSkipped(item model.Item) bool {
	if len(c.filterKeywords) == 0 {
		return false
	}

	categories := set.New(lowerAll(item.Categories)...)
	title := strings.ToLower(item.Title)

	for _, keyword := range c.filterKeywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if categories.Contains(keyword) || strings.Contains(title, keyword) {
			return true
		}
	}

	return false
}

func (c *Collector) enrich(ctx context.Context, item model.Item) model.Item {
	if c.extractor == nil || c.enrichMinChars <= 0 || item.URL == "" {
		return item
	}
	if utf8.RuneCountInString(item.Content) >= c.enrichMinChars {
		return item
	}

	text, err := c.extractor.Extract(ctx, item.URL)
	if err != nil {
		logger.Log.WithField("url", item.URL).Debugf("enrich: %v", err)
		return item
	}

	if utf8.RuneCountInString(text) > utf8.RuneCountInString(item.Content) {
		item.Content = text
	}
	return item
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
