// Package analyzer превращает пачку собранных записей в тренды и действия одним запросом к модели.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/kovalyov-valentin/trend-radar/internal/llm"
	"github.com/kovalyov-valentin/trend-radar/internal/logger"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

// Больше записей за один запуск в модель не отправляем
const BatchSize = 50

// Сколько символов резюме попадает в оповещение
const alertSummaryRunes = 80

// ItemQueue очередь необработанных записей.
// Пачка захватывается атомарно, поэтому два запуска не получат одни и те же записи
type ItemQueue interface {
	ClaimBatch(ctx context.Context, claimID string, limit int, ttl time.Duration) ([]model.RawItem, error)
	MarkProcessed(ctx context.Context, ids []int64) error
	ReleaseClaim(ctx context.Context, ids []int64) error
}

type TrendStorage interface {
	Create(ctx context.Context, trend model.Trend) (int64, error)
}

type ActionStorage interface {
	Create(ctx context.Context, action model.Action) (int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, destination, message string) error
}

// Итог запуска анализатора
type Result struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	ItemsAnalyzed   int    `json:"items_analyzed"`
	TrendsCreated   int    `json:"trends_created"`
	ActionsCreated  int    `json:"actions_created"`
	HighImpactCount int    `json:"high_impact_count"`
	DurationMs      int64  `json:"duration_ms"`
}

type Analyzer struct {
	items     ItemQueue
	trends    TrendStorage
	actions   ActionStorage
	generator llm.Generator

	notifier Notifier
	// Куда слать оповещения: телефон или id чата
	destination string

	claimTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

func New(
	items ItemQueue,
	trends TrendStorage,
	actions ActionStorage,
	generator llm.Generator,
	notifier Notifier,
	destination string,
	claimTTL time.Duration,
	loc *time.Location,
) *Analyzer {
	if loc == nil {
		loc = time.UTC
	}

	return &Analyzer{
		items:       items,
		trends:      trends,
		actions:     actions,
		generator:   generator,
		notifier:    notifier,
		destination: destination,
		claimTTL:    claimTTL,
		loc:         loc,
		now:         time.Now,
	}
}

// Run захватывает пачку, отправляет ее в модель и сохраняет результат.
// Ошибка генерации или неразбираемый ответ прерывают запуск, захват снимается и записи
// остаются необработанными. Ошибка сохранения отдельного тренда или действия только логируется
func (a *Analyzer) Run(ctx context.Context) (Result, error) {
	started := a.now()
	elapsed := func() int64 { return a.now().Sub(started).Milliseconds() }

	claimID := uuid.NewString()
	log := logger.Log.WithField("claim_id", claimID)

	items, err := a.items.ClaimBatch(ctx, claimID, BatchSize, a.claimTTL)
	if err != nil {
		return Result{DurationMs: elapsed()}, fmt.Errorf("claim batch: %w", err)
	}

	if len(items) == 0 {
		return Result{Message: "No unprocessed items", DurationMs: elapsed()}, nil
	}

	ids := lo.Map(items, func(item model.RawItem, _ int) int64 { return item.ID })
	log = log.WithField("items", len(items))
	log.Info("analyzing batch")

	text, err := a.generator.Generate(ctx, BusinessContext, BuildPrompt(items))
	if err != nil {
		a.release(ctx, ids, log)
		return Result{DurationMs: elapsed()}, fmt.Errorf("generate: %w", err)
	}

	parsed, err := parseResponse(text)
	if err != nil {
		a.release(ctx, ids, log)
		return Result{DurationMs: elapsed()}, err
	}

	log.Infof("model extracted %d trends", len(parsed.Trends))

	result := Result{ItemsAnalyzed: len(items)}
	for _, raw := range parsed.Trends {
		a.persistTrend(ctx, raw, items, &result, log)
	}

	// Вся пачка считается обработанной, даже записи, не попавшие ни в один тренд
	if err := a.items.MarkProcessed(ctx, ids); err != nil {
		result.DurationMs = elapsed()
		return result, fmt.Errorf("mark processed: %w", err)
	}

	result.Success = true
	result.DurationMs = elapsed()

	return result, nil
}

func (a *Analyzer) persistTrend(
	ctx context.Context,
	raw json.RawMessage,
	items []model.RawItem,
	result *Result,
	log *logrus.Entry,
) {
	var tr trendResult
	if err := json.Unmarshal(raw, &tr); err != nil {
		log.Errorf("decode trend: %v", err)
		return
	}

	trend := a.buildTrend(tr, raw, items)
	log = log.WithField("trend", trend.Title)

	trendID, err := a.trends.Create(ctx, trend)
	if err != nil {
		log.Errorf("insert trend: %v", err)
		return
	}
	result.TrendsCreated++

	for _, act := range tr.Actions {
		if strings.TrimSpace(act.Text) == "" {
			continue
		}

		if _, err := a.actions.Create(ctx, model.Action{
			TrendID:  trendID,
			Text:     strings.TrimSpace(act.Text),
			Priority: normalizeLevel(act.Priority),
			Status:   model.StatusPending,
		}); err != nil {
			log.Errorf("insert action: %v", err)
			continue
		}
		result.ActionsCreated++
	}

	if trend.Impact == model.ImpactHigh {
		result.HighImpactCount++
		a.alert(ctx, trend, log)
	}
}

func (a *Analyzer) buildTrend(tr trendResult, raw json.RawMessage, items []model.RawItem) model.Trend {
	indices := resolveIndices(tr.SourceItems, len(items))

	// Источник берем у первой сопоставленной записи, иначе у первой записи пачки
	first := items[0]
	if len(indices) > 0 {
		first = items[indices[0]]
	}

	now := a.now().In(a.loc)

	return model.Trend{
		Title:          strings.TrimSpace(tr.Title),
		Summary:        strings.TrimSpace(tr.Summary),
		Category:       normalizeCategory(tr.Category),
		Impact:         normalizeLevel(tr.Impact),
		RelevanceScore: normalizeScore(tr.RelevanceScore),
		SourceName:     optional(first.SourceName),
		SourceIcon:     optional(first.SourceIcon),
		SourceURL:      optional(first.URL),
		SourceID:       lo.ToPtr(first.SourceID),
		Tags:           lo.Ternary(tr.Tags == nil, []string{}, tr.Tags),
		RawItemIDs:     lo.Map(indices, func(i int, _ int) int64 { return items[i].ID }),
		AIAnalysis:     raw,
		PublishedDate:  time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc),
	}
}

// Оповещение не должно ронять запуск
func (a *Analyzer) alert(ctx context.Context, trend model.Trend, log *logrus.Entry) {
	if a.notifier == nil {
		return
	}

	message := fmt.Sprintf("[AI트렌드 🔥HIGH]\n%s\n%s...", trend.Title, truncateRunes(trend.Summary, alertSummaryRunes))
	if err := a.notifier.Notify(ctx, a.destination, message); err != nil {
		log.Errorf("notify: %v", err)
		return
	}

	log.Info("high impact alert sent")
}

// Снимаем захват даже если контекст запуска уже отменен
func (a *Analyzer) release(ctx context.Context, ids []int64, log *logrus.Entry) {
	if err := a.items.ReleaseClaim(context.WithoutCancel(ctx), ids); err != nil {
		log.Errorf("release claim: %v", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
