// Package pipeline связывает сбор и анализ: анализ запускается в том же процессе,
// если сбор принес новые записи.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kovalyov-valentin/trend-radar/internal/analyzer"
	"github.com/kovalyov-valentin/trend-radar/internal/collector"
	"github.com/kovalyov-valentin/trend-radar/internal/logger"
)

var ErrAlreadyRunning = errors.New("pipeline: run already in progress")

type Collector interface {
	Run(ctx context.Context) (collector.Result, error)
}

type Analyzer interface {
	Run(ctx context.Context) (analyzer.Result, error)
}

// Summary итог одного запуска. Ошибка анализа не теряется, а попадает в итог
type Summary struct {
	Crawl        collector.Result `json:"crawl"`
	Analyze      *analyzer.Result `json:"analyze,omitempty"`
	AnalyzeError string           `json:"analyze_error,omitempty"`
}

type Pipeline struct {
	collector Collector
	analyzer  Analyzer

	// Как часто serve запускает сбор сам
	interval time.Duration

	// Ручной запуск и запуск по таймеру не должны идти одновременно
	mu sync.Mutex
}

func New(collector Collector, analyzer Analyzer, interval time.Duration) *Pipeline {
	return &Pipeline{
		collector: collector,
		analyzer:  analyzer,
		interval:  interval,
	}
}

// Run собирает записи и, если появились новые, сразу их анализирует
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if !p.mu.TryLock() {
		return Summary{}, ErrAlreadyRunning
	}
	defer p.mu.Unlock()

	crawl, err := p.collector.Run(ctx)
	if err != nil {
		return Summary{Crawl: crawl}, err
	}

	summary := Summary{Crawl: crawl}
	if crawl.TotalNewItems == 0 {
		return summary, nil
	}

	logger.Log.Infof("triggering analysis for %d new items", crawl.TotalNewItems)

	result, err := p.analyzer.Run(ctx)
	summary.Analyze = &result
	if err != nil {
		logger.Log.Errorf("analysis after crawl failed: %v", err)
		summary.AnalyzeError = err.Error()
	}

	return summary, nil
}

// Analyze запускает только анализ накопленных записей
func (p *Pipeline) Analyze(ctx context.Context) (analyzer.Result, error) {
	if !p.mu.TryLock() {
		return analyzer.Result{}, ErrAlreadyRunning
	}
	defer p.mu.Unlock()

	return p.analyzer.Run(ctx)
}

// Start запускает конвейер сразу и дальше каждые interval, пока не отменят ctx.
// Ошибки запуска логируются, следующий тик пробует снова
func (p *Pipeline) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runLogged(ctx)
		}
	}
}

func (p *Pipeline) runLogged(ctx context.Context) {
	summary, err := p.Run(ctx)
	if err != nil {
		logger.Log.Errorf("pipeline run: %v", err)
		return
	}

	logger.Log.WithField("run_id", summary.Crawl.RunID).
		Infof("pipeline run finished: %d new items", summary.Crawl.TotalNewItems)
}
