package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/trend-radar/internal/analyzer"
	"github.com/kovalyov-valentin/trend-radar/internal/botkit"
	"github.com/kovalyov-valentin/trend-radar/internal/collector"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
	"github.com/kovalyov-valentin/trend-radar/internal/pipeline"
)

func TestFormatSource(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	source := model.SourceWithLog{
		Source: model.Source{
			ID:             3,
			Name:           "Hacker News",
			Icon:           "🟧",
			Kind:           model.KindRSS,
			IsActive:       true,
			TotalCollected: 12,
			LastCrawlAt:    &at,
		},
		RecentLog: &model.CrawlLog{
			Status:       model.CrawlError,
			ItemsFound:   0,
			ErrorMessage: lo.ToPtr("HTTP 502"),
		},
	}

	assert.Equal(t,
		"🟧 *Hacker News* \\(rss, active\\)\nID: `3`, collected: 12\nlast run: error, found 0, new 0, HTTP 502",
		formatSource(source),
	)
}

func TestFormatSourceWithoutLog(t *testing.T) {
	text := formatSource(model.SourceWithLog{Source: model.Source{ID: 1, Name: "r/LocalLLaMA", Kind: model.KindReddit}})

	assert.Contains(t, text, "*r/LocalLLaMA* \\(reddit, paused\\)")
	assert.NotContains(t, text, "last run")
}

func TestFormatStats(t *testing.T) {
	text := formatStats(model.WeeklyStats{
		WeekStart:        "2026-10-12",
		TotalTrends:      7,
		TotalActions:     10,
		CompletedActions: 4,
		HighImpactCount:  2,
		ApplyRate:        40,
	})

	assert.Equal(t, "Week of 2026-10-12\nTrends: 7 (high impact: 2)\nActions: 10, done: 4\nApply rate: 40%", text)
}

func TestFormatSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary pipeline.Summary
		err     error
		want    string
	}{
		{
			name: "busy",
			err:  pipeline.ErrAlreadyRunning,
			want: "Another run is in progress, try later",
		},
		{
			name: "failed",
			err:  errors.New("db down"),
			want: "Crawl failed: db down",
		},
		{
			name:    "no sources",
			summary: pipeline.Summary{Crawl: collector.Result{Message: "No active sources"}},
			want:    "No active sources",
		},
		{
			name: "crawl and analysis",
			summary: pipeline.Summary{
				Crawl: collector.Result{
					Success:       true,
					TotalNewItems: 5,
					DurationMs:    120,
					Results:       make([]collector.SourceResult, 2),
				},
				Analyze: &analyzer.Result{ItemsAnalyzed: 5, TrendsCreated: 2, HighImpactCount: 1, ActionsCreated: 3},
			},
			want: "Crawl done in 120 ms: 5 new items from 2 sources\nAnalysis: 5 items, 2 trends (1 high impact), 3 actions",
		},
		{
			name: "analysis error",
			summary: pipeline.Summary{
				Crawl:        collector.Result{Success: true, TotalNewItems: 1, Results: make([]collector.SourceResult, 1)},
				Analyze:      &analyzer.Result{},
				AnalyzeError: "generate: timeout",
			},
			want: "Crawl done in 0 ms: 1 new items from 1 sources\nAnalysis failed: generate: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSummary(tt.summary, tt.err))
		})
	}
}

func TestAddSourceArgs(t *testing.T) {
	args, err := botkit.ParseJSON[addSourceArgs](`{"name":"HN","icon":"🟧","source_type":"rss","config":{"feed_url":"https://hnrss.org/frontpage"}}`)
	require.NoError(t, err)
	require.NoError(t, args.validate())

	source := args.toModel()
	assert.Equal(t, "HN", source.Name)
	assert.Equal(t, model.KindRSS, source.Kind)
	assert.True(t, source.IsActive)
	assert.JSONEq(t, `{"feed_url":"https://hnrss.org/frontpage"}`, string(source.Config))

	args, err = botkit.ParseJSON[addSourceArgs](`{"name":"HN","source_type":"rss","is_active":false}`)
	require.NoError(t, err)
	assert.False(t, args.toModel().IsActive)

	args, err = botkit.ParseJSON[addSourceArgs](`{"source_type":"rss"}`)
	require.NoError(t, err)
	assert.EqualError(t, args.validate(), "name is required")

	args, err = botkit.ParseJSON[addSourceArgs](`{"name":"HN"}`)
	require.NoError(t, err)
	assert.EqualError(t, args.validate(), "source_type is required")
}
