package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kovalyov-valentin/trend-radar/internal/feed"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

// Сколько самых свежих записей берем из одной ленты за запуск
const MaxFeedItems = 20

// Настройки RSS источника в crawl_sources.config
type RSSConfig struct {
	FeedURL string `json:"feed_url"`
}

// RSS клиент
type RSSSource struct {
	SourceID   int64
	SourceName string
	FeedURL    string

	client    *http.Client
	parser    feed.FeedParser
	userAgent string
}

// Конструктор, который из модели источника создает клиент для RSS ленты
func NewRSSSourceFromModel(m model.Source, client *http.Client, userAgent string) (*RSSSource, error) {
	var cfg RSSConfig
	if len(m.Config) > 0 {
		if err := json.Unmarshal(m.Config, &cfg); err != nil {
			return nil, fmt.Errorf("rss config of %q: %w", m.Name, err)
		}
	}

	return &RSSSource{
		SourceID:   m.ID,
		SourceName: m.Name,
		FeedURL:    cfg.FeedURL,
		client:     client,
		parser:     feed.Default(),
		userAgent:  userAgent,
	}, nil
}

func (s *RSSSource) ID() int64 {
	return s.SourceID
}

func (s *RSSSource) Name() string {
	return s.SourceName
}

// Fetch скачивает ленту и приводит записи к общему виду
func (s *RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	// Источник без адреса ленты просто ничего не приносит
	if s.FeedURL == "" {
		return nil, nil
	}

	data, err := s.loadFeed(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.parser.Parse(data)
	if err != nil {
		return nil, err
	}

	if len(entries) > MaxFeedItems {
		entries = entries[:MaxFeedItems]
	}

	items := make([]model.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, model.Item{
			ExternalID:  e.ExternalID(),
			Title:       feed.CleanText(e.Title),
			Content:     feed.CleanText(e.Description),
			URL:         e.Link,
			Author:      e.Author,
			PublishedAt: feed.ParseTime(e.Published),
			Categories:  e.Categories,
			Raw:         e.Raw,
		})
	}

	return items, nil
}

func (s *RSSSource) loadFeed(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.FeedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: s.FeedURL, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: s.FeedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: s.FeedURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: s.FeedURL, Err: err}
	}

	return data, nil
}
