package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/kovalyov-valentin/trend-radar/internal/feed"
	"github.com/kovalyov-valentin/trend-radar/internal/logger"
	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

const (
	defaultRedditMinScore = 50
	defaultRedditLimit    = 10
)

// Настройки reddit источника в crawl_sources.config
type RedditConfig struct {
	Subreddits []string `json:"subreddits"`
	// Посты с рейтингом ниже порога не сохраняем
	MinScore *int `json:"min_score"`
	Limit    int  `json:"limit"`
}

type RedditSource struct {
	SourceID   int64
	SourceName string
	Config     RedditConfig

	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func NewRedditSourceFromModel(m model.Source, baseURL string, client *http.Client, limiter *rate.Limiter, userAgent string) (*RedditSource, error) {
	var cfg RedditConfig
	if len(m.Config) > 0 {
		if err := json.Unmarshal(m.Config, &cfg); err != nil {
			return nil, fmt.Errorf("reddit config of %q: %w", m.Name, err)
		}
	}

	if cfg.MinScore == nil {
		cfg.MinScore = lo.ToPtr(defaultRedditMinScore)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultRedditLimit
	}

	return &RedditSource{
		SourceID:   m.ID,
		SourceName: m.Name,
		Config:     cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		limiter:    limiter,
		userAgent:  userAgent,
	}, nil
}

func (s *RedditSource) ID() int64 {
	return s.SourceID
}

func (s *RedditSource) Name() string {
	return s.SourceName
}

// Fetch опрашивает сабреддиты по очереди.
// Ошибка одного сабреддита не останавливает остальные
func (s *RedditSource) Fetch(ctx context.Context) ([]model.Item, error) {
	var items []model.Item

	for _, sub := range s.Config.Subreddits {
		posts, err := s.fetchSubreddit(ctx, sub)
		if err != nil {
			// Отмена контекста это не проблема сабреддита, дальше идти нет смысла
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Log.WithField("source", s.SourceName).Errorf("reddit r/%s: %v", sub, err)
			continue
		}

		popular := lo.Filter(posts, func(p redditPost, _ int) bool {
			return p.Score >= *s.Config.MinScore
		})

		items = append(items, lo.Map(popular, func(p redditPost, _ int) model.Item {
			return p.toItem(sub)
		})...)
	}

	return items, nil
}

func (s *RedditSource) fetchSubreddit(ctx context.Context, sub string) ([]redditPost, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", s.baseURL, url.PathEscape(sub), s.Config.Limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	var listing redditListing
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("reddit decode: %w", err)
	}

	return lo.Map(listing.Data.Children, func(c redditChild, _ int) redditPost {
		return c.Data
	}), nil
}

type redditListing struct {
	Data struct {
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Data redditPost `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Flair       string  `json:"link_flair_text"`
}

func (p redditPost) toItem(sub string) model.Item {
	var published *time.Time
	if p.CreatedUTC > 0 {
		published = lo.ToPtr(time.Unix(int64(p.CreatedUTC), 0).UTC())
	}

	link := p.URL
	if link == "" {
		link = "https://reddit.com" + p.Permalink
	}

	content := p.Selftext
	if content == "" {
		content = p.Title
	}

	return model.Item{
		ExternalID:  lo.Ternary(p.ID != "", p.ID, p.Name),
		Title:       feed.CleanText(p.Title),
		Content:     feed.CleanText(content),
		URL:         link,
		Author:      p.Author,
		PublishedAt: published,
		Categories:  lo.Compact([]string{sub, p.Flair}),
		Raw: map[string]any{
			"subreddit":    sub,
			"score":        p.Score,
			"num_comments": p.NumComments,
			"permalink":    p.Permalink,
		},
	}
}
