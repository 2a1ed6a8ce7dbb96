package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

func rssWithItems(n int) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `<item><guid>g-%d</guid><title>Title &amp;lt;%d&amp;gt;</title><link>https://e.com/%d</link><description>&lt;p&gt;body %d&lt;/p&gt;</description></item>`, i, i, i, i)
	}
	sb.WriteString(`</channel></rss>`)
	return sb.String()
}

func newRSS(t *testing.T, feedURL string) *RSSSource {
	t.Helper()
	src, err := NewRSSSourceFromModel(model.Source{
		ID:     7,
		Name:   "Hacker Feed",
		Kind:   model.KindRSS,
		Config: []byte(fmt.Sprintf(`{"feed_url":%q}`, feedURL)),
	}, http.DefaultClient, "test-agent")
	require.NoError(t, err)
	return src
}

func TestRSSSourceFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssWithItems(2))
	}))
	defer srv.Close()

	items, err := newRSS(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "g-1", items[0].ExternalID)
	assert.Equal(t, "Title <1>", items[0].Title)
	assert.Equal(t, "body 1", items[0].Content)
	assert.Equal(t, "https://e.com/1", items[0].URL)
	assert.Nil(t, items[0].PublishedAt)
	assert.Equal(t, "https://e.com/1", items[0].Raw["link"])
}

func TestRSSSourceCapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(30))
	}))
	defer srv.Close()

	items, err := newRSS(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, MaxFeedItems)
	assert.Equal(t, "g-1", items[0].ExternalID)
	assert.Equal(t, "g-20", items[MaxFeedItems-1].ExternalID)
}

func TestRSSSourceNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newRSS(t, srv.URL).Fetch(context.Background())
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
}

func TestRSSSourceWithoutFeedURL(t *testing.T) {
	src, err := NewRSSSourceFromModel(model.Source{ID: 1, Name: "empty"}, http.DefaultClient, "ua")
	require.NoError(t, err)

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRSSSourceBadConfig(t *testing.T) {
	_, err := NewRSSSourceFromModel(model.Source{Name: "broken", Config: []byte(`{`)}, http.DefaultClient, "ua")
	require.Error(t, err)
}

const redditPayload = `{"data":{"children":[
  {"data":{"id":"p1","title":"Big launch","selftext":"details","url":"https://ex.com/launch","permalink":"/r/ai/p1","author":"u1","score":120,"num_comments":4,"created_utc":1792400000}},
  {"data":{"id":"p2","title":"Low score","selftext":"","url":"","permalink":"/r/ai/p2","author":"u2","score":10}},
  {"data":{"id":"p3","title":"Self post","selftext":"","url":"","permalink":"/r/ai/p3","author":"u3","score":50}}
]}}`

func TestRedditSourceFetch(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/r/broken/") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		fmt.Fprint(w, redditPayload)
	}))
	defer srv.Close()

	src, err := NewRedditSourceFromModel(model.Source{
		ID:     3,
		Name:   "Reddit AI",
		Kind:   model.KindReddit,
		Config: []byte(`{"subreddits":["broken","ai"]}`),
	}, srv.URL, srv.Client(), nil, "ua")
	require.NoError(t, err)

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)

	// broken упал, ai отдал два поста из трех (порог 50)
	assert.Equal(t, []string{"/r/broken/hot.json", "/r/ai/hot.json"}, paths)
	require.Len(t, items, 2)

	assert.Equal(t, "p1", items[0].ExternalID)
	assert.Equal(t, "details", items[0].Content)
	assert.Equal(t, "https://ex.com/launch", items[0].URL)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, int64(1792400000), items[0].PublishedAt.Unix())
	assert.Equal(t, "ai", items[0].Raw["subreddit"])

	// Пост без текста и ссылки
	assert.Equal(t, "p3", items[1].ExternalID)
	assert.Equal(t, "Self post", items[1].Content)
	assert.Equal(t, "https://reddit.com/r/ai/p3", items[1].URL)
	assert.Nil(t, items[1].PublishedAt)
}

func TestRedditSourceCustomThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, redditPayload)
	}))
	defer srv.Close()

	src, err := NewRedditSourceFromModel(model.Source{
		Name:   "Reddit AI",
		Config: []byte(`{"subreddits":["ai"],"min_score":0,"limit":25}`),
	}, srv.URL, srv.Client(), nil, "ua")
	require.NoError(t, err)
	assert.Equal(t, 25, src.Config.Limit)

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 3)
}
