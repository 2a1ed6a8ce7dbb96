package feed

import (
	"time"

	"github.com/SlyMarbo/rss"
)

// RSSLib разбирает документ библиотекой SlyMarbo/rss.
// Она терпимее к битым лентам, но не знает об авторах и смешанных документах
type RSSLib struct{}

func (RSSLib) Parse(data []byte) ([]Entry, error) {
	parsed, err := rss.Parse(data)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		var published string
		if !item.Date.IsZero() {
			published = item.Date.UTC().Format(time.RFC3339)
		}

		description := firstNonEmpty(item.Summary, item.Content)

		entries = append(entries, Entry{
			GUID:        firstNonEmpty(item.ID, item.Link),
			Title:       item.Title,
			Link:        item.Link,
			Description: description,
			Published:   published,
			Categories:  trimAll(item.Categories),
			Raw: map[string]any{
				"title":       item.Title,
				"link":        item.Link,
				"description": description,
				"pubDate":     published,
				"categories":  item.Categories,
			},
		})
	}

	return entries, nil
}
