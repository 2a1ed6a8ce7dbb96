package feed

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()

	// bluemonday экранирует текст заново, поэтому раскрываем обратно небольшой набор сущностей
	entities = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#34;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
		"\u00a0", " ",
	)
)

// CleanText убирает разметку и раскрывает html сущности
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(entities.Replace(strict.Sanitize(s)))
}

// ParseTime разбирает дату публикации в любом из распространенных форматов.
// Пустая или нераспознанная дата дает nil
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}

	t = t.UTC()
	return &t
}
