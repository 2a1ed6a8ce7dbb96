// Package extract дотягивает текст статьи по ссылке, когда лента отдала только заголовок.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

type Readability struct {
	client    *http.Client
	userAgent string
}

func NewReadability(client *http.Client, userAgent string) *Readability {
	return &Readability{client: client, userAgent: userAgent}
}

// Extract скачивает страницу и возвращает основной текст без разметки
func (r *Readability) Extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("extract %s: status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, 5<<20), parsed)
	if err != nil {
		return "", err
	}

	return cleanText(article.TextContent), nil
}

// readability оставляет много пустых строк, схлопываем их
var redundantNewLines = regexp.MustCompile(`\n{3,}`)

func cleanText(text string) string {
	return strings.TrimSpace(redundantNewLines.ReplaceAllString(text, "\n"))
}
