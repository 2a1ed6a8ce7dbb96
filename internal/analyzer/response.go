package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

// MalformedResponseError модель вернула текст без разбираемого JSON объекта
type MalformedResponseError struct {
	Err     error
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v (%q)", e.Err, e.Snippet)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

var errNoJSONObject = errors.New("no JSON object found")

// Ответ модели. Каждый тренд храним как есть для аудита и разбираем отдельно
type analysis struct {
	Trends []json.RawMessage `json:"trends"`
}

type trendResult struct {
	Title          string         `json:"title"`
	Summary        string         `json:"summary"`
	Category       string         `json:"category"`
	Impact         string         `json:"impact"`
	RelevanceScore number         `json:"relevance_score"`
	Tags           []string       `json:"tags"`
	SourceItems    []number       `json:"source_items"`
	Actions        []actionResult `json:"actions"`
}

// number число из ответа модели. Модель иногда присылает его строкой ("85"),
// значение, которое не удалось прочитать как число, помечается как отсутствующее
type number struct {
	Value float64
	Valid bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*n = number{}
	switch x := v.(type) {
	case float64:
		n.Value, n.Valid = x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		n.Value, n.Valid = f, err == nil
	}
	return nil
}

type actionResult struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
}

// parseResponse берет первый JSON объект из текста модели.
// Вокруг объекта может быть комментарий или ``` блок.
// Если объект не разбирается, следующий ищем только после его конца: вложенный объект
// сломанного ответа не должен сойти за ответ
func parseResponse(text string) (analysis, error) {
	var (
		out     analysis
		lastErr error = errNoJSONObject
	)

	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchBrace(text, start)
		if end < 0 {
			break
		}

		out = analysis{}
		lastErr = json.Unmarshal([]byte(text[start:end+1]), &out)
		if lastErr == nil {
			return out, nil
		}

		next := strings.IndexByte(text[end+1:], '{')
		if next < 0 {
			break
		}
		start = end + 1 + next
	}

	return analysis{}, &MalformedResponseError{Err: lastErr, Snippet: truncateRunes(text, 200)}
}

// matchBrace находит закрывающую скобку для объекта, начатого в start.
// Скобки внутри строк не считаются. -1 если объект не закрыт
func matchBrace(text string, start int) int {
	var (
		depth    int
		inString bool
		escaped  bool
	)

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// Нормализация значений модели

func normalizeScore(score number) int {
	if !score.Valid || math.IsNaN(score.Value) {
		return 50
	}
	return int(math.Round(math.Max(0, math.Min(100, score.Value))))
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if lo.Contains(model.Categories, category) {
		return category
	}
	// Модель иногда пишет llm вместо LLM
	for _, c := range model.Categories {
		if strings.EqualFold(c, category) {
			return c
		}
	}
	return model.CategoryOther
}

func normalizeLevel(level string) string {
	switch level = strings.ToLower(strings.TrimSpace(level)); level {
	case model.ImpactHigh, model.ImpactMedium, model.ImpactLow:
		return level
	default:
		return model.ImpactMedium
	}
}

// resolveIndices переводит номера из source_items (с 1) в индексы пачки.
// Номера вне [1, size], дробные и нечисловые отбрасываются
func resolveIndices(sourceItems []number, size int) []int {
	return lo.FilterMap(sourceItems, func(n number, _ int) (int, bool) {
		if !n.Valid || n.Value != math.Trunc(n.Value) || n.Value < 1 || n.Value > float64(size) {
			return 0, false
		}
		return int(n.Value) - 1, true
	})
}
