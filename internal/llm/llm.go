// Package llm отправляет промпт в модель и возвращает ее текстовый ответ.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Generator одна генерация: системная инструкция + пользовательский промпт
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

var ErrEmptyResponse = errors.New("llm: empty response")

type Options struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// New выбирает реализацию по имени провайдера
func New(opts Options) (Generator, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: api key for %s is not set", opts.Provider)
	}

	switch opts.Provider {
	case ProviderAnthropic, "":
		return NewAnthropic(opts.APIKey, opts.Model, opts.BaseURL, opts.MaxTokens), nil
	case ProviderOpenAI:
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL, opts.MaxTokens), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}
