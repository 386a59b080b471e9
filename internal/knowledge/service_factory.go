package knowledge

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "gpt-4o-mini"
)

type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

func NewService(ctx context.Context, opts Options) (Service, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "gemini"
	}

	switch provider {
	case "gemini":
		model := opts.Model
		if model == "" {
			model = defaultGeminiModel
		}
		return NewGeminiService(ctx, opts.APIKey, model)
	case "openai":
		model := opts.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIService(opts.APIKey, model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", opts.Provider)
	}
}
