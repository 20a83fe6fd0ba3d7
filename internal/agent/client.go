package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned at call time when the provider key is not set.
var ErrMissingAPIKey = errors.New("llm api key is not configured")

const (
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"

	defaultGeminiModel   = "gemini-2.5-flash"
	defaultDeepSeekModel = "deepseek-chat"
	defaultOpenAIModel   = "gpt-4o-mini"
	deepSeekBaseURL      = "https://api.deepseek.com/v1"

	defaultRequestTimeout = 60 * time.Second
)

// LLMClient generates text for a single prompt.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewLLMClient picks the provider implementation. A missing key is not an error
// here; every Generate call fails with ErrMissingAPIKey instead.
func NewLLMClient(ctx context.Context, cfg LLMConfig) (LLMClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = defaultGeminiModel
		}
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, httpClient)
	case ProviderDeepSeek:
		if cfg.Model == "" {
			cfg.Model = defaultDeepSeekModel
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = deepSeekBaseURL
		}
		return NewChatCompletionClient(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient), nil
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		return NewChatCompletionClient(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
