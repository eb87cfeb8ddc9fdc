package factory

import (
	"fmt"
	"time"

	"bizinsight-be/pkg/llm"
	"bizinsight-be/pkg/llm/ollama"
	"bizinsight-be/pkg/llm/openai"
)

type ProviderConfig struct {
	Provider      string // "openai" or "ollama"
	Model         string // default model; callers may override per call
	APIKey        string
	BaseURL       string // OpenAI-compatible endpoint override
	OllamaBaseURL string
	Timeout       time.Duration
}

func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or LLM_BASE_URL")
		}
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
