package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewFromEnv builds the provider client selected by FILINGLENS_LLM_PROVIDER
// ("openai" or "ollama"). Unset defaults to openai.
func NewFromEnv() (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("FILINGLENS_LLM_PROVIDER")))
	if provider == "" {
		provider = "openai"
	}
	switch provider {
	case "openai":
		return NewOpenAIClient()
	case "ollama":
		return NewOllamaClient()
	default:
		slog.Error("Unknown LLM provider", "provider", provider)
		return nil, fmt.Errorf("unknown LLM provider %q (expected openai or ollama)", provider)
	}
}
