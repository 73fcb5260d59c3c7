package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a new LLM provider based on configuration, rate limited
// when RequestsPerSecond is set
func NewProvider(config Config) (Provider, error) {
	provider, err := newBaseProvider(config)
	if err != nil {
		return nil, err
	}
	if config.RequestsPerSecond > 0 {
		limiter := NewLimiter(config.RequestsPerSecond, config.Burst)
		return NewRateLimitedProvider(provider, limiter, config.Model), nil
	}
	return provider, nil
}

func newBaseProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}
