// Package llm implements a generative model that asks a chat LLM for synthetic
// attribute rows.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doppelganger-go/doppelganger/internal/synth"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the raw completion text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains the input for one completion
type CompletionRequest struct {
	System string
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// JSON asks the provider for a JSON-only response where supported
	JSON bool
}

// CompletionResponse contains the provider's output
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama"
	Provider string `yaml:"provider"`

	// Model name (provider-specific)
	Model string `yaml:"model"`

	// APIKey for OpenAI
	APIKey string `yaml:"-"`

	// BaseURL for custom endpoints (e.g., Ollama or an OpenAI-compatible server)
	BaseURL string `yaml:"base_url,omitempty"`

	// Proxy URL for outbound requests; empty uses HTTP_PROXY/HTTPS_PROXY
	Proxy string `yaml:"proxy,omitempty"`

	// Timeout for API requests
	Timeout int `yaml:"timeout_seconds"`

	// MaxTokens for response generation
	MaxTokens int `yaml:"max_tokens"`

	// Temperature for sampling; synthetic rows want some spread
	Temperature float32 `yaml:"temperature"`

	// RequestsPerSecond caps completion calls; zero disables limiting
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Timeout:     60,
		MaxTokens:   2000,
		Temperature: 0.7,

		RequestsPerSecond: 2,
		Burst:             1,
	}
}

const systemPrompt = "You generate synthetic census microdata rows. Reply with a single JSON object and nothing else."

// BuildPrompt constructs the generation prompt for one (segment, evidence, count) request
func BuildPrompt(fields []string, segment synth.Segment, evidence synth.Evidence, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate %d plausible synthetic records for one household member class.\n\n", count)
	fmt.Fprintf(&b, "Segment: %s\n", segment)

	b.WriteString("Known attributes (copy these values exactly):\n")
	if len(evidence) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, item := range evidence {
		fmt.Fprintf(&b, "- %s = %s\n", item.Field, item.Value)
	}

	columns, _ := json.Marshal(fields)
	fmt.Fprintf(&b, "\nColumns, in order: %s\n", columns)
	fmt.Fprintf(&b, "\nReturn exactly %d rows as {\"rows\": [[...], ...]}. ", count)
	fmt.Fprintf(&b, "Every row must have exactly %d values in the column order above.", len(fields))

	return b.String()
}
