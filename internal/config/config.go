// Package config holds the doppelganger run configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/doppelganger-go/doppelganger/internal/llm"
	"github.com/doppelganger-go/doppelganger/internal/synth"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LLMModelPrefix selects a named LLM model instead of a TOML file on the
// command line, e.g. "llm:persons".
const LLMModelPrefix = "llm:"

// Config is the complete configuration
type Config struct {
	LLM       llm.Config                `yaml:"llm"`
	LLMModels map[string]LLMModelConfig `yaml:"llm_models"`
	Cache     CacheConfig               `yaml:"cache"`
	Progress  ProgressConfig            `yaml:"progress"`
	Output    OutputConfig              `yaml:"output"`
}

// LLMModelConfig describes the columns an LLM-backed model produces
type LLMModelConfig struct {
	Fields       []string `yaml:"fields"`
	SegmentField string   `yaml:"segment_field,omitempty"`
}

// CacheConfig controls memoization of allocator lookups
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// TTLSeconds of zero keeps entries for the whole run
	TTLSeconds int `yaml:"ttl_seconds"`
}

// ProgressConfig controls progress logging during generation
type ProgressConfig struct {
	// IntervalSeconds between progress lines; zero logs after every household
	IntervalSeconds int `yaml:"interval_seconds"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose"`

	// MetricsFile is written after a successful run when set
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: llm.DefaultConfig(),
		LLMModels: map[string]LLMModelConfig{
			"persons": {
				Fields:       []string{synth.AgeField, synth.SexField, "employment", "education"},
				SegmentField: synth.SexField,
			},
			"households": {
				Fields: []string{synth.NumPeopleField, "num_vehicles", "household_income"},
			},
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Progress: ProgressConfig{
			IntervalSeconds: 5,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyViper overrides file values with anything viper resolved from flags or
// DOPPELGANGER_* environment variables.
func (c *Config) ApplyViper(v *viper.Viper) {
	if v.IsSet("llm.provider") {
		c.LLM.Provider = v.GetString("llm.provider")
	}
	if v.IsSet("llm.model") {
		c.LLM.Model = v.GetString("llm.model")
	}
	if v.IsSet("llm.base_url") {
		c.LLM.BaseURL = v.GetString("llm.base_url")
	}
	if v.IsSet("llm.proxy") {
		c.LLM.Proxy = v.GetString("llm.proxy")
	}
	if v.IsSet("llm.max_tokens") {
		c.LLM.MaxTokens = v.GetInt("llm.max_tokens")
	}
	if v.IsSet("cache.enabled") {
		c.Cache.Enabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("progress.interval_seconds") {
		c.Progress.IntervalSeconds = v.GetInt("progress.interval_seconds")
	}
	if v.IsSet("verbose") {
		c.Output.Verbose = v.GetBool("verbose")
	}
}

// APIKeyFromEnv fills LLM.APIKey from the provider's usual variable
func (c *Config) APIKeyFromEnv() {
	if c.LLM.APIKey != "" {
		return
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "":
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && c.LLM.BaseURL == "" {
			c.LLM.BaseURL = baseURL
		}
	}
}

// LLMModel returns the named LLM model configuration
func (c *Config) LLMModel(name string) (LLMModelConfig, error) {
	m, ok := c.LLMModels[name]
	if !ok {
		names := make([]string, 0, len(c.LLMModels))
		for n := range c.LLMModels {
			names = append(names, n)
		}
		return LLMModelConfig{}, fmt.Errorf("no llm model %q configured (have: %s)", name, strings.Join(names, ", "))
	}
	if len(m.Fields) == 0 {
		return LLMModelConfig{}, fmt.Errorf("llm model %q has no fields", name)
	}
	return m, nil
}
