package llm

import (
	"fmt"
	"strings"
	"time"
)

// Config selects and configures the judgment provider
type Config struct {
	// Provider is one of "ollama", "openai", "groq", "anthropic" or "" for none
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// CacheTTL caches judgments per article; zero disables caching
	CacheTTL time.Duration
	// RequestsPerSecond throttles provider calls; zero means unlimited
	RequestsPerSecond float64
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 800
	}
	return c.MaxTokens
}

// NewProvider builds the provider named by cfg.Provider.
// It returns nil without error when no provider is configured.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "ollama":
		return NewOllamaProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "groq":
		return NewGroqProvider(cfg)
	case "anthropic", "claude":
		return NewAnthropicProvider(cfg)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: ollama, openai, groq, anthropic)", cfg.Provider)
	}
}

// NewJudge builds the configured Judge, cached and rate limited per cfg.
// A nil Judge means no external model is configured.
func NewJudge(cfg Config) (Judge, error) {
	provider, err := NewProvider(cfg)
	if err != nil || provider == nil {
		return nil, err
	}

	var judge Judge = NewProviderJudge(provider)
	if cfg.CacheTTL > 0 || cfg.RequestsPerSecond > 0 {
		judge = NewCached(judge, cfg.CacheTTL, cfg.RequestsPerSecond)
	}
	return judge, nil
}
