package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1:8b"
	DefaultTimeout     = 60 * time.Second
)

// OllamaProvider calls a local Ollama server
type OllamaProvider struct {
	client      *api.Client
	model       string
	timeout     time.Duration
	temperature float64
}

// NewOllamaProvider creates a provider for the Ollama server at cfg.BaseURL
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	ollamaURL := cfg.BaseURL
	if ollamaURL == "" {
		ollamaURL = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL: %q", ollamaURL)
	}

	return &OllamaProvider{
		client:      api.NewClient(baseURL, http.DefaultClient),
		model:       model,
		timeout:     cfg.timeout(),
		temperature: cfg.Temperature,
	}, nil
}

func (p *OllamaProvider) Name() string  { return "ollama" }
func (p *OllamaProvider) Model() string { return p.model }

// Complete runs a non-streaming generation
func (p *OllamaProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	slog.Debug("ollama generate", "model", p.model, "timeout", p.timeout)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:   p.model,
		System:  system,
		Prompt:  prompt,
		Stream:  new(bool), // false
		Options: map[string]any{"temperature": p.temperature},
	}

	var response strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return strings.TrimSpace(response.String()), nil
}
