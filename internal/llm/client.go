// Package llm wraps the chat-completion backends pwgen can talk to behind
// a single Complete call.
package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGenAI  = "genai"
)

// ErrMissingCredential is returned when a provider needs an API key and
// none was configured.
var ErrMissingCredential = errors.New("llm api key not set")

// Request is a single-turn completion.
type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	// JSON asks the backend for a JSON object response where supported.
	JSON bool
}

// Client completes a prompt and returns the assistant text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
}

// New returns the Client for cfg.Provider. Missing credentials do not fail
// construction; the returned client reports ErrMissingCredential on use so
// that callers without an LLM dependency keep working.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL), nil
	case ProviderOllama:
		return NewOllama(cfg.BaseURL), nil
	case ProviderGenAI:
		if cfg.APIKey == "" {
			return unavailable{}, nil
		}
		return NewGenAI(context.Background(), cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// unavailable fails every request with ErrMissingCredential.
type unavailable struct{}

func (unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrMissingCredential
}
