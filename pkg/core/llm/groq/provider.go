// Package groq implements the Groq API provider. Groq exposes an
// OpenAI-compatible API, so this provider wraps the OpenAI provider with a
// different base URL and default model.
package groq

import (
	"context"
	"net/http"

	"github.com/warmline/warmline/pkg/core/llm"
	"github.com/warmline/warmline/pkg/core/llm/openai"
)

const (
	// DefaultBaseURL is the Groq API endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the model used when a request names none.
	DefaultModel = "llama-3.1-8b-instant"
)

// Provider implements llm.Provider against Groq.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	inner      *openai.Provider
}

// New creates a new Groq provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	p.inner = openai.New(apiKey,
		openai.WithBaseURL(p.baseURL),
		openai.WithHTTPClient(p.httpClient),
		openai.WithDefaultModel(DefaultModel),
	)
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "groq"
}

// DefaultModel returns the model used when a request names none.
func (p *Provider) DefaultModel() string {
	return DefaultModel
}

// Complete sends a non-streaming request to Groq.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Result, error) {
	return p.inner.Complete(ctx, req)
}
