// Package openrouter implements the OpenRouter API provider. OpenRouter is
// an OpenAI-compatible API that routes across many model backends; requests
// carry attribution headers identifying the calling application.
package openrouter

import (
	"context"
	"net/http"

	"github.com/warmline/warmline/pkg/core/llm"
	"github.com/warmline/warmline/pkg/core/llm/openai"
)

const (
	// DefaultBaseURL is the OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the model used when a request names none.
	DefaultModel = "meta-llama/llama-3.1-8b-instruct:free"
)

// Provider implements llm.Provider against OpenRouter.
type Provider struct {
	apiKey     string
	baseURL    string
	siteURL    string
	siteName   string
	httpClient *http.Client
	inner      *openai.Provider
}

// New creates a new OpenRouter provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	openaiOpts := []openai.Option{
		openai.WithBaseURL(p.baseURL),
		openai.WithHTTPClient(p.httpClient),
		openai.WithDefaultModel(DefaultModel),
	}
	if p.siteURL != "" {
		openaiOpts = append(openaiOpts, openai.WithExtraHeader("HTTP-Referer", p.siteURL))
	}
	if p.siteName != "" {
		openaiOpts = append(openaiOpts, openai.WithExtraHeader("X-Title", p.siteName))
	}

	p.inner = openai.New(apiKey, openaiOpts...)
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openrouter"
}

// DefaultModel returns the model used when a request names none.
func (p *Provider) DefaultModel() string {
	return DefaultModel
}

// Complete sends a non-streaming request to OpenRouter.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Result, error) {
	return p.inner.Complete(ctx, req)
}
