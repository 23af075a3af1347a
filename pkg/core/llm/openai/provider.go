// Package openai implements the OpenAI Chat Completions API provider.
// Compatible backends (Groq, OpenRouter) reuse it with a different base URL.
package openai

import (
	"context"
	"net/http"

	"github.com/warmline/warmline/pkg/core/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the model used when a request names none.
	DefaultModel = "gpt-3.5-turbo"

	// DefaultMaxTokens is the default max tokens if not specified.
	DefaultMaxTokens = 1024
)

// Provider implements llm.Provider against the Chat Completions API.
type Provider struct {
	apiKey         string
	baseURL        string
	chatPath       string
	defaultModel   string
	maxTokensField MaxTokensField
	auth           AuthConfig
	extraHeaders   map[string]string
	httpClient     *http.Client
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		chatPath:       "/chat/completions",
		defaultModel:   DefaultModel,
		maxTokensField: MaxTokensFieldMaxTokens,
		auth:           AuthConfig{Header: "Authorization", Prefix: "Bearer "},
		httpClient:     &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// DefaultModel returns the model used when a request names none.
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// Complete sends a non-streaming request and returns the completion.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Result, error) {
	body, err := p.doRequest(ctx, p.buildRequest(req))
	if err != nil {
		return llm.Result{}, err
	}
	return p.parseResponse(body)
}
