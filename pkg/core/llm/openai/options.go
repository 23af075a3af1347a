package openai

import (
	"net/http"
	"strings"
)

// Option configures the OpenAI provider.
type Option func(*Provider)

// MaxTokensField controls which max tokens field is sent for chat completions.
type MaxTokensField string

const (
	// MaxTokensFieldMaxTokens uses "max_tokens".
	MaxTokensFieldMaxTokens MaxTokensField = "max_tokens"
	// MaxTokensFieldMaxCompletionTokens uses "max_completion_tokens".
	MaxTokensFieldMaxCompletionTokens MaxTokensField = "max_completion_tokens"
)

// AuthConfig configures authentication header behavior.
type AuthConfig struct {
	Header string
	Prefix string
	Value  string
}

// WithBaseURL sets a custom base URL (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithChatPath sets a custom chat completions path.
func WithChatPath(path string) Option {
	return func(p *Provider) {
		if path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		p.chatPath = path
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(p *Provider) {
		if model == "" {
			return
		}
		p.defaultModel = model
	}
}

// WithMaxTokensField sets which max tokens field name to emit.
func WithMaxTokensField(field MaxTokensField) Option {
	return func(p *Provider) {
		if field != MaxTokensFieldMaxTokens && field != MaxTokensFieldMaxCompletionTokens {
			return
		}
		p.maxTokensField = field
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithAuth sets custom auth header behavior.
func WithAuth(auth AuthConfig) Option {
	return func(p *Provider) {
		if auth.Header == "" {
			auth.Header = p.auth.Header
		}
		// Preserve the Bearer prefix for Authorization-style headers when the
		// caller gives neither a value nor a prefix; raw-key headers
		// (X-API-Key style) stay bare.
		if auth.Value == "" && auth.Prefix == "" {
			if strings.EqualFold(auth.Header, p.auth.Header) {
				auth.Prefix = p.auth.Prefix
			}
		}
		p.auth = auth
	}
}

// WithExtraHeaders sets additional request headers.
func WithExtraHeaders(headers map[string]string) Option {
	return func(p *Provider) {
		p.extraHeaders = make(map[string]string, len(headers))
		for key, value := range headers {
			p.extraHeaders[key] = value
		}
	}
}

// WithExtraHeader sets one additional request header.
func WithExtraHeader(key, value string) Option {
	return func(p *Provider) {
		if key == "" {
			return
		}
		if p.extraHeaders == nil {
			p.extraHeaders = make(map[string]string)
		}
		p.extraHeaders[key] = value
	}
}
