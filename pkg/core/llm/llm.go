// Package llm defines the minimal chat-completion contract the summary
// service needs from a text-generation backend. Concrete providers live in
// subpackages and translate this contract to their wire formats.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a non-streaming completion request.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the completed text plus accounting metadata.
type Result struct {
	Text  string
	Model string
	Usage Usage
}

// Provider executes completion requests against one backend.
type Provider interface {
	// Name returns the provider identifier, e.g. "openai".
	Name() string
	// DefaultModel returns the model used when a request names none.
	DefaultModel() string
	// Complete sends one request and returns the full completion.
	Complete(ctx context.Context, req Request) (Result, error)
}
