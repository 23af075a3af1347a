// Package summary turns call transcripts into handoff summaries and spoken
// transfer explanations using a chat-completion provider. Prompts live here;
// providers are pure transport.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/core/llm"
)

const (
	summarySystem = "You are a professional call center supervisor creating handoff summaries."
	explainSystem = "You are a professional agent making a warm transfer handoff."

	summaryMaxTokens   = 300
	summaryTemperature = 0.3
	explainMaxTokens   = 150
	explainTemperature = 0.4
)

// Service implements the summarizer over a text-generation provider.
type Service struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(s *Service) {
		s.model = model
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a summary service over the given provider.
func New(provider llm.Provider, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize produces a handoff summary of the conversation so far.
func (s *Service) Summarize(ctx context.Context, transcript core.Transcript) (string, error) {
	started := time.Now()
	res, err := s.complete(ctx, summarySystem, summaryPrompt(transcript), summaryMaxTokens, summaryTemperature)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	s.logger.Debug("summary generated",
		"provider", s.provider.Name(),
		"model", res.Model,
		"tokens", res.Usage.TotalTokens,
		"elapsed", time.Since(started))
	return res.Text, nil
}

// Explain produces the spoken briefing agent A gives agent B.
func (s *Service) Explain(ctx context.Context, summary, reason, targetContext string) (string, error) {
	started := time.Now()
	res, err := s.complete(ctx, explainSystem, explainPrompt(summary, reason, targetContext), explainMaxTokens, explainTemperature)
	if err != nil {
		return "", fmt.Errorf("generate explanation: %w", err)
	}
	s.logger.Debug("explanation generated",
		"provider", s.provider.Name(),
		"model", res.Model,
		"tokens", res.Usage.TotalTokens,
		"elapsed", time.Since(started))
	return res.Text, nil
}

func (s *Service) complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (llm.Result, error) {
	model := s.model
	if model == "" {
		model = s.provider.DefaultModel()
	}
	return s.provider.Complete(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

func summaryPrompt(transcript core.Transcript) string {
	var b strings.Builder
	b.WriteString("Please create a concise call summary based on the following conversation:\n\n")
	b.WriteString(transcript.Render())
	b.WriteString("\n\nProvide a summary that includes:\n")
	b.WriteString("1. Main topics discussed\n")
	b.WriteString("2. Customer's primary concern or request\n")
	b.WriteString("3. Actions taken or promised\n")
	b.WriteString("4. Current status\n")
	b.WriteString("5. Any important details for handoff\n\n")
	b.WriteString("Keep it professional and under 200 words.")
	return b.String()
}

func explainPrompt(summary, reason, targetContext string) string {
	var b strings.Builder
	b.WriteString("You are Agent A explaining a call transfer to Agent B. Create a brief, professional explanation.\n\n")
	fmt.Fprintf(&b, "Call Summary: %s\n\n", summary)
	fmt.Fprintf(&b, "Transfer Reason: %s\n", reason)
	if targetContext != "" {
		fmt.Fprintf(&b, "Agent B specializes in: %s\n", targetContext)
	}
	b.WriteString("\nProvide a clear, conversational explanation (under 100 words) that Agent A would speak to Agent B, including:\n")
	b.WriteString("1. Quick introduction\n")
	b.WriteString("2. Why you're transferring\n")
	b.WriteString("3. Key points Agent B needs to know\n")
	b.WriteString("4. Any urgent items\n\n")
	b.WriteString("Make it sound natural and professional.")
	return b.String()
}
