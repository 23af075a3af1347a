package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warmline/warmline/pkg/core/llm"
)

// chatRequest is the Chat Completions API request format.
type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxTokens           *int          `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
	Temperature         *float64      `json:"temperature,omitempty"`
}

// chatMessage is a single message in OpenAI format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Chat Completions API response format.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// buildRequest converts an llm.Request to the wire format.
func (p *Provider) buildRequest(req llm.Request) *chatRequest {
	out := &chatRequest{
		Model: req.Model,
	}
	if out.Model == "" {
		out.Model = p.defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	switch p.maxTokensField {
	case MaxTokensFieldMaxCompletionTokens:
		out.MaxCompletionTokens = &maxTokens
	default:
		out.MaxTokens = &maxTokens
	}

	if req.Temperature > 0 {
		temp := req.Temperature
		out.Temperature = &temp
	}

	out.Messages = make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// parseResponse translates the wire response into an llm.Result.
func (p *Provider) parseResponse(body []byte) (llm.Result, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llm.Result{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Result{}, &Error{Type: ErrProvider, Message: "response contained no choices"}
	}
	return llm.Result{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
