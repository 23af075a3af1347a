package core

import (
	"strings"
	"time"
)

// Turn is one spoken or typed line in a conversation.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is an ordered, append-only sequence of turns.
type Transcript []Turn

// Render flattens the transcript into "speaker: text" lines, the form
// consumed by summarization prompts.
func (t Transcript) Render() string {
	if len(t) == 0 {
		return ""
	}
	lines := make([]string, 0, len(t))
	for _, turn := range t {
		lines = append(lines, turn.Speaker+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}

// Clone returns an independent copy safe to hand across goroutines.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
