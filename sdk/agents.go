package warmline

import (
	"context"
	"net/url"

	"github.com/warmline/warmline/pkg/core"
)

// AgentsService inspects the agent roster.
type AgentsService struct {
	client *Client
}

// Agent is the roster view of one agent.
type Agent struct {
	Identity           string `json:"identity"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	Specialty          string `json:"specialty,omitempty"`
	State              string `json:"state"`
	CurrentSession     string `json:"current_session,omitempty"`
	ConversationLength int    `json:"conversation_length"`
}

type AgentList struct {
	Agents []Agent `json:"agents"`
	Count  int     `json:"count"`
}

func (s *AgentsService) List(ctx context.Context) (*AgentList, error) {
	var out AgentList
	if err := s.client.get(ctx, "/api/agents", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the full snapshot of one agent, transcript and transfer
// context included.
func (s *AgentsService) Get(ctx context.Context, identity string) (*core.AgentSnapshot, error) {
	if identity == "" {
		return nil, core.NewValidationErrorWithParam("identity is required", "identity")
	}
	var out core.AgentSnapshot
	if err := s.client.get(ctx, "/api/agents/"+url.PathEscape(identity), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
