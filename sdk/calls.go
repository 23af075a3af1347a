package warmline

import (
	"context"
	"net/url"

	"github.com/warmline/warmline/pkg/core"
)

// CallsService drives the call session lifecycle: create, join, the three
// warm transfer phases and teardown.
type CallsService struct {
	client *Client
}

// CreateCallRequest starts a session for a caller. AgentAIdentity pins a
// specific frontline agent; leave it empty to take the first available one.
type CreateCallRequest struct {
	CallerIdentity string `json:"caller_identity"`
	AgentAIdentity string `json:"agent_a_identity,omitempty"`
}

type CreateCallResponse struct {
	SessionID   string `json:"session_id"`
	RoomName    string `json:"room_name"`
	CallerToken string `json:"caller_token"`
	AgentA      Agent  `json:"agent_a"`
}

func (s *CallsService) Create(ctx context.Context, req *CreateCallRequest) (*CreateCallResponse, error) {
	if req == nil {
		return nil, core.NewValidationError("req must not be nil")
	}
	var out CreateCallResponse
	if err := s.client.post(ctx, "/api/calls/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the full session snapshot.
func (s *CallsService) Get(ctx context.Context, sessionID string) (*core.SessionSnapshot, error) {
	if sessionID == "" {
		return nil, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	var out core.SessionSnapshot
	if err := s.client.get(ctx, "/api/calls/"+url.PathEscape(sessionID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CallList struct {
	Sessions []core.SessionSnapshot `json:"sessions"`
	Count    int                    `json:"count"`
}

func (s *CallsService) List(ctx context.Context) (*CallList, error) {
	var out CallList
	if err := s.client.get(ctx, "/api/calls", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinCallRequest admits a participant to the session's current room. Role
// is inferred from the roster when empty.
type JoinCallRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role,omitempty"`
}

type JoinCallResponse struct {
	AccessToken string `json:"access_token"`
	LiveKitURL  string `json:"livekit_url"`
	RoomName    string `json:"room_name"`
	Role        string `json:"role"`
}

func (s *CallsService) Join(ctx context.Context, sessionID string, req *JoinCallRequest) (*JoinCallResponse, error) {
	if sessionID == "" {
		return nil, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	if req == nil {
		return nil, core.NewValidationError("req must not be nil")
	}
	var out JoinCallResponse
	if err := s.client.post(ctx, "/api/calls/"+url.PathEscape(sessionID)+"/join", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransferRequest opens the first warm transfer phase. AgentBIdentity pins a
// specific specialist; otherwise the gateway picks the first available Agent
// B, narrowed by Specialty when set.
type TransferRequest struct {
	AgentBIdentity string `json:"agent_b_identity,omitempty"`
	Specialty      string `json:"specialty,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type TransferResponse struct {
	TransferRoom string            `json:"transfer_room"`
	CallSummary  string            `json:"call_summary"`
	Tokens       map[string]string `json:"tokens"`
	AgentB       Agent             `json:"agent_b"`
}

func (s *CallsService) Transfer(ctx context.Context, sessionID string, req *TransferRequest) (*TransferResponse, error) {
	if sessionID == "" {
		return nil, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	if req == nil {
		req = &TransferRequest{}
	}
	var out TransferResponse
	if err := s.client.post(ctx, "/api/calls/"+url.PathEscape(sessionID)+"/transfer", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExplainRequest runs the second phase: Agent A briefs Agent B inside the
// transfer room.
type ExplainRequest struct {
	AgentAIdentity string `json:"agent_a_identity"`
	AgentBIdentity string `json:"agent_b_identity"`
}

type ExplainResponse struct {
	Explanation string `json:"explanation"`
	CallSummary string `json:"call_summary"`
}

func (s *CallsService) Explain(ctx context.Context, sessionID string, req *ExplainRequest) (*ExplainResponse, error) {
	if sessionID == "" {
		return nil, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	if req == nil {
		return nil, core.NewValidationError("req must not be nil")
	}
	var out ExplainResponse
	if err := s.client.post(ctx, "/api/calls/"+url.PathEscape(sessionID)+"/explain", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteRequest runs the final phase: Agent A exits, the caller moves to
// Agent B's room.
type CompleteRequest struct {
	AgentAIdentity string `json:"agent_a_identity"`
}

type CompleteResponse struct {
	FinalRoom   string `json:"final_room"`
	CallerToken string `json:"caller_token"`
	AgentBToken string `json:"agent_b_token"`
	CallSummary string `json:"call_summary"`
}

func (s *CallsService) Complete(ctx context.Context, sessionID string, req *CompleteRequest) (*CompleteResponse, error) {
	if sessionID == "" {
		return nil, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	if req == nil {
		req = &CompleteRequest{}
	}
	var out CompleteResponse
	if err := s.client.post(ctx, "/api/calls/"+url.PathEscape(sessionID)+"/complete", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type EndCallResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// End tears the session down and releases its agents.
func (s *CallsService) End(ctx context.Context, sessionID string) (*EndCallResponse, error) {
	if sessionID == "" {
		return nil, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	var out EndCallResponse
	if err := s.client.post(ctx, "/api/calls/"+url.PathEscape(sessionID)+"/end", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
