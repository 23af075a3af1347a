package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/core/orchestrator"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/lifecycle"
	"github.com/warmline/warmline/pkg/gateway/mw"
)

// CallsHandler serves the call session lifecycle: create, join, the three
// transfer phases and teardown.
type CallsHandler struct {
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger
	Lifecycle    *lifecycle.Lifecycle
}

type createCallRequest struct {
	CallerIdentity string `json:"caller_identity"`
	AgentAIdentity string `json:"agent_a_identity,omitempty"`
}

type createCallResponse struct {
	SessionID   string    `json:"session_id"`
	RoomName    string    `json:"room_name"`
	CallerToken string    `json:"caller_token"`
	AgentA      agentView `json:"agent_a"`
}

func (h CallsHandler) Create(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if h.Lifecycle.IsDraining() {
		writeDraining(w, reqID)
		return
	}

	var req createCallRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}

	res, err := h.Orchestrator.CreateSession(r.Context(),
		strings.TrimSpace(req.CallerIdentity),
		strings.TrimSpace(req.AgentAIdentity))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	join, err := h.Orchestrator.Join(r.Context(), res.Session.ID, res.Session.Caller, core.ParticipantCaller)
	if err != nil {
		// The session exists; the caller can retry via the join endpoint.
		writeErr(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, createCallResponse{
		SessionID:   res.Session.ID,
		RoomName:    join.RoomName,
		CallerToken: join.Token,
		AgentA:      toAgentView(res.AgentA),
	})
}

type listCallsResponse struct {
	Sessions []core.SessionSnapshot `json:"sessions"`
	Count    int                    `json:"count"`
}

func (h CallsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.Orchestrator.ListSessions()
	writeJSON(w, http.StatusOK, listCallsResponse{Sessions: sessions, Count: len(sessions)})
}

func (h CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	snap, err := h.Orchestrator.GetSession(r.PathValue("session_id"))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type joinCallRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role,omitempty"`
}

type joinCallResponse struct {
	AccessToken string `json:"access_token"`
	LiveKitURL  string `json:"livekit_url"`
	RoomName    string `json:"room_name"`
	Role        string `json:"role"`
}

func (h CallsHandler) Join(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req joinCallRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}

	res, err := h.Orchestrator.Join(r.Context(), r.PathValue("session_id"),
		strings.TrimSpace(req.Identity), core.ParticipantRole(strings.TrimSpace(req.Role)))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, joinCallResponse{
		AccessToken: res.Token,
		LiveKitURL:  h.Config.LiveKitURL,
		RoomName:    res.RoomName,
		Role:        string(res.Role),
	})
}

type transferRequest struct {
	AgentBIdentity string `json:"agent_b_identity,omitempty"`
	Specialty      string `json:"specialty,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type transferResponse struct {
	TransferRoom string            `json:"transfer_room"`
	CallSummary  string            `json:"call_summary"`
	Tokens       map[string]string `json:"tokens"`
	AgentB       agentView         `json:"agent_b"`
}

func (h CallsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	sessionID := r.PathValue("session_id")

	var req transferRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}

	agentB := strings.TrimSpace(req.AgentBIdentity)
	if agentB == "" {
		snap, ok := h.Orchestrator.FirstAvailableAgentB(strings.TrimSpace(req.Specialty))
		if !ok {
			writeErr(w, reqID, core.NewConflictErrorCode("no specialist agent is available", core.CodeNoAgentAvailable))
			return
		}
		agentB = snap.Identity
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Customer transfer request"
	}

	res, err := h.Orchestrator.InitiateTransfer(r.Context(), sessionID, agentB, reason)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	// Both agents get credentials for the private transfer room. The
	// transfer itself is already committed; a token failure here surfaces
	// as an error the operator can retry against the session state.
	sess, err := h.Orchestrator.GetSession(sessionID)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	agentAToken, err := h.Orchestrator.IssueRoomToken(r.Context(), sess.AgentA, res.TransferRoom, core.ProfileAgent)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	agentBToken, err := h.Orchestrator.IssueRoomToken(r.Context(), res.AgentB.Identity, res.TransferRoom, core.ProfileAgent)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		TransferRoom: res.TransferRoom,
		CallSummary:  res.Summary,
		Tokens:       map[string]string{"agent_a": agentAToken, "agent_b": agentBToken},
		AgentB:       toAgentView(res.AgentB),
	})
}

type explainRequest struct {
	AgentAIdentity string `json:"agent_a_identity"`
	AgentBIdentity string `json:"agent_b_identity"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
	CallSummary string `json:"call_summary"`
}

func (h CallsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	sessionID := r.PathValue("session_id")

	var req explainRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}

	explanation, err := h.Orchestrator.ExplainTransfer(r.Context(), sessionID,
		strings.TrimSpace(req.AgentAIdentity), strings.TrimSpace(req.AgentBIdentity))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	summary := ""
	if sess, err := h.Orchestrator.GetSession(sessionID); err == nil {
		summary = sess.CallSummary
	}

	writeJSON(w, http.StatusOK, explainResponse{
		Explanation: explanation,
		CallSummary: summary,
	})
}

type completeRequest struct {
	AgentAIdentity string `json:"agent_a_identity"`
}

type completeResponse struct {
	FinalRoom   string `json:"final_room"`
	CallerToken string `json:"caller_token"`
	AgentBToken string `json:"agent_b_token"`
	CallSummary string `json:"call_summary"`
}

func (h CallsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req completeRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}

	res, err := h.Orchestrator.CompleteTransfer(r.Context(), r.PathValue("session_id"),
		strings.TrimSpace(req.AgentAIdentity))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, completeResponse{
		FinalRoom:   res.FinalRoom,
		CallerToken: res.CallerToken,
		AgentBToken: res.AgentBToken,
		CallSummary: res.Summary,
	})
}

type endCallResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

func (h CallsHandler) End(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	snap, err := h.Orchestrator.EndSession(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, endCallResponse{
		Status:    string(snap.State),
		SessionID: snap.ID,
	})
}
