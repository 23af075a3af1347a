package handlers

import (
	"net/http"
	"testing"

	"github.com/warmline/warmline/pkg/core"
)

func TestListAgents(t *testing.T) {
	e := newHandlersEnv(t)
	e.createConnected(t, "cust1")

	rr := doJSON(t, e.agents.List, http.MethodGet, "/api/agents", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var res struct {
		Agents []struct {
			Identity           string `json:"identity"`
			Role               string `json:"role"`
			Specialty          string `json:"specialty"`
			State              string `json:"state"`
			CurrentSession     string `json:"current_session"`
			ConversationLength int    `json:"conversation_length"`
		} `json:"agents"`
		Count int `json:"count"`
	}
	decodeBody(t, rr, &res)

	if res.Count != 3 || len(res.Agents) != 3 {
		t.Fatalf("count = %d, agents = %d, want 3 each", res.Count, len(res.Agents))
	}

	byIdentity := map[string]int{}
	for i, a := range res.Agents {
		byIdentity[a.Identity] = i
	}
	a1 := res.Agents[byIdentity["agent_a_1"]]
	if a1.State != string(core.AgentInCall) {
		t.Errorf("agent_a_1 state = %q, want in_call", a1.State)
	}
	if a1.CurrentSession == "" {
		t.Error("agent_a_1 current_session is empty while in a call")
	}
	if a1.ConversationLength == 0 {
		t.Error("agent_a_1 conversation_length = 0, want the greeting turn counted")
	}
	b1 := res.Agents[byIdentity["agent_b_1"]]
	if b1.Specialty != "Billing" {
		t.Errorf("agent_b_1 specialty = %q, want Billing", b1.Specialty)
	}
	if b1.State != string(core.AgentIdle) {
		t.Errorf("agent_b_1 state = %q, want idle", b1.State)
	}
}

func TestGetAgent(t *testing.T) {
	e := newHandlersEnv(t)
	e.createConnected(t, "cust1")

	rr := doJSON(t, e.agents.Get, http.MethodGet, "/api/agents/agent_a_1", "",
		map[string]string{"identity": "agent_a_1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var snap core.AgentSnapshot
	decodeBody(t, rr, &snap)
	if snap.Identity != "agent_a_1" {
		t.Errorf("identity = %q, want agent_a_1", snap.Identity)
	}
	if len(snap.Transcript) == 0 {
		t.Error("transcript is empty, want at least the greeting")
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	e := newHandlersEnv(t)

	rr := doJSON(t, e.agents.Get, http.MethodGet, "/api/agents/nobody", "",
		map[string]string{"identity": "nobody"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if errType, _ := decodeError(t, rr); errType != string(core.ErrNotFound) {
		t.Errorf("error type = %q, want not_found_error", errType)
	}
}
