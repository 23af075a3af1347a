package handlers

import (
	"net/http"

	"github.com/warmline/warmline/pkg/core/orchestrator"
	"github.com/warmline/warmline/pkg/gateway/mw"
)

// AgentsHandler exposes the roster: listing for dashboards, full snapshots
// for per-agent inspection.
type AgentsHandler struct {
	Orchestrator *orchestrator.Orchestrator
}

type listAgentsResponse struct {
	Agents []agentView `json:"agents"`
	Count  int         `json:"count"`
}

func (h AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps := h.Orchestrator.ListAgents()
	views := make([]agentView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, toAgentView(snap))
	}
	writeJSON(w, http.StatusOK, listAgentsResponse{Agents: views, Count: len(views)})
}

func (h AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	snap, err := h.Orchestrator.GetAgent(r.PathValue("identity"))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
