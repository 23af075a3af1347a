package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/gateway/apierror"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, reqID string, err error) {
	coreErr, status := apierror.FromError(err, reqID)
	writeJSON(w, status, apierror.Envelope{Error: coreErr})
}

func writeCoreErrorJSON(w http.ResponseWriter, reqID string, coreErr *core.Error, status int) {
	if coreErr != nil && coreErr.RequestID == "" {
		coreErr.RequestID = reqID
	}
	writeJSON(w, status, apierror.Envelope{Error: coreErr})
}

func writeDraining(w http.ResponseWriter, reqID string) {
	writeCoreErrorJSON(w, reqID, &core.Error{
		Type:    core.ErrConflict,
		Message: "gateway is draining",
		Code:    "draining",
	}, http.StatusServiceUnavailable)
}

// decodeJSON reads a bounded JSON body into dst. An empty body decodes to
// the zero value so endpoints whose fields are all optional accept bare
// POSTs.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return core.NewValidationError("failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return core.NewValidationError("invalid json body")
	}
	return nil
}

// agentView is the trimmed agent representation embedded in call responses
// and the roster listing. The single-agent endpoint returns the full
// snapshot, transcript included.
type agentView struct {
	Identity           string `json:"identity"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	Specialty          string `json:"specialty,omitempty"`
	State              string `json:"state"`
	CurrentSession     string `json:"current_session,omitempty"`
	ConversationLength int    `json:"conversation_length"`
}

func toAgentView(snap core.AgentSnapshot) agentView {
	return agentView{
		Identity:           snap.Identity,
		Name:               snap.Name,
		Role:               string(snap.Role),
		Specialty:          snap.Specialty,
		State:              string(snap.State),
		CurrentSession:     snap.CurrentSession,
		ConversationLength: len(snap.Transcript),
	}
}
