package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/core/orchestrator"
	"github.com/warmline/warmline/pkg/core/telephony/twilio"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/events"
	"github.com/warmline/warmline/pkg/gateway/lifecycle"
	"github.com/warmline/warmline/pkg/gateway/mw"
)

// TelephonyHandler dials PSTN callers into sessions and answers the
// provider's webhooks. Bridge is nil when no telephony credentials were
// configured; the dial endpoint refuses in that case while the webhook
// endpoints still answer with valid instructions.
type TelephonyHandler struct {
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Bridge       core.TelephonyBridge
	Events       orchestrator.Sink
	Logger       *slog.Logger
	Lifecycle    *lifecycle.Lifecycle
}

type outboundCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	SessionID   string `json:"session_id"`
}

type outboundCallResponse struct {
	CallSID     string `json:"call_sid"`
	PhoneNumber string `json:"phone_number"`
	SessionID   string `json:"session_id"`
}

func (h TelephonyHandler) Call(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if h.Lifecycle.IsDraining() {
		writeDraining(w, reqID)
		return
	}
	if h.Bridge == nil {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:    core.ErrConflict,
			Message: "telephony is not configured",
			Code:    "telephony_not_configured",
		}, http.StatusServiceUnavailable)
		return
	}

	var req outboundCallRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}
	number := strings.TrimSpace(req.PhoneNumber)
	if number == "" {
		writeErr(w, reqID, core.NewValidationErrorWithParam("phone_number is required", "phone_number"))
		return
	}

	sess, err := h.Orchestrator.GetSession(strings.TrimSpace(req.SessionID))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	callSID, err := h.Bridge.PlaceOutboundCall(r.Context(), number, sess.ID, sess.AgentA)
	if err != nil {
		writeErr(w, reqID, core.NewUpstreamError("twilio", err))
		return
	}

	if h.Logger != nil {
		h.Logger.Info("outbound call placed", "session_id", sess.ID, "call_sid", callSID)
	}
	writeJSON(w, http.StatusOK, outboundCallResponse{
		CallSID:     callSID,
		PhoneNumber: number,
		SessionID:   sess.ID,
	})
}

// Connect answers the provider's call-instructions webhook. The response
// must always be a valid TwiML document, so a missing session hangs the
// call up instead of returning a JSON error the provider cannot parse.
func (h TelephonyHandler) Connect(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	sess, err := h.Orchestrator.GetSession(sessionID)
	if err != nil {
		writeTwiML(w, twilio.HangupTwiML("No active session was found for this call. Goodbye."))
		return
	}

	room := sess.OriginalRoom
	if sess.State == core.CallTransferred && sess.FinalRoom != "" {
		room = sess.FinalRoom
	}
	writeTwiML(w, twilio.ConnectTwiML(room, ""))
}

// Status receives provider status callbacks, logs them and forwards them
// onto the event stream.
func (h TelephonyHandler) Status(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	callSID := r.PostFormValue("CallSid")
	callStatus := r.PostFormValue("CallStatus")
	if h.Logger != nil {
		h.Logger.Info("call status update",
			"call_sid", callSID,
			"status", callStatus,
			"to", r.PostFormValue("To"),
			"duration", r.PostFormValue("CallDuration"))
	}
	if h.Events != nil {
		h.Events.Publish(orchestrator.Event{
			Type:  events.EventTelephonyStatus,
			State: callStatus,
			Data: map[string]any{
				"call_sid": callSID,
				"to":       r.PostFormValue("To"),
				"from":     r.PostFormValue("From"),
			},
			At: time.Now(),
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
