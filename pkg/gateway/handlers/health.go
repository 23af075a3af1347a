package handlers

import (
	"net/http"

	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/lifecycle"
)

// HealthHandler reports process liveness and which collaborators the
// gateway was configured with. It never fails the probe while the process
// can serve; draining is reported, not treated as unhealthy.
type HealthHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

type healthResponse struct {
	Status            string `json:"status"`
	LiveKitConfigured bool   `json:"livekit_configured"`
	LLMConfigured     bool   `json:"llm_configured"`
	TwilioAvailable   bool   `json:"twilio_available"`
	Draining          bool   `json:"draining"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	draining := h.Lifecycle.IsDraining()
	if draining {
		status = "draining"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            status,
		LiveKitConfigured: h.Config.LiveKitURL != "",
		LLMConfigured:     h.Config.LLMConfigured(),
		TwilioAvailable:   h.Config.TwilioConfigured(),
		Draining:          draining,
		UptimeSeconds:     int64(h.Lifecycle.Uptime().Seconds()),
	})
}
