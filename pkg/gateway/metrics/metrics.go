// Package metrics registers the gateway's Prometheus instruments on a
// private registry and adapts them to the orchestrator's Observer.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP surface
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Transfer lifecycle
	TransferPhasesTotal   *prometheus.CounterVec
	TransferPhaseDuration *prometheus.HistogramVec

	// Collaborator calls (LiveKit, LLM, Twilio)
	CollaboratorRequestsTotal   *prometheus.CounterVec
	CollaboratorRequestDuration *prometheus.HistogramVec

	// Live state
	SessionsActiveGauge prometheus.Gauge
	WSClientsGauge      prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all instruments registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "warmline"
	}

	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	transferPhasesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_phases_total",
			Help:      "Total transfer phase executions by outcome",
		},
		[]string{"phase", "outcome"},
	)

	transferPhaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_phase_duration_seconds",
			Help:      "Transfer phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"phase"},
	)

	collaboratorRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_requests_total",
			Help:      "Total requests to external collaborators",
		},
		[]string{"collaborator", "operation", "outcome"},
	)

	collaboratorRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_request_duration_seconds",
			Help:      "Collaborator request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"collaborator", "operation"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live call sessions",
		},
	)

	wsClients := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients_active",
			Help:      "Number of connected event stream clients",
		},
	)

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		transferPhasesTotal,
		transferPhaseDuration,
		collaboratorRequestsTotal,
		collaboratorRequestDuration,
		sessionsActive,
		wsClients,
	)

	return &Metrics{
		registry:                    registry,
		HTTPRequestsTotal:           httpRequestsTotal,
		HTTPRequestDuration:         httpRequestDuration,
		TransferPhasesTotal:         transferPhasesTotal,
		TransferPhaseDuration:       transferPhaseDuration,
		CollaboratorRequestsTotal:   collaboratorRequestsTotal,
		CollaboratorRequestDuration: collaboratorRequestDuration,
		SessionsActiveGauge:         sessionsActive,
		WSClientsGauge:              wsClients,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// PhaseObserved implements orchestrator.Observer.
func (m *Metrics) PhaseObserved(phase, outcome string, elapsed time.Duration) {
	m.TransferPhasesTotal.WithLabelValues(phase, outcome).Inc()
	m.TransferPhaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// CollaboratorObserved implements orchestrator.Observer.
func (m *Metrics) CollaboratorObserved(collaborator, op string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CollaboratorRequestsTotal.WithLabelValues(collaborator, op, outcome).Inc()
	m.CollaboratorRequestDuration.WithLabelValues(collaborator, op).Observe(elapsed.Seconds())
}

// SessionsActive implements orchestrator.Observer.
func (m *Metrics) SessionsActive(n int) {
	m.SessionsActiveGauge.Set(float64(n))
}

// WSClientConnected records an event stream client attaching.
func (m *Metrics) WSClientConnected() {
	m.WSClientsGauge.Inc()
}

// WSClientDisconnected records an event stream client detaching.
func (m *Metrics) WSClientDisconnected() {
	m.WSClientsGauge.Dec()
}

// NormalizeEndpoint replaces path segments that carry identifiers so metric
// label cardinality stays bounded.
func NormalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	switch {
	case len(parts) >= 4 && parts[1] == "api" && parts[2] == "calls" && parts[3] != "" && parts[3] != "create":
		parts[3] = ":id"
	case len(parts) >= 4 && parts[1] == "api" && parts[2] == "agents" && parts[3] != "":
		parts[3] = ":id"
	case len(parts) >= 5 && parts[1] == "api" && parts[2] == "twilio" && parts[3] == "connect" && parts[4] != "":
		parts[4] = ":id"
	}
	return strings.Join(parts, "/")
}
