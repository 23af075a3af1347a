package server

import (
	"log/slog"
	"net/http"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/core/orchestrator"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/events"
	"github.com/warmline/warmline/pkg/gateway/handlers"
	"github.com/warmline/warmline/pkg/gateway/lifecycle"
	"github.com/warmline/warmline/pkg/gateway/metrics"
	"github.com/warmline/warmline/pkg/gateway/mw"
	"github.com/warmline/warmline/pkg/gateway/ratelimit"
)

// Deps carries the collaborators the server routes to. Orchestrator is
// required; the rest default to working instances when nil so tests can
// build a server from just an orchestrator.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Hub          *events.Hub
	Lifecycle    *lifecycle.Lifecycle
	Metrics      *metrics.Metrics
	Bridge       core.TelephonyBridge
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	orch      *orchestrator.Orchestrator
	hub       *events.Hub
	lifecycle *lifecycle.Lifecycle
	metrics   *metrics.Metrics
	bridge    core.TelephonyBridge
	limiter   *ratelimit.Limiter
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	lc := deps.Lifecycle
	if lc == nil {
		lc = lifecycle.New()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewMetrics(cfg.MetricsNamespace)
	}
	hub := deps.Hub
	if hub == nil {
		hub = events.NewHub(cfg, logger, lc, m)
	}

	var limiter *ratelimit.Limiter
	if rl := (ratelimit.Config{
		RPS:           cfg.LimitRPS,
		Burst:         cfg.LimitBurst,
		MaxConcurrent: cfg.LimitMaxConcurrent,
	}); rl.Enabled() {
		limiter = ratelimit.New(rl)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		orch:      deps.Orchestrator,
		hub:       hub,
		lifecycle: lc,
		metrics:   m,
		bridge:    deps.Bridge,
		limiter:   limiter,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /health", handlers.HealthHandler{
		Config:    s.cfg,
		Lifecycle: s.lifecycle,
	})
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.Handle("GET /ws", s.hub)

	calls := handlers.CallsHandler{
		Config:       s.cfg,
		Orchestrator: s.orch,
		Logger:       s.logger,
		Lifecycle:    s.lifecycle,
	}
	s.mux.HandleFunc("POST /api/calls/create", calls.Create)
	s.mux.HandleFunc("GET /api/calls", calls.List)
	s.mux.HandleFunc("GET /api/calls/{session_id}", calls.Get)
	s.mux.HandleFunc("POST /api/calls/{session_id}/join", calls.Join)
	s.mux.HandleFunc("POST /api/calls/{session_id}/transfer", calls.Transfer)
	s.mux.HandleFunc("POST /api/calls/{session_id}/explain", calls.Explain)
	s.mux.HandleFunc("POST /api/calls/{session_id}/complete", calls.Complete)
	s.mux.HandleFunc("POST /api/calls/{session_id}/end", calls.End)

	agents := handlers.AgentsHandler{Orchestrator: s.orch}
	s.mux.HandleFunc("GET /api/agents", agents.List)
	s.mux.HandleFunc("GET /api/agents/{identity}", agents.Get)

	telephony := handlers.TelephonyHandler{
		Config:       s.cfg,
		Orchestrator: s.orch,
		Bridge:       s.bridge,
		Events:       s.hub,
		Logger:       s.logger,
		Lifecycle:    s.lifecycle,
	}
	s.mux.HandleFunc("POST /api/twilio/call", telephony.Call)
	s.mux.HandleFunc("POST /api/twilio/connect/{session_id}", telephony.Connect)
	s.mux.HandleFunc("POST /api/twilio/status", telephony.Status)

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.cfg, s.limiter, h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.Metrics(s.metrics, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
