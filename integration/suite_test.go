// Package integration_test drives the full gateway stack end to end: real
// router, middleware chain, orchestrator and event hub, with only the room
// provider and summarizer faked. Requests go through the SDK the way an
// operator console would issue them.
package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/core/orchestrator"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/events"
	"github.com/warmline/warmline/pkg/gateway/lifecycle"
	"github.com/warmline/warmline/pkg/gateway/metrics"
	gatewayserver "github.com/warmline/warmline/pkg/gateway/server"
	warmline "github.com/warmline/warmline/sdk"
)

const testAPIKey = "wl_sk_integration"

type fakeRooms struct{}

func (fakeRooms) CreateRoom(_ context.Context, name string, _ int) (string, error) {
	return name, nil
}

func (fakeRooms) IssueToken(_ context.Context, identity, roomName string, _ core.RoomProfile) (string, error) {
	return fmt.Sprintf("tok_%s_%s", identity, roomName), nil
}

func (fakeRooms) RemoveParticipant(_ context.Context, _, _ string) error { return nil }

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(_ context.Context, _ core.Transcript) (string, error) {
	return "caller reports repeated billing failures on invoice 4411", nil
}

func (fakeSummarizer) Explain(_ context.Context, summary, reason, _ string) (string, error) {
	return "Briefing: " + summary + " Reason for transfer: " + reason, nil
}

func testRoster() []core.Agent {
	return []core.Agent{
		{Identity: "agent_a_1", Name: "Alice", Role: core.RoleAgentA},
		{Identity: "agent_a_2", Name: "Aaron", Role: core.RoleAgentA},
		{Identity: "agent_b_1", Name: "Bob", Role: core.RoleAgentB, Specialty: "Billing"},
		{Identity: "agent_b_2", Name: "Bea", Role: core.RoleAgentB, Specialty: "Technical"},
	}
}

type gatewayEnv struct {
	Server    *httptest.Server
	Client    *warmline.Client
	Hub       *events.Hub
	Orch      *orchestrator.Orchestrator
	Lifecycle *lifecycle.Lifecycle
}

func newGateway(t *testing.T) *gatewayEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cfg := config.Config{
		AuthMode:         config.AuthModeRequired,
		APIKeys:          map[string]struct{}{testAPIKey: {}},
		MaxBodyBytes:     1 << 20,
		MetricsNamespace: "warmline_it",
		LiveKitURL:       "wss://livekit.integration.test",
	}

	reg := core.NewAgentRegistry()
	for _, a := range testRoster() {
		if err := reg.Register(a); err != nil {
			t.Fatalf("Register(%s): %v", a.Identity, err)
		}
	}

	lc := lifecycle.New()
	m := metrics.NewMetrics(cfg.MetricsNamespace)
	hub := events.NewHub(cfg, logger, lc, m)

	orch := orchestrator.New(reg, core.NewSessionStore(), fakeRooms{}, fakeSummarizer{}, orchestrator.Options{
		Logger:   logger,
		Events:   hub,
		Observer: m,
	})

	s := gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Orchestrator: orch,
		Hub:          hub,
		Lifecycle:    lc,
		Metrics:      m,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	client, err := warmline.NewClient(srv.URL,
		warmline.WithAPIKey(testAPIKey),
		warmline.WithHTTPClient(srv.Client()),
		warmline.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	return &gatewayEnv{Server: srv, Client: client, Hub: hub, Orch: orch, Lifecycle: lc}
}
