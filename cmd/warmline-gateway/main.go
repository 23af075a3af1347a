package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warmline/warmline/internal/dotenv"
	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/core/livekit"
	"github.com/warmline/warmline/pkg/core/llm"
	"github.com/warmline/warmline/pkg/core/llm/groq"
	"github.com/warmline/warmline/pkg/core/llm/openai"
	"github.com/warmline/warmline/pkg/core/llm/openrouter"
	"github.com/warmline/warmline/pkg/core/orchestrator"
	"github.com/warmline/warmline/pkg/core/roster"
	"github.com/warmline/warmline/pkg/core/summary"
	"github.com/warmline/warmline/pkg/core/telephony/twilio"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/events"
	"github.com/warmline/warmline/pkg/gateway/lifecycle"
	"github.com/warmline/warmline/pkg/gateway/metrics"
	gatewayserver "github.com/warmline/warmline/pkg/gateway/server"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildRuntime func(config.Config, *slog.Logger) (*gatewayRuntime, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:   config.LoadFromEnv,
		buildRuntime: buildRuntime,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// gatewayRuntime is everything run needs a handle on after construction:
// the server for its handler, the hub and lifecycle for the drain sequence.
type gatewayRuntime struct {
	server    *gatewayserver.Server
	hub       *events.Hub
	lifecycle *lifecycle.Lifecycle
}

func buildRuntime(cfg config.Config, logger *slog.Logger) (*gatewayRuntime, error) {
	agents := core.NewAgentRegistry()
	list, err := loadRoster(cfg)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	for _, a := range list {
		if err := agents.Register(a); err != nil {
			return nil, fmt.Errorf("register agent %q: %w", a.Identity, err)
		}
	}

	rooms, err := livekit.New(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret,
		livekit.WithTokenTTL(cfg.LiveKitTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("livekit client: %w", err)
	}

	var bridge core.TelephonyBridge
	if cfg.TwilioConfigured() {
		tw, err := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
			cfg.TwilioFromNumber, cfg.TwilioCallbackURL)
		if err != nil {
			return nil, fmt.Errorf("twilio client: %w", err)
		}
		bridge = tw
		logger.Info("telephony bridge configured", "from_number", cfg.TwilioFromNumber)
	}

	lc := lifecycle.New()
	m := metrics.NewMetrics(cfg.MetricsNamespace)
	hub := events.NewHub(cfg, logger, lc, m)

	orch := orchestrator.New(agents, core.NewSessionStore(), rooms, buildSummarizer(cfg, logger),
		orchestrator.Options{
			Logger:          logger,
			Events:          hub,
			Observer:        m,
			UpstreamTimeout: cfg.UpstreamTimeout,
		})

	srv := gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Orchestrator: orch,
		Hub:          hub,
		Lifecycle:    lc,
		Metrics:      m,
		Bridge:       bridge,
	})
	return &gatewayRuntime{server: srv, hub: hub, lifecycle: lc}, nil
}

func loadRoster(cfg config.Config) ([]core.Agent, error) {
	if cfg.RosterPath != "" {
		return roster.Load(cfg.RosterPath)
	}
	return roster.Default(), nil
}

// buildSummarizer always returns a working summarizer. With no API key
// configured, provider calls fail and the orchestrator falls back to its
// placeholder summary.
func buildSummarizer(cfg config.Config, logger *slog.Logger) core.Summarizer {
	var provider llm.Provider
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		var opts []groq.Option
		if cfg.LLMBaseURL != "" {
			opts = append(opts, groq.WithBaseURL(cfg.LLMBaseURL))
		}
		provider = groq.New(cfg.GroqAPIKey, opts...)
	case config.ProviderOpenRouter:
		opts := []openrouter.Option{
			openrouter.WithSiteURL(cfg.OpenRouterSiteURL),
			openrouter.WithSiteName(cfg.OpenRouterSiteName),
		}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, openrouter.WithBaseURL(cfg.LLMBaseURL))
		}
		provider = openrouter.New(cfg.OpenRouterAPIKey, opts...)
	default:
		var opts []openai.Option
		if cfg.LLMBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
		}
		provider = openai.New(cfg.OpenAIAPIKey, opts...)
	}

	sumOpts := []summary.Option{summary.WithLogger(logger)}
	if cfg.LLMModel != "" {
		sumOpts = append(sumOpts, summary.WithModel(cfg.LLMModel))
	}
	return summary.New(provider, sumOpts...)
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildRuntime == nil {
		return errors.New("missing buildRuntime dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := deps.buildRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	httpSrv := buildHTTPServer(cfg, rt.server.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"telephony", cfg.TwilioConfigured())

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	rt.lifecycle.SetDraining(true)
	rt.hub.NotifyDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !rt.hub.Close(waitCtx) {
		logger.Warn("event clients did not detach before the grace period")
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "warmline-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "warmline-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
