// Package config loads gateway settings from the environment. Gateway knobs
// carry the WARMLINE_ prefix; collaborator credentials keep their
// conventional unprefixed names (LIVEKIT_URL, OPENAI_API_KEY, TWILIO_*) so
// shared deployment env files keep working.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

// LLM provider selection values.
const (
	ProviderOpenAI     = "openai"
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	MaxBodyBytes int64

	// Rate limiting. RPS and burst must both be set for the token bucket
	// to apply; everything zero disables limiting.
	LimitRPS           float64
	LimitBurst         int
	LimitMaxConcurrent int

	// TrustProxyHeaders admits client IPs from CF-Connecting-IP,
	// X-Real-IP and X-Forwarded-For. Only enable behind a proxy that
	// strips them from client traffic.
	TrustProxyHeaders bool

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// UpstreamTimeout bounds every collaborator call made by the
	// orchestrator (room provider, summarizer, telephony).
	UpstreamTimeout time.Duration

	MetricsNamespace string

	// LiveKit room provider. Required: the gateway serves nothing without
	// rooms.
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	LiveKitTokenTTL  time.Duration

	// LLM summarizer. Keys are optional; an unconfigured provider degrades
	// to the protocol's fallbacks (placeholder summary, failed explanation).
	LLMProvider        string
	LLMModel           string // empty => provider default
	LLMBaseURL         string // empty => provider default
	OpenAIAPIKey       string
	GroqAPIKey         string
	OpenRouterAPIKey   string
	OpenRouterSiteURL  string
	OpenRouterSiteName string

	// Twilio telephony bridge. Optional; all four set together or none.
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	TwilioCallbackURL string

	// RosterPath names a YAML agent roster. Empty => built-in defaults.
	RosterPath string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("WARMLINE_ADDR", ":8080"),
		AuthMode:            AuthMode(envOr("WARMLINE_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:             make(map[string]struct{}),
		CORSAllowedOrigins:  make(map[string]struct{}),
		MaxBodyBytes:        envInt64Or("WARMLINE_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LimitRPS:            envFloatOr("WARMLINE_LIMIT_RPS", 0),
		LimitBurst:          int(envInt64Or("WARMLINE_LIMIT_BURST", 0)),
		LimitMaxConcurrent:  int(envInt64Or("WARMLINE_LIMIT_MAX_CONCURRENT", 0)),
		TrustProxyHeaders:   envBoolOr("WARMLINE_TRUST_PROXY_HEADERS", false),
		ReadHeaderTimeout:   envDurationOr("WARMLINE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("WARMLINE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("WARMLINE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamTimeout:     envDurationOr("WARMLINE_UPSTREAM_TIMEOUT", 15*time.Second),
		MetricsNamespace:    envOr("WARMLINE_METRICS_NAMESPACE", "warmline"),

		LiveKitURL:       strings.TrimSpace(os.Getenv("LIVEKIT_URL")),
		LiveKitAPIKey:    strings.TrimSpace(os.Getenv("LIVEKIT_API_KEY")),
		LiveKitAPISecret: strings.TrimSpace(os.Getenv("LIVEKIT_API_SECRET")),
		LiveKitTokenTTL:  envDurationOr("LIVEKIT_TOKEN_TTL", 6*time.Hour),

		LLMProvider:        strings.ToLower(envOr("LLM_PROVIDER", ProviderOpenAI)),
		LLMModel:           strings.TrimSpace(os.Getenv("LLM_MODEL")),
		LLMBaseURL:         strings.TrimSpace(os.Getenv("LLM_BASE_URL")),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GroqAPIKey:         strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		OpenRouterAPIKey:   strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterSiteURL:  envOr("OPENROUTER_SITE_URL", "https://github.com/warm-transfer-livekit"),
		OpenRouterSiteName: envOr("OPENROUTER_SITE_NAME", "Warm Transfer LiveKit Application"),

		TwilioAccountSID:  strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:   strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		TwilioFromNumber:  strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER")),
		TwilioCallbackURL: strings.TrimRight(strings.TrimSpace(os.Getenv("TWILIO_CALLBACK_URL")), "/"),

		RosterPath: strings.TrimSpace(os.Getenv("AGENT_ROSTER_FILE")),
	}

	for _, key := range splitCSV(os.Getenv("WARMLINE_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, origin := range splitCSV(os.Getenv("WARMLINE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return fmt.Errorf("WARMLINE_AUTH_MODE must be one of required|optional|disabled")
	}
	if c.AuthMode == AuthModeRequired && len(c.APIKeys) == 0 {
		return fmt.Errorf("WARMLINE_API_KEYS must be set when WARMLINE_AUTH_MODE=required")
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("WARMLINE_MAX_BODY_BYTES must be > 0")
	}
	if c.LimitRPS < 0 || c.LimitBurst < 0 || c.LimitMaxConcurrent < 0 {
		return fmt.Errorf("WARMLINE_LIMIT_RPS, WARMLINE_LIMIT_BURST and WARMLINE_LIMIT_MAX_CONCURRENT must be >= 0")
	}
	if c.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("WARMLINE_READ_HEADER_TIMEOUT must be > 0")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("WARMLINE_READ_TIMEOUT must be > 0")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("WARMLINE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("WARMLINE_UPSTREAM_TIMEOUT must be > 0")
	}

	if c.LiveKitURL == "" || c.LiveKitAPIKey == "" || c.LiveKitAPISecret == "" {
		return fmt.Errorf("LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET must all be set")
	}
	if c.LiveKitTokenTTL <= 0 {
		return fmt.Errorf("LIVEKIT_TOKEN_TTL must be > 0")
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGroq, ProviderOpenRouter:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of openai|groq|openrouter")
	}

	twilioSet := 0
	for _, v := range []string{c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioFromNumber, c.TwilioCallbackURL} {
		if v != "" {
			twilioSet++
		}
	}
	if twilioSet != 0 && twilioSet != 4 {
		return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and TWILIO_CALLBACK_URL must be set together")
	}

	return nil
}

// LLMAPIKey returns the key for the selected provider.
func (c Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenRouter:
		return c.OpenRouterAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// LLMConfigured reports whether the selected provider has an API key.
func (c Config) LLMConfigured() bool {
	return c.LLMAPIKey() != ""
}

// TwilioConfigured reports whether the telephony bridge can be built.
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" &&
		c.TwilioFromNumber != "" && c.TwilioCallbackURL != ""
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloatOr(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
