package principal

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/warmline/warmline/pkg/gateway/auth"
	"github.com/warmline/warmline/pkg/gateway/config"
)

func TestResolve_PrefersAuthenticatedKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/calls", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{APIKey: "secret"}))

	got := Resolve(req, config.Config{})
	if got.Kind != KindAPIKey {
		t.Fatalf("kind = %s, want api_key", got.Kind)
	}
	if !strings.HasPrefix(got.Key, "k_") {
		t.Errorf("key = %q, want hashed k_ prefix", got.Key)
	}
	if got.Key == "secret" {
		t.Error("key must not be the raw api key")
	}
}

func TestResolve_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/calls", nil)
	req.RemoteAddr = "203.0.113.7:52100"

	got := Resolve(req, config.Config{})
	if got.Kind != KindIP {
		t.Fatalf("kind = %s, want ip", got.Kind)
	}
	if got.Raw != "203.0.113.7" {
		t.Errorf("raw = %q, want 203.0.113.7", got.Raw)
	}
}

func TestResolve_ProxyHeadersRequireTrust(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/calls", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	untrusted := Resolve(req, config.Config{})
	if untrusted.Raw != "10.0.0.1" {
		t.Errorf("untrusted raw = %q, want 10.0.0.1", untrusted.Raw)
	}

	trusted := Resolve(req, config.Config{TrustProxyHeaders: true})
	if trusted.Raw != "203.0.113.7" {
		t.Errorf("trusted raw = %q, want left-most forwarded ip", trusted.Raw)
	}
}

func TestResolve_AnonymousWithoutAddress(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/calls", nil)
	req.RemoteAddr = ""

	got := Resolve(req, config.Config{})
	if got.Kind != KindAnon || got.Key != "anonymous" {
		t.Fatalf("resolved = %+v, want anonymous", got)
	}
}
