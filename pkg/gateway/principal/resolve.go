// Package principal decides who a request belongs to for rate limiting:
// the authenticated API key when there is one, the client IP otherwise.
package principal

import (
	"net"
	"net/http"
	"strings"

	"github.com/warmline/warmline/pkg/gateway/auth"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/ratelimit"
)

type Kind string

const (
	KindAPIKey Kind = "api_key"
	KindIP     Kind = "ip"
	KindAnon   Kind = "anonymous"
)

type Resolved struct {
	Kind Kind
	// Raw is the resolved identifier (API key or IP). It must not be
	// logged.
	Raw string
	// Key is a hashed identifier suitable for in-memory maps.
	Key string
}

func Resolve(r *http.Request, cfg config.Config) Resolved {
	if r == nil {
		return Resolved{Kind: KindAnon, Key: "anonymous"}
	}

	if p, ok := auth.PrincipalFrom(r.Context()); ok && strings.TrimSpace(p.APIKey) != "" {
		return Resolved{
			Kind: KindAPIKey,
			Raw:  p.APIKey,
			Key:  ratelimit.PrincipalKeyFromAPIKey(p.APIKey),
		}
	}

	ip := resolveClientIP(r, cfg.TrustProxyHeaders)
	if ip == "" {
		return Resolved{Kind: KindAnon, Key: "anonymous"}
	}
	return Resolved{
		Kind: KindIP,
		Raw:  ip,
		Key:  ratelimit.PrincipalKeyFromIP(ip),
	}
}

func resolveClientIP(r *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		if raw := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); raw != "" {
			// XFF can be "client, proxy1, proxy2". Take the left-most.
			if ip := parseIP(strings.Split(raw, ",")[0]); ip != "" {
				return ip
			}
		}
	}

	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return parseIP(host)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// Some proxies include a port; accept "ip:port" as well.
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}

	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
