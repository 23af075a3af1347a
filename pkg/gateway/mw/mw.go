// Package mw holds the gateway middleware chain: request ids, access
// logging, panic recovery, CORS, bearer auth and HTTP metrics.
package mw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/gateway/auth"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/metrics"
)

type ctxKeyRequestID struct{}

func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyRequestID{}).(string)
	return id, ok && id != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = "req_" + randHex(10)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// Auth enforces gateway bearer keys. Health probes, metrics scrapes and the
// Twilio webhook callbacks stay reachable without a key; WebSocket upgrades
// authenticate in-band because browsers cannot set Authorization on a WS
// dial.
func Auth(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, _ := RequestIDFrom(r.Context())

		switch cfg.AuthMode {
		case config.AuthModeDisabled:
			next.ServeHTTP(w, r)
			return
		case config.AuthModeOptional, config.AuthModeRequired:
		default:
			writeJSONError(w, http.StatusInternalServerError, &core.Error{
				Type:      core.ErrInternal,
				Message:   "invalid auth_mode",
				RequestID: reqID,
			})
			return
		}

		if authExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.ParseBearer(r)
		if !ok {
			if cfg.AuthMode == config.AuthModeRequired {
				writeJSONError(w, http.StatusUnauthorized, &core.Error{
					Type:      core.ErrValidation,
					Message:   "missing bearer token",
					Param:     "Authorization",
					RequestID: reqID,
				})
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := cfg.APIKeys[token]; !ok {
			writeJSONError(w, http.StatusUnauthorized, &core.Error{
				Type:      core.ErrValidation,
				Message:   "invalid api key",
				RequestID: reqID,
			})
			return
		}
		ctx := auth.WithPrincipal(r.Context(), &auth.Principal{APIKey: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authExempt(r *http.Request) bool {
	p := r.URL.Path
	if p == "/health" || p == "/metrics" {
		return true
	}
	// Twilio calls these back with its own request signing, not our keys.
	if strings.HasPrefix(p, "/api/twilio/connect/") || p == "/api/twilio/status" {
		return true
	}
	if isWebSocketUpgrade(r) {
		return true
	}
	return false
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

func Recover(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if logger != nil {
					logger.Error("panic", "panic", v, "path", r.URL.Path)
				}
				reqID, _ := RequestIDFrom(r.Context())
				writeJSONError(w, http.StatusInternalServerError, &core.Error{
					Type:      core.ErrInternal,
					Message:   "internal error",
					RequestID: reqID,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func AccessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw, dw := wrapStatusWriter(w)
		next.ServeHTTP(dw, r)
		if logger == nil {
			return
		}
		reqID, _ := RequestIDFrom(r.Context())
		logger.Info("request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Metrics records request counts and latency on the gateway registry.
func Metrics(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw, dw := wrapStatusWriter(w)
		next.ServeHTTP(dw, r)
		m.RecordHTTPRequest(r.Method, metrics.NormalizeEndpoint(r.URL.Path), strconv.Itoa(sw.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// wrapStatusWriter returns a status recorder plus the writer to hand
// downstream. The downstream writer advertises Flusher/Hijacker only when
// the wrapped writer supports them; the WebSocket upgrade needs Hijacker to
// survive the chain.
func wrapStatusWriter(w http.ResponseWriter) (*statusWriter, http.ResponseWriter) {
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	fl, canFlush := w.(http.Flusher)
	hj, canHijack := w.(http.Hijacker)
	switch {
	case canFlush && canHijack:
		return sw, struct {
			http.ResponseWriter
			http.Flusher
			http.Hijacker
		}{sw, fl, hj}
	case canFlush:
		return sw, struct {
			http.ResponseWriter
			http.Flusher
		}{sw, fl}
	case canHijack:
		return sw, struct {
			http.ResponseWriter
			http.Hijacker
		}{sw, hj}
	default:
		return sw, sw
	}
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand should not fail in practice; fall back to time-based entropy.
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000000000")))
	}
	return hex.EncodeToString(b)
}

type errorEnvelope struct {
	Error *core.Error `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, err *core.Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: err})
}
