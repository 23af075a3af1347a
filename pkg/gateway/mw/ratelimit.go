package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/principal"
	"github.com/warmline/warmline/pkg/gateway/ratelimit"
)

// RateLimit applies the per-principal request budget. Authenticated callers
// are keyed by API key, unauthenticated ones by client IP, so one noisy
// caller cannot starve the rest. Runs inside Auth so the principal is
// already on the context.
func RateLimit(cfg config.Config, limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health probes and metrics scrapes must stay cheap and reliable.
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		p := principal.Resolve(r, cfg)
		dec := limiter.Acquire(p.Key, time.Now())
		if !dec.Allowed {
			reqID, _ := RequestIDFrom(r.Context())
			e := &core.Error{
				Type:      core.ErrRateLimit,
				Message:   "rate limit exceeded",
				RequestID: reqID,
			}
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
				v := dec.RetryAfter
				e.RetryAfter = &v
			}
			writeJSONError(w, http.StatusTooManyRequests, e)
			return
		}
		if dec.Permit != nil {
			defer dec.Permit.Release()
		}

		next.ServeHTTP(w, r)
	})
}
