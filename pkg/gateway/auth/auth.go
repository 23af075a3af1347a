// Package auth carries the authenticated caller through the request
// context. The middleware resolves the bearer key; downstream layers (rate
// limiting, logging) read the principal without re-parsing headers.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// Principal identifies an authenticated API caller.
type Principal struct {
	// APIKey is the raw presented key. It must not be logged; derive a
	// hashed identifier for maps and telemetry.
	APIKey string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseBearer extracts the token from an Authorization: Bearer header.
func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
