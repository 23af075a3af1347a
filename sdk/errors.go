package warmline

import (
	"fmt"
	"net/url"

	"github.com/warmline/warmline/pkg/core"
)

// Error is the classified error payload returned by the gateway.
type Error = core.Error

// Error classifications, re-exported so callers need not import core.
const (
	ErrValidation     = core.ErrValidation
	ErrNotFound       = core.ErrNotFound
	ErrConflict       = core.ErrConflict
	ErrStateViolation = core.ErrStateViolation
	ErrUpstream       = core.ErrUpstream
	ErrRateLimit      = core.ErrRateLimit
	ErrInternal       = core.ErrInternal
)

// TransportError represents HTTP transport-level failures (DNS, timeouts,
// connection reset, TLS handshake) while talking to the gateway.
//
// Use errors.As to distinguish transport failures from classified gateway
// errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
