// Package apierror maps orchestration errors onto HTTP responses. Every
// failure a handler surfaces passes through FromError so the wire sees one
// envelope shape and one status mapping.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/warmline/warmline/pkg/core"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError classifies err and picks the response status. The request id is
// stamped onto the returned error so clients can correlate.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation reaching the transport unclassified.
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrUpstream,
			Message:   "request timeout",
			Code:      core.CodeUpstreamTimeout,
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrUpstream,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already classified.
	if coreErr, ok := core.AsError(err); ok && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, statusFor(coreErr)
	}

	// Unknown errors: do not leak details by default.
	return &core.Error{
		Type:      core.ErrInternal,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

func statusFor(e *core.Error) int {
	switch e.Type {
	case core.ErrValidation:
		return http.StatusBadRequest
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrConflict:
		// No-agent-available is transient capacity, not a caller mistake.
		if e.Code == core.CodeNoAgentAvailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusConflict
	case core.ErrStateViolation:
		return http.StatusConflict
	case core.ErrUpstream:
		if e.Code == core.CodeUpstreamTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
