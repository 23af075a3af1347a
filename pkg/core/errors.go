package core

import (
	"errors"
	"fmt"
)

// Error is the classified failure type returned by every orchestration
// operation. Nothing crosses the collaborator boundary unclassified.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	// RetryAfter is the suggested wait in seconds after a rate limit or
	// overload rejection.
	RetryAfter *int  `json:"retry_after,omitempty"`
	Cause      error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrValidation covers malformed or missing identifiers and roles.
	ErrValidation ErrorType = "validation_error"
	// ErrNotFound covers unknown sessions, agents and transfer records.
	ErrNotFound ErrorType = "not_found_error"
	// ErrConflict covers duplicate ids, unavailable agents and overlapping
	// operations.
	ErrConflict ErrorType = "conflict_error"
	// ErrStateViolation covers operations that are illegal for the current
	// agent or session state.
	ErrStateViolation ErrorType = "state_violation_error"
	// ErrUpstream covers room provider, summarizer and telephony failures.
	ErrUpstream ErrorType = "upstream_failure"
	// ErrRateLimit covers requests rejected by the gateway's rate limiter.
	ErrRateLimit ErrorType = "rate_limit_error"
	// ErrInternal covers unclassified failures surfaced at the transport.
	ErrInternal ErrorType = "internal_error"
)

// Well-known error codes carried on Error.Code.
const (
	CodeNoAgentAvailable   = "no_agent_available"
	CodeRoomCreateFailed   = "room_create_failed"
	CodeSummaryFailed      = "summary_failed"
	CodeExplainFailed      = "explain_failed"
	CodeTokenIssueFailed   = "token_issue_failed"
	CodeDuplicateIdentity  = "duplicate_identity"
	CodeSessionIDCollision = "session_id_collision"
	CodePhaseInProgress    = "phase_in_progress"
	CodeUpstreamTimeout    = "upstream_timeout"
)

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
	}
}

// NewValidationErrorWithParam creates a validation error naming the offending
// parameter.
func NewValidationErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
		Param:   param,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *Error {
	return &Error{
		Type:    ErrConflict,
		Message: message,
	}
}

// NewConflictErrorCode creates a conflict error with a well-known code.
func NewConflictErrorCode(message, code string) *Error {
	return &Error{
		Type:    ErrConflict,
		Message: message,
		Code:    code,
	}
}

// NewStateViolationError creates a state violation error.
func NewStateViolationError(message string) *Error {
	return &Error{
		Type:    ErrStateViolation,
		Message: message,
	}
}

// NewUpstreamError creates an upstream failure naming the collaborator that
// failed. The cause is retained for unwrapping.
func NewUpstreamError(collaborator string, cause error) *Error {
	return &Error{
		Type:    ErrUpstream,
		Message: fmt.Sprintf("%s: %v", collaborator, cause),
		Cause:   cause,
	}
}

// NewUpstreamErrorCode creates an upstream failure with a well-known code.
func NewUpstreamErrorCode(collaborator string, code string, cause error) *Error {
	return &Error{
		Type:    ErrUpstream,
		Message: fmt.Sprintf("%s: %v", collaborator, cause),
		Code:    code,
		Cause:   cause,
	}
}

// IsRetryable reports whether the operation may be retried by the caller.
// The orchestrator itself never retries; this is a hint for the transport.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrUpstream || e.Type == ErrRateLimit
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError extracts a classified *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// TypeOf returns the classification of err, or an empty type when err carries
// no classification.
func TypeOf(err error) ErrorType {
	if ce, ok := AsError(err); ok {
		return ce.Type
	}
	return ""
}
