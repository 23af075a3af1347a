package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"
)

// Error represents an API error from the provider.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Status  int       `json:"status,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai: %s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("openai: %s: %s", e.Type, e.Message)
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

// wireError is the error envelope the API returns.
type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// parseError parses an error response.
func (p *Provider) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	out := &Error{
		Type:   typeForStatus(resp.StatusCode),
		Status: resp.StatusCode,
	}

	var we wireError
	if err := json.Unmarshal(body, &we); err != nil || we.Error.Message == "" {
		out.Message = string(body)
		if out.Message == "" {
			out.Message = resp.Status
		}
		return out
	}

	out.Message = we.Error.Message
	if we.Error.Type != "" {
		out.Type = mapWireType(we.Error.Type, out.Type)
	}
	if code, ok := we.Error.Code.(string); ok {
		out.Code = code
	}
	return out
}

func typeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuthentication
	case status == http.StatusForbidden:
		return ErrPermission
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status >= 500:
		return ErrAPI
	case status >= 400:
		return ErrInvalidRequest
	default:
		return ErrProvider
	}
}

func mapWireType(wire string, fallback ErrorType) ErrorType {
	switch wire {
	case "invalid_request_error":
		return ErrInvalidRequest
	case "authentication_error":
		return ErrAuthentication
	case "permission_error":
		return ErrPermission
	case "not_found_error":
		return ErrNotFound
	case "rate_limit_error", "tokens", "requests":
		return ErrRateLimit
	case "api_error", "server_error":
		return ErrAPI
	case "overloaded_error":
		return ErrOverloaded
	default:
		return fallback
	}
}
