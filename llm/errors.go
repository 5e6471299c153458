package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	ErrKindAuth       ErrorKind = "auth"
	ErrKindRateLimit  ErrorKind = "rate_limit"
	ErrKindBadRequest ErrorKind = "bad_request"
	ErrKindNotFound   ErrorKind = "not_found"
	ErrKindServer     ErrorKind = "server"
	ErrKindTimeout    ErrorKind = "timeout"
	ErrKindCanceled   ErrorKind = "canceled"
	ErrKindParse      ErrorKind = "parse"
	ErrKindUnknown    ErrorKind = "unknown"
)

// LLMError is a provider-agnostic error container.
type LLMError struct {
	Provider string
	Kind     ErrorKind

	HTTPStatus   int
	ProviderCode string
	Message      string

	// Raw is an optional raw error payload (e.g. the HTTP response body).
	Raw []byte

	Cause error
}

func (e *LLMError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.HTTPStatus != 0 {
		msg = fmt.Sprintf("http %d: %s", e.HTTPStatus, msg)
	}
	if e.ProviderCode != "" {
		msg += " (" + e.ProviderCode + ")"
	}
	if e.Provider != "" {
		return fmt.Sprintf("llm %s: %s", e.Provider, msg)
	}
	return fmt.Sprintf("llm: %s", msg)
}

func (e *LLMError) Unwrap() error { return e.Cause }

func AsLLMError(err error) (*LLMError, bool) {
	var e *LLMError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf classifies err; errors that are not *LLMError are classified from ctx errors only.
func KindOf(err error) ErrorKind {
	if e, ok := AsLLMError(err); ok {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrKindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrKindTimeout
	default:
		return ErrKindUnknown
	}
}

// KindFromStatus maps an HTTP status code onto an ErrorKind.
func KindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrKindAuth
	case http.StatusTooManyRequests:
		return ErrKindRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrKindBadRequest
	case http.StatusNotFound:
		return ErrKindNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrKindTimeout
	default:
		if status >= 500 {
			return ErrKindServer
		}
		return ErrKindUnknown
	}
}

// IsRateLimit reports whether err is a rate-limit rejection.
func IsRateLimit(err error) bool { return KindOf(err) == ErrKindRateLimit }

// IsAuth reports whether err is an authentication/authorization failure.
func IsAuth(err error) bool { return KindOf(err) == ErrKindAuth }
