package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error represents an HTTP or transport error with observability-friendly fields.
type Error struct {
	Method string
	URL    string

	// StatusCode is the HTTP status code. It is 0 when the request failed before receiving a response.
	StatusCode int

	// RequestID is extracted from the configured RequestID header (see RequestIDConfig).
	RequestID string

	// RawBody is a truncated copy of the response body (only for non-2xx responses).
	RawBody []byte

	// Cause is the underlying error (transport error, context cancellation, JSON decode error, etc).
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(" ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	} else {
		b.WriteString("request failed")
	}
	if e.RequestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(e.RequestID)
	}
	if e.Cause != nil && e.StatusCode == 0 {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

func IsHTTPStatus(err error, code int) bool {
	he, ok := AsError(err)
	return ok && he.StatusCode == code
}

// Class is a coarse failure category used to decide how loudly to report an error.
type Class int

const (
	ClassNone      Class = iota // no error
	ClassCanceled               // ctx canceled or deadline exceeded
	ClassTransport              // no response was received
	ClassClient                 // 4xx
	ClassServer                 // 5xx
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassCanceled:
		return "canceled"
	case ClassTransport:
		return "transport"
	case ClassClient:
		return "client"
	case ClassServer:
		return "server"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classify maps err onto a Class. Errors that are not *Error count as transport failures.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}
	he, ok := AsError(err)
	if !ok || he.StatusCode == 0 {
		return ClassTransport
	}
	switch {
	case he.StatusCode >= 500:
		return ClassServer
	case he.StatusCode >= 400:
		return ClassClient
	default:
		return ClassTransport
	}
}
