package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a backend failure
type Kind int

const (
	// KindUnavailable is a transient transport failure or 5xx reply
	KindUnavailable Kind = iota + 1
	// KindRejected is a permanent, backend-declared error (4xx, error status)
	KindRejected
	// KindMalformed is a reply that violates the wire contract
	KindMalformed
	// KindTimeout is a call that exceeded its bounded wait
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "backend_unavailable"
	case KindRejected:
		return "backend_rejected"
	case KindMalformed:
		return "malformed_backend_response"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrRejected    = errors.New("backend rejected request")
	ErrMalformed   = errors.New("malformed backend response")
	ErrTimeout     = errors.New("backend timeout")
)

// Error is a failure of one backend call
type Error struct {
	Backend    string
	Kind       Kind
	StatusCode int // HTTP status when the backend replied, 0 otherwise
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Backend, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrMalformed:
		return e.Kind == KindMalformed
	case ErrTimeout:
		return e.Kind == KindTimeout
	}
	return false
}

// Transient reports whether retrying the call may succeed
func (e *Error) Transient() bool {
	return e.Kind == KindUnavailable || e.Kind == KindTimeout
}

// IsTransient reports whether err is a retryable backend error
func IsTransient(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Transient()
}

func newError(backend string, kind Kind, err error) *Error {
	return &Error{Backend: backend, Kind: kind, Err: err}
}

// Malformed builds a contract-violation error for the named backend
func Malformed(backend string, err error) *Error {
	return newError(backend, KindMalformed, err)
}

// Rejected builds a permanent error for the named backend
func Rejected(backend string, err error) *Error {
	return newError(backend, KindRejected, err)
}

// classifyTransport maps an error from http.Client.Do or a body read.
// ok is false when the caller's own context was cancelled; that is not a
// backend failure and must not be retried.
func classifyTransport(parent context.Context, backend string, err error) (*Error, bool) {
	if errors.Is(parent.Err(), context.Canceled) {
		return nil, false
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(backend, KindTimeout, err), true
	}
	return newError(backend, KindUnavailable, err), true
}

// classifyStatus maps a non-2xx HTTP reply
func classifyStatus(backend string, status int, detail string) *Error {
	var kind Kind
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status == http.StatusTooManyRequests || status >= 500:
		kind = KindUnavailable
	default:
		kind = KindRejected
	}
	var err error
	if detail != "" {
		err = errors.New(detail)
	}
	return &Error{Backend: backend, Kind: kind, StatusCode: status, Err: err}
}
