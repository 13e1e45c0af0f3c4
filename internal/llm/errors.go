package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// BackendErrorKind classifies a backend transport failure.
type BackendErrorKind int

const (
	ErrKindTimeout BackendErrorKind = iota + 1
	ErrKindConnectFailed
	ErrKindHTTPStatus
)

func (k BackendErrorKind) String() string {
	switch k {
	case ErrKindTimeout:
		return "timeout"
	case ErrKindConnectFailed:
		return "connect_failed"
	case ErrKindHTTPStatus:
		return "http_status"
	default:
		return "unknown"
	}
}

// BackendError is the only error type adapters return for transport and
// protocol failures. Status is set for ErrKindHTTPStatus.
type BackendError struct {
	Backend string
	Kind    BackendErrorKind
	Status  int
	Detail  string
}

func (e *BackendError) Error() string {
	if e.Kind == ErrKindHTTPStatus {
		return fmt.Sprintf("%s backend: status %d: %s", e.Backend, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s backend: %s: %s", e.Backend, e.Kind, e.Detail)
}

// classifyTransport maps an outbound request error to a BackendError.
func classifyTransport(backend string, err error) *BackendError {
	kind := ErrKindConnectFailed
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrKindTimeout
	case errors.As(err, &nerr) && nerr.Timeout():
		kind = ErrKindTimeout
	}
	return &BackendError{Backend: backend, Kind: kind, Detail: err.Error()}
}

func statusError(backend string, status int, body []byte) *BackendError {
	return &BackendError{Backend: backend, Kind: ErrKindHTTPStatus, Status: status, Detail: string(body)}
}
