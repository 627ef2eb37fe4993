package errors

import (
	"errors"
	"fmt"
)

// SuperviseError is the base interface for all errors this module produces.
type SuperviseError interface {
	error
	IsSuperviseError() bool
}

// Compile-time verification that all error types implement SuperviseError.
var (
	_ SuperviseError = (*TransportError)(nil)
	_ SuperviseError = (*ProtocolError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the transport is not connected.
	ErrNotConnected = errors.New("transport not connected")

	// ErrAlreadyConnected indicates the transport is already connected.
	ErrAlreadyConnected = errors.New("transport already connected")

	// ErrClosed indicates the transport has been closed and cannot be reused.
	ErrClosed = errors.New("transport closed")

	// ErrNoQueuedResponse indicates the in-memory transport has no response
	// queued. The debug transport fails fast here instead of blocking so
	// tests stay deterministic.
	ErrNoQueuedResponse = errors.New("no response queued")

	// ErrNoQueuedChunk indicates the in-memory transport has no stream
	// chunk queued.
	ErrNoQueuedChunk = errors.New("no stream chunk queued")

	// ErrFrameTooLarge indicates a frame declared a length above the
	// transport's maximum frame size.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// TransportError indicates an I/O failure on the local channel: connection
// refused, broken pipe, truncated frame, or misuse of the debug transport.
//
// Transport errors are always local to the caller and are never encoded as a
// protocol Response; callers must handle them separately from protocol-level
// error responses.
type TransportError struct {
	// Op is the operation that failed (e.g. "connect", "send", "receive").
	Op string

	// Endpoint is the endpoint involved, when known.
	Endpoint string

	Err error
}

func (e *TransportError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.Endpoint, e.Err)
	}

	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsSuperviseError implements SuperviseError.
func (e *TransportError) IsSuperviseError() bool { return true }

// ProtocolError indicates a message could not be encoded or decoded:
// malformed payload, a missing required field, or an unknown action.
type ProtocolError struct {
	// Reason describes what was wrong with the message.
	Reason string

	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsSuperviseError implements SuperviseError.
func (e *ProtocolError) IsSuperviseError() bool { return true }
