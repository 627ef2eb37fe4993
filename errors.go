package supervise

import "github.com/context-cleaner/supervise-go/internal/errors"

// Re-export error types from internal package

// TransportError indicates an I/O failure on the local channel. Transport
// errors are local to the caller and never arrive as a protocol Response.
type TransportError = errors.TransportError

// ProtocolError indicates a message could not be encoded or decoded.
type ProtocolError = errors.ProtocolError

// SuperviseError is the base interface for all errors this module produces.
type SuperviseError = errors.SuperviseError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the transport is not connected.
	ErrNotConnected = errors.ErrNotConnected

	// ErrAlreadyConnected indicates the transport is already connected.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrClosed indicates the transport has been closed and cannot be reused.
	ErrClosed = errors.ErrClosed

	// ErrNoQueuedResponse indicates the debug transport had no response queued.
	ErrNoQueuedResponse = errors.ErrNoQueuedResponse

	// ErrFrameTooLarge indicates a frame above the maximum frame size.
	ErrFrameTooLarge = errors.ErrFrameTooLarge
)
