package transport

import (
	"context"
	"iter"

	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// Transport is a duplex byte channel to the supervisor's endpoint carrying
// one framed protocol message per send or receive.
//
// Implement this to provide custom transports for testing or alternative
// local channels. This package ships a unix-socket transport, a Windows
// named-pipe transport, and an in-memory transport for tests.
//
// Transports perform no retries; any I/O failure surfaces as a
// *errors.TransportError and retry policy belongs to the caller. One logical
// request/response exchange occupies the channel at a time; concurrent
// callers each open their own transport.
type Transport interface {
	// Connect opens the channel. Calling any send or receive method before
	// Connect fails with a transport error.
	Connect(ctx context.Context) error

	// Close releases the channel. Safe to call multiple times; the
	// transport cannot be reused afterwards.
	Close() error

	// SendRequest writes one framed, encoded Request.
	SendRequest(ctx context.Context, req *protocol.Request) error

	// ReceiveResponse blocks until one full frame is read, then decodes it
	// as a Response.
	ReceiveResponse(ctx context.Context) (*protocol.Response, error)

	// ReceiveStream yields StreamChunks in arrival order until the chunk
	// with FinalChunk set, an error, or context cancellation. The final
	// chunk is yielded before the iterator stops.
	ReceiveStream(ctx context.Context) iter.Seq2[*protocol.StreamChunk, error]
}
