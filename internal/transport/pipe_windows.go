//go:build windows

package transport

import (
	"context"
	"iter"
	"log/slog"
	"os"
	"sync"

	"github.com/context-cleaner/supervise-go/internal/errors"
	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// PipeTransport implements Transport over a Windows named pipe. Framing and
// blocking semantics are identical to the socket transport; only the channel
// differs.
type PipeTransport struct {
	log      *slog.Logger
	endpoint string

	mu     sync.Mutex
	pipe   *os.File
	closed bool
}

// Compile-time verification that PipeTransport implements Transport.
var _ Transport = (*PipeTransport)(nil)

// NewPipeTransport creates a transport for the named pipe at endpoint
// (e.g. `\\.\pipe\context-cleaner-supervisor`).
func NewPipeTransport(log *slog.Logger, endpoint string) *PipeTransport {
	return &PipeTransport{
		log:      log.With("component", "pipe_transport"),
		endpoint: endpoint,
	}
}

// Connect opens the pipe for duplex I/O.
func (t *PipeTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &errors.TransportError{Op: "connect", Endpoint: t.endpoint, Err: errors.ErrClosed}
	}

	if t.pipe != nil {
		return &errors.TransportError{Op: "connect", Endpoint: t.endpoint, Err: errors.ErrAlreadyConnected}
	}

	if err := ctx.Err(); err != nil {
		return &errors.TransportError{Op: "connect", Endpoint: t.endpoint, Err: err}
	}

	pipe, err := os.OpenFile(t.endpoint, os.O_RDWR, 0)
	if err != nil {
		return &errors.TransportError{Op: "connect", Endpoint: t.endpoint, Err: err}
	}

	t.log.Debug("connected", "endpoint", t.endpoint)
	t.pipe = pipe

	return nil
}

// Close closes the pipe. Safe to call multiple times.
func (t *PipeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	if t.pipe == nil {
		return nil
	}

	err := t.pipe.Close()
	t.pipe = nil

	if err != nil {
		return &errors.TransportError{Op: "close", Endpoint: t.endpoint, Err: err}
	}

	return nil
}

// SendRequest writes one framed request.
func (t *PipeTransport) SendRequest(ctx context.Context, req *protocol.Request) error {
	pipe, err := t.connection("send")
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return &errors.TransportError{Op: "send", Endpoint: t.endpoint, Err: err}
	}

	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}

	if err := WriteFrame(pipe, payload); err != nil {
		return &errors.TransportError{Op: "send", Endpoint: t.endpoint, Err: err}
	}

	return nil
}

// ReceiveResponse blocks until one full frame arrives, then decodes it.
func (t *PipeTransport) ReceiveResponse(ctx context.Context) (*protocol.Response, error) {
	pipe, err := t.connection("receive")
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, &errors.TransportError{Op: "receive", Endpoint: t.endpoint, Err: err}
	}

	payload, err := ReadFrame(pipe)
	if err != nil {
		return nil, &errors.TransportError{Op: "receive", Endpoint: t.endpoint, Err: err}
	}

	return protocol.DecodeResponse(payload)
}

// ReceiveStream yields chunks until the final chunk or an error.
func (t *PipeTransport) ReceiveStream(ctx context.Context) iter.Seq2[*protocol.StreamChunk, error] {
	return func(yield func(*protocol.StreamChunk, error) bool) {
		pipe, err := t.connection("receive-stream")
		if err != nil {
			yield(nil, err)
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			payload, err := ReadFrame(pipe)
			if err != nil {
				yield(nil, &errors.TransportError{Op: "receive-stream", Endpoint: t.endpoint, Err: err})
				return
			}

			chunk, err := protocol.DecodeStreamChunk(payload)
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(chunk, nil) {
				return
			}

			if chunk.FinalChunk {
				return
			}
		}
	}
}

func (t *PipeTransport) connection(op string) (*os.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, &errors.TransportError{Op: op, Endpoint: t.endpoint, Err: errors.ErrClosed}
	}

	if t.pipe == nil {
		return nil, &errors.TransportError{Op: op, Endpoint: t.endpoint, Err: errors.ErrNotConnected}
	}

	return t.pipe, nil
}
