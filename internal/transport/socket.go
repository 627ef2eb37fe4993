package transport

import (
	"context"
	"iter"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/context-cleaner/supervise-go/internal/errors"
	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// SocketTransport implements Transport over a stream-oriented local domain
// socket at a filesystem path. This is the default transport on POSIX
// platforms.
type SocketTransport struct {
	log      *slog.Logger
	endpoint string

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Compile-time verification that SocketTransport implements Transport.
var _ Transport = (*SocketTransport)(nil)

// NewSocketTransport creates a transport dialing the socket at endpoint.
// The connection is not opened until Connect.
func NewSocketTransport(log *slog.Logger, endpoint string) *SocketTransport {
	return &SocketTransport{
		log:      log.With("component", "socket_transport"),
		endpoint: endpoint,
	}
}

// Connect dials the domain socket.
func (t *SocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &errors.TransportError{Op: "connect", Endpoint: t.endpoint, Err: errors.ErrClosed}
	}

	if t.conn != nil {
		return &errors.TransportError{Op: "connect", Endpoint: t.endpoint, Err: errors.ErrAlreadyConnected}
	}

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "unix", t.endpoint)
	if err != nil {
		return &errors.TransportError{Op: "connect", Endpoint: t.endpoint, Err: err}
	}

	t.log.Debug("connected", "endpoint", t.endpoint)
	t.conn = conn

	return nil
}

// Close closes the socket. Safe to call multiple times.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return &errors.TransportError{Op: "close", Endpoint: t.endpoint, Err: err}
	}

	return nil
}

// SendRequest writes one framed request.
func (t *SocketTransport) SendRequest(ctx context.Context, req *protocol.Request) error {
	conn, err := t.connection("send")
	if err != nil {
		return err
	}

	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}

	applyDeadline(ctx, conn)

	if err := WriteFrame(conn, payload); err != nil {
		return &errors.TransportError{Op: "send", Endpoint: t.endpoint, Err: err}
	}

	return nil
}

// ReceiveResponse blocks until one full frame arrives, then decodes it.
func (t *SocketTransport) ReceiveResponse(ctx context.Context) (*protocol.Response, error) {
	conn, err := t.connection("receive")
	if err != nil {
		return nil, err
	}

	applyDeadline(ctx, conn)

	payload, err := ReadFrame(conn)
	if err != nil {
		return nil, &errors.TransportError{Op: "receive", Endpoint: t.endpoint, Err: err}
	}

	return protocol.DecodeResponse(payload)
}

// ReceiveStream yields chunks until the final chunk or an error.
func (t *SocketTransport) ReceiveStream(ctx context.Context) iter.Seq2[*protocol.StreamChunk, error] {
	return func(yield func(*protocol.StreamChunk, error) bool) {
		conn, err := t.connection("receive-stream")
		if err != nil {
			yield(nil, err)
			return
		}

		for {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}

			applyDeadline(ctx, conn)

			payload, err := ReadFrame(conn)
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

func (t *SocketTransport) connection(op string) (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, &errors.TransportError{Op: op, Endpoint: t.endpoint, Err: errors.ErrClosed}
	}

	if t.conn == nil {
		return nil, &errors.TransportError{Op: op, Endpoint: t.endpoint, Err: errors.ErrNotConnected}
	}

	return t.conn, nil
}

// applyDeadline maps a context deadline onto the connection, or clears the
// deadline when the context has none.
func applyDeadline(ctx context.Context, conn net.Conn) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}
}
