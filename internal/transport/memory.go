package transport

import (
	"context"
	"iter"
	"sync"

	"github.com/context-cleaner/supervise-go/internal/errors"
	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// MemoryTransport implements Transport with two in-process FIFOs for unit
// testing. Sent requests are queued for inspection; responses and stream
// chunks queued by the test are handed back in order.
//
// Unlike the real transports, receive operations never block: calling
// ReceiveResponse with nothing queued fails with a transport error. This is
// a deliberate divergence to keep tests deterministic.
//
// Requests and responses round-trip through the canonical encoding so the
// memory transport exercises exactly the bytes a socket transport would
// carry.
type MemoryTransport struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	requests  [][]byte
	responses [][]byte
	chunks    [][]byte
}

// Compile-time verification that MemoryTransport implements Transport.
var _ Transport = (*MemoryTransport)(nil)

// NewMemoryTransport creates an unconnected in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

// Connect marks the transport connected.
func (t *MemoryTransport) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &errors.TransportError{Op: "connect", Endpoint: "memory", Err: errors.ErrClosed}
	}

	t.connected = true

	return nil
}

// Close marks the transport closed. Safe to call multiple times; every
// operation afterwards fails.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connected = false
	t.closed = true

	return nil
}

// SendRequest encodes req and appends it to the request FIFO. Sending
// before Connect fails with a transport error.
func (t *MemoryTransport) SendRequest(_ context.Context, req *protocol.Request) error {
	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ready("send"); err != nil {
		return err
	}

	t.requests = append(t.requests, payload)

	return nil
}

// ReceiveResponse pops the next queued response, failing fast when the
// queue is empty.
func (t *MemoryTransport) ReceiveResponse(_ context.Context) (*protocol.Response, error) {
	t.mu.Lock()

	if err := t.ready("receive"); err != nil {
		t.mu.Unlock()
		return nil, err
	}

	if len(t.responses) == 0 {
		t.mu.Unlock()
		return nil, &errors.TransportError{Op: "receive", Endpoint: "memory", Err: errors.ErrNoQueuedResponse}
	}

	payload := t.responses[0]
	t.responses = t.responses[1:]
	t.mu.Unlock()

	return protocol.DecodeResponse(payload)
}

// ReceiveStream yields queued chunks in order, stopping at the final chunk.
// An empty chunk queue fails fast like ReceiveResponse.
func (t *MemoryTransport) ReceiveStream(_ context.Context) iter.Seq2[*protocol.StreamChunk, error] {
	return func(yield func(*protocol.StreamChunk, error) bool) {
		for {
			t.mu.Lock()

			if err := t.ready("receive-stream"); err != nil {
				t.mu.Unlock()
				yield(nil, err)

				return
			}

			if len(t.chunks) == 0 {
				t.mu.Unlock()
				yield(nil, &errors.TransportError{Op: "receive-stream", Endpoint: "memory", Err: errors.ErrNoQueuedChunk})

				return
			}

			payload := t.chunks[0]
			t.chunks = t.chunks[1:]
			t.mu.Unlock()

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

// QueueResponse appends a response for a later ReceiveResponse.
func (t *MemoryTransport) QueueResponse(resp *protocol.Response) error {
	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.responses = append(t.responses, payload)

	return nil
}

// QueueStreamChunk appends a chunk for a later ReceiveStream.
func (t *MemoryTransport) QueueStreamChunk(chunk *protocol.StreamChunk) error {
	payload, err := protocol.EncodeStreamChunk(chunk)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.chunks = append(t.chunks, payload)

	return nil
}

// SentRequests decodes and returns every request sent so far, in order.
func (t *MemoryTransport) SentRequests() ([]*protocol.Request, error) {
	t.mu.Lock()
	payloads := make([][]byte, len(t.requests))
	copy(payloads, t.requests)
	t.mu.Unlock()

	requests := make([]*protocol.Request, 0, len(payloads))

	for _, payload := range payloads {
		req, err := protocol.DecodeRequest(payload)
		if err != nil {
			return nil, err
		}

		requests = append(requests, req)
	}

	return requests, nil
}

// ready reports whether the transport can carry traffic; callers hold mu.
func (t *MemoryTransport) ready(op string) error {
	if t.closed {
		return &errors.TransportError{Op: op, Endpoint: "memory", Err: errors.ErrClosed}
	}

	if !t.connected {
		return &errors.TransportError{Op: op, Endpoint: "memory", Err: errors.ErrNotConnected}
	}

	return nil
}
