//go:build !windows

package transport

import (
	"context"
	stderrors "errors"
	"iter"
	"log/slog"

	"github.com/context-cleaner/supervise-go/internal/errors"
	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// NewPipeTransport is only available on Windows; POSIX platforms use
// NewSocketTransport. The stub keeps callers portable without build tags of
// their own: every operation fails with a transport error.
func NewPipeTransport(_ *slog.Logger, endpoint string) Transport {
	return &unsupportedTransport{endpoint: endpoint}
}

type unsupportedTransport struct {
	endpoint string
}

var _ Transport = (*unsupportedTransport)(nil)

func (t *unsupportedTransport) Connect(context.Context) error { return t.err("connect") }

func (t *unsupportedTransport) Close() error { return nil }

func (t *unsupportedTransport) SendRequest(context.Context, *protocol.Request) error {
	return t.err("send")
}

func (t *unsupportedTransport) ReceiveResponse(context.Context) (*protocol.Response, error) {
	return nil, t.err("receive")
}

func (t *unsupportedTransport) ReceiveStream(context.Context) iter.Seq2[*protocol.StreamChunk, error] {
	return func(yield func(*protocol.StreamChunk, error) bool) {
		yield(nil, t.err("receive-stream"))
	}
}

func (t *unsupportedTransport) err(op string) error {
	return &errors.TransportError{
		Op:       op,
		Endpoint: t.endpoint,
		Err:      stderrors.New("named pipes unsupported on this platform"),
	}
}
