//go:build linux || darwin

package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/context-cleaner/supervise-go/internal/protocol"
	"github.com/context-cleaner/supervise-go/internal/transport"
)

func startListener(t *testing.T, orch Orchestrator, cfg Config, lcfg ListenerConfig) string {
	t.Helper()

	endpoint := filepath.Join(t.TempDir(), "supervisor.sock")

	sup := New(testLogger(), orch, cfg)
	sup.Start()

	ln, err := NewListener(testLogger(), sup, endpoint, lcfg)
	require.NoError(t, err)

	go func() { _ = ln.Serve(context.Background()) }()

	t.Cleanup(func() {
		_ = ln.Close()
		sup.Stop(context.Background())
	})

	return endpoint
}

func dial(t *testing.T, endpoint string) *transport.SocketTransport {
	t.Helper()

	st := transport.NewSocketTransport(testLogger(), endpoint)
	require.NoError(t, st.Connect(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func TestListener_PingRoundTrip(t *testing.T) {
	endpoint := startListener(t, &stubOrchestrator{}, Config{}, ListenerConfig{})
	st := dial(t, endpoint)

	ctx := context.Background()
	req := protocol.NewRequest(protocol.ActionPing)
	require.NoError(t, st.SendRequest(ctx, req))

	resp, err := st.ReceiveResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, resp.RequestID)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "pong", resp.Result["message"])
}

func TestListener_MultipleExchangesPerConnection(t *testing.T) {
	endpoint := startListener(t, &stubOrchestrator{status: map[string]any{"n": 1.0}}, Config{}, ListenerConfig{})
	st := dial(t, endpoint)

	ctx := context.Background()

	for range 3 {
		req := protocol.NewRequest(protocol.ActionStatus)
		require.NoError(t, st.SendRequest(ctx, req))

		resp, err := st.ReceiveResponse(ctx)
		require.NoError(t, err)
		assert.Equal(t, req.RequestID, resp.RequestID)
	}
}

func TestListener_StreamedShutdown(t *testing.T) {
	endpoint := startListener(t, &stubOrchestrator{}, Config{}, ListenerConfig{})
	st := dial(t, endpoint)

	ctx := context.Background()
	req := protocol.NewRequest(protocol.ActionShutdown)
	req.Streaming = true
	require.NoError(t, st.SendRequest(ctx, req))

	resp, err := st.ReceiveResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusInProgress, resp.Status)

	var chunks []*protocol.StreamChunk

	for chunk, err := range st.ReceiveStream(ctx) {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	require.NotEmpty(t, chunks)
	assert.True(t, chunks[len(chunks)-1].FinalChunk)

	for _, chunk := range chunks {
		assert.Equal(t, req.RequestID, chunk.RequestID)
	}
}

func TestListener_StreamingStatusGetsFinalChunk(t *testing.T) {
	endpoint := startListener(t, &stubOrchestrator{status: map[string]any{"n": 1.0}}, Config{}, ListenerConfig{})
	st := dial(t, endpoint)

	ctx := context.Background()
	req := protocol.NewRequest(protocol.ActionStatus)
	req.Streaming = true
	require.NoError(t, st.SendRequest(ctx, req))

	resp, err := st.ReceiveResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)

	var chunks []*protocol.StreamChunk

	for chunk, err := range st.ReceiveStream(ctx) {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	// An action with no progress to report still terminates the stream.
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].FinalChunk)
	assert.Equal(t, req.RequestID, chunks[0].RequestID)
}

func TestListener_CloseReturnsAfterServedRequest(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "supervisor.sock")

	sup := New(testLogger(), &stubOrchestrator{}, Config{})
	sup.Start()

	defer sup.Stop(context.Background())

	ln, err := NewListener(testLogger(), sup, endpoint, ListenerConfig{})
	require.NoError(t, err)

	go func() { _ = ln.Serve(context.Background()) }()

	st := dial(t, endpoint)

	ctx := context.Background()
	req := protocol.NewRequest(protocol.ActionPing)
	require.NoError(t, st.SendRequest(ctx, req))

	_, err = st.ReceiveResponse(ctx)
	require.NoError(t, err)

	// The connection goroutine must not park after a non-streaming
	// exchange, or Close would wait on it forever.
	require.NoError(t, st.Close())

	closed := make(chan struct{})

	go func() {
		_ = ln.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("listener close did not return after serving a request")
	}
}

func TestListener_AuthEnforcedOverWire(t *testing.T) {
	endpoint := startListener(t, &stubOrchestrator{}, Config{AuthToken: "secret"}, ListenerConfig{})
	st := dial(t, endpoint)

	ctx := context.Background()
	req := protocol.NewRequest(protocol.ActionPing)
	require.NoError(t, st.SendRequest(ctx, req))

	resp, err := st.ReceiveResponse(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.CodeUnauthorized, resp.Error.Code)
}

func TestListener_CloseIdempotent(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "supervisor.sock")

	sup := New(testLogger(), &stubOrchestrator{}, Config{})
	sup.Start()

	defer sup.Stop(context.Background())

	ln, err := NewListener(testLogger(), sup, endpoint, ListenerConfig{AcceptRate: rate.Limit(100), AcceptBurst: 10})
	require.NoError(t, err)

	go func() { _ = ln.Serve(context.Background()) }()

	require.NoError(t, ln.Close())
	require.NoError(t, ln.Close())
}

func TestListener_ReplacesStaleSocket(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "supervisor.sock")

	sup := New(testLogger(), &stubOrchestrator{}, Config{})
	sup.Start()

	defer sup.Stop(context.Background())

	first, err := NewListener(testLogger(), sup, endpoint, ListenerConfig{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A leftover socket file from a dead process must not block binding.
	second, err := NewListener(testLogger(), sup, endpoint, ListenerConfig{})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
