package client

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-cleaner/supervise-go/internal/endpoint"
	"github.com/context-cleaner/supervise-go/internal/errors"
	"github.com/context-cleaner/supervise-go/internal/protocol"
	"github.com/context-cleaner/supervise-go/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func connectedClient(t *testing.T, opts Options) (*Client, *transport.MemoryTransport) {
	t.Helper()

	mt := transport.NewMemoryTransport()
	opts.Logger = testLogger()
	opts.Transport = mt

	c := New(opts)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	return c, mt
}

func TestClient_PingRoundTrip(t *testing.T) {
	t.Setenv(endpoint.TokenEnvVar, "")

	c, mt := connectedClient(t, Options{})
	ctx := context.Background()

	// The memory transport needs the response queued before the exchange;
	// queue for whatever ID the ping generates by answering after send.
	req := protocol.NewRequest(protocol.ActionPing)
	require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, map[string]any{"message": "pong"})))

	resp, err := c.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, resp.RequestID)
	assert.Equal(t, "pong", resp.Result["message"])
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := New(Options{Logger: testLogger(), Transport: transport.NewMemoryTransport()})

	_, err := c.Send(context.Background(), protocol.NewRequest(protocol.ActionPing))
	require.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestClient_SendAfterClose(t *testing.T) {
	c, _ := connectedClient(t, Options{})
	require.NoError(t, c.Close())

	_, err := c.Send(context.Background(), protocol.NewRequest(protocol.ActionPing))
	require.ErrorIs(t, err, errors.ErrClosed)

	// Clients are single-use.
	require.ErrorIs(t, c.Connect(context.Background()), errors.ErrClosed)
}

func TestClient_AttachesClientInfo(t *testing.T) {
	t.Setenv(endpoint.TokenEnvVar, "")

	c, mt := connectedClient(t, Options{Version: "1.2.3", Capabilities: []string{"streaming"}})

	req := protocol.NewRequest(protocol.ActionPing)
	require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, nil)))

	_, err := c.Send(context.Background(), req)
	require.NoError(t, err)

	sent, err := mt.SentRequests()
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].ClientInfo)
	assert.Equal(t, os.Getpid(), sent[0].ClientInfo.PID)
	assert.Equal(t, "1.2.3", sent[0].ClientInfo.Version)
	assert.Equal(t, []string{"streaming"}, sent[0].ClientInfo.Capabilities)
}

func TestClient_DoesNotOverwriteClientInfo(t *testing.T) {
	c, mt := connectedClient(t, Options{Version: "1.2.3"})

	req := protocol.NewRequest(protocol.ActionPing)
	req.ClientInfo = &protocol.ClientInfo{PID: 777, Version: "custom"}
	require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, nil)))

	_, err := c.Send(context.Background(), req)
	require.NoError(t, err)

	sent, err := mt.SentRequests()
	require.NoError(t, err)
	assert.Equal(t, 777, sent[0].ClientInfo.PID)
	assert.Equal(t, "custom", sent[0].ClientInfo.Version)
}

func TestClient_TokenPrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("request token wins over constructor and env", func(t *testing.T) {
		t.Setenv(endpoint.TokenEnvVar, "env-token")

		c, mt := connectedClient(t, Options{AuthToken: "ctor-token"})

		req := protocol.NewRequest(protocol.ActionPing)
		req.Auth = &protocol.Auth{Token: "request-token"}
		require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, nil)))

		_, err := c.Send(ctx, req)
		require.NoError(t, err)

		sent, err := mt.SentRequests()
		require.NoError(t, err)
		assert.Equal(t, "request-token", sent[0].Auth.Token)
	})

	t.Run("constructor token wins over env", func(t *testing.T) {
		t.Setenv(endpoint.TokenEnvVar, "env-token")

		c, mt := connectedClient(t, Options{AuthToken: "ctor-token"})

		req := protocol.NewRequest(protocol.ActionPing)
		require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, nil)))

		_, err := c.Send(ctx, req)
		require.NoError(t, err)

		sent, err := mt.SentRequests()
		require.NoError(t, err)
		assert.Equal(t, "ctor-token", sent[0].Auth.Token)
		assert.Equal(t, protocol.DefaultAuthScheme, sent[0].Auth.Scheme)
	})

	t.Run("env token as fallback", func(t *testing.T) {
		t.Setenv(endpoint.TokenEnvVar, "env-token")

		c, mt := connectedClient(t, Options{})

		req := protocol.NewRequest(protocol.ActionPing)
		require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, nil)))

		_, err := c.Send(ctx, req)
		require.NoError(t, err)

		sent, err := mt.SentRequests()
		require.NoError(t, err)
		assert.Equal(t, "env-token", sent[0].Auth.Token)
	})

	t.Run("no token at all", func(t *testing.T) {
		t.Setenv(endpoint.TokenEnvVar, "")

		c, mt := connectedClient(t, Options{})

		req := protocol.NewRequest(protocol.ActionPing)
		require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, nil)))

		_, err := c.Send(ctx, req)
		require.NoError(t, err)

		sent, err := mt.SentRequests()
		require.NoError(t, err)
		assert.Nil(t, sent[0].Auth)
	})
}

func TestClient_SendStreaming(t *testing.T) {
	t.Setenv(endpoint.TokenEnvVar, "")

	c, mt := connectedClient(t, Options{})
	ctx := context.Background()

	req := protocol.NewRequest(protocol.ActionShutdown)
	require.NoError(t, mt.QueueResponse(protocol.InProgressResponse(req.RequestID, map[string]any{"message": "shutdown-started"})))
	require.NoError(t, mt.QueueStreamChunk(protocol.NewStreamChunk(req.RequestID, []byte("a"), false)))
	require.NoError(t, mt.QueueStreamChunk(protocol.NewStreamChunk(req.RequestID, []byte("b"), true)))

	resp, stream, err := c.SendStreaming(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusInProgress, resp.Status)

	var count int

	for chunk, err := range stream {
		require.NoError(t, err)
		assert.Equal(t, req.RequestID, chunk.RequestID)
		count++
	}

	assert.Equal(t, 2, count)

	sent, err := mt.SentRequests()
	require.NoError(t, err)
	assert.True(t, sent[0].Streaming, "SendStreaming must mark the request streaming")
}

func TestClient_SendStreamingLeavesCallerRequestUntouched(t *testing.T) {
	t.Setenv(endpoint.TokenEnvVar, "")

	c, mt := connectedClient(t, Options{})
	ctx := context.Background()

	req := protocol.NewRequest(protocol.ActionShutdown)
	require.NoError(t, mt.QueueResponse(protocol.InProgressResponse(req.RequestID, nil)))
	require.NoError(t, mt.QueueStreamChunk(protocol.NewStreamChunk(req.RequestID, nil, true)))

	_, stream, err := c.SendStreaming(ctx, req)
	require.NoError(t, err)

	for _, err := range stream {
		require.NoError(t, err)
	}

	// The streaming flag and attached identity go on the wire copy only.
	assert.False(t, req.Streaming)
	assert.Nil(t, req.ClientInfo)

	sent, err := mt.SentRequests()
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Streaming)
	require.NotNil(t, sent[0].ClientInfo)
}

func TestClient_CloseIdempotent(t *testing.T) {
	c, _ := connectedClient(t, Options{})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
