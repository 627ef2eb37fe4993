package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-cleaner/supervise-go/internal/errors"
	"github.com/context-cleaner/supervise-go/internal/protocol"
)

func TestMemoryTransport_SendBeforeConnect(t *testing.T) {
	mt := NewMemoryTransport()

	err := mt.SendRequest(context.Background(), protocol.NewRequest(protocol.ActionPing))

	var terr *errors.TransportError
	require.ErrorAs(t, err, &terr)
	require.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestMemoryTransport_ReceiveWithNothingQueued(t *testing.T) {
	mt := NewMemoryTransport()
	require.NoError(t, mt.Connect(context.Background()))

	// Must fail fast, never block.
	_, err := mt.ReceiveResponse(context.Background())
	require.ErrorIs(t, err, errors.ErrNoQueuedResponse)
}

func TestMemoryTransport_AfterClose(t *testing.T) {
	mt := NewMemoryTransport()
	require.NoError(t, mt.Connect(context.Background()))
	require.NoError(t, mt.Close())

	err := mt.SendRequest(context.Background(), protocol.NewRequest(protocol.ActionPing))
	require.ErrorIs(t, err, errors.ErrClosed)

	_, err = mt.ReceiveResponse(context.Background())
	require.ErrorIs(t, err, errors.ErrClosed)

	// Close is idempotent, reconnect is not possible.
	require.NoError(t, mt.Close())
	require.ErrorIs(t, mt.Connect(context.Background()), errors.ErrClosed)
}

func TestMemoryTransport_RequestResponseFIFO(t *testing.T) {
	ctx := context.Background()
	mt := NewMemoryTransport()
	require.NoError(t, mt.Connect(ctx))

	first := protocol.NewRequest(protocol.ActionPing)
	second := protocol.NewRequest(protocol.ActionStatus)
	require.NoError(t, mt.SendRequest(ctx, first))
	require.NoError(t, mt.SendRequest(ctx, second))

	sent, err := mt.SentRequests()
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, first.RequestID, sent[0].RequestID)
	assert.Equal(t, second.RequestID, sent[1].RequestID)

	require.NoError(t, mt.QueueResponse(protocol.OKResponse(first.RequestID, map[string]any{"message": "pong"})))
	require.NoError(t, mt.QueueResponse(protocol.OKResponse(second.RequestID, nil)))

	resp, err := mt.ReceiveResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.RequestID, resp.RequestID)

	resp, err = mt.ReceiveResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.RequestID, resp.RequestID)
}

func TestMemoryTransport_StreamStopsAtFinalChunk(t *testing.T) {
	ctx := context.Background()
	mt := NewMemoryTransport()
	require.NoError(t, mt.Connect(ctx))

	require.NoError(t, mt.QueueStreamChunk(protocol.NewStreamChunk("r1", []byte("part-1"), false)))
	require.NoError(t, mt.QueueStreamChunk(protocol.NewStreamChunk("r1", []byte("part-2"), true)))
	// Left in the queue; the stream must not read past the final chunk.
	require.NoError(t, mt.QueueStreamChunk(protocol.NewStreamChunk("r2", []byte("other"), true)))

	var got []*protocol.StreamChunk

	for chunk, err := range mt.ReceiveStream(ctx) {
		require.NoError(t, err)
		got = append(got, chunk)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "part-1", string(got[0].Payload))
	assert.False(t, got[0].FinalChunk)
	assert.Equal(t, "part-2", string(got[1].Payload))
	assert.True(t, got[1].FinalChunk)
}

func TestMemoryTransport_StreamEmptyQueueFailsFast(t *testing.T) {
	ctx := context.Background()
	mt := NewMemoryTransport()
	require.NoError(t, mt.Connect(ctx))

	for chunk, err := range mt.ReceiveStream(ctx) {
		assert.Nil(t, chunk)
		require.ErrorIs(t, err, errors.ErrNoQueuedChunk)
	}
}
