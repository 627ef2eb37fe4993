package supervise

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// TestNewClient_Creation tests client creation and close without connecting.
func TestNewClient_Creation(t *testing.T) {
	client := NewClient()
	require.NotNil(t, client)

	err := client.Close()
	require.NoError(t, err)
}

// TestClient_SendNotConnected tests sending before Connect.
func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient()
	defer client.Close()

	_, err := client.Ping(context.Background())

	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotConnected)
}

// TestClient_PingRoundTrip tests a full exchange through the facade using
// the in-memory transport.
func TestClient_PingRoundTrip(t *testing.T) {
	mt := NewMemoryTransport()
	client := NewClient(
		WithTransport(mt),
		WithAuthToken("secret"),
		WithClientVersion("1.2.3"),
	)

	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	err := mt.QueueResponse(protocol.OKResponse("any", map[string]any{"message": "pong"}))
	require.NoError(t, err)

	resp, err := client.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "pong", resp.Result["message"])

	sent, err := mt.SentRequests()
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, ActionPing, sent[0].Action)
	assert.Equal(t, ProtocolVersion, sent[0].ProtocolVersion)
	require.NotNil(t, sent[0].Auth)
	assert.Equal(t, "secret", sent[0].Auth.Token)
	require.NotNil(t, sent[0].ClientInfo)
	assert.Equal(t, "1.2.3", sent[0].ClientInfo.Version)
}

// TestClient_SendCustomRequest tests sending a request built through the
// facade constructor.
func TestClient_SendCustomRequest(t *testing.T) {
	mt := NewMemoryTransport()
	client := NewClient(WithTransport(mt))

	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	req := NewRequest(ActionRestartService)
	req.Options = map[string]any{"service": "worker"}

	require.NoError(t, mt.QueueResponse(protocol.OKResponse(req.RequestID, nil)))

	resp, err := client.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, req.RequestID, resp.RequestID)
}

// TestClient_ErrorResponsePassthrough tests that error responses surface to
// the caller as responses, not Go errors.
func TestClient_ErrorResponsePassthrough(t *testing.T) {
	mt := NewMemoryTransport()
	client := NewClient(WithTransport(mt))

	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	queued := protocol.ErrorResponse("any", protocol.CodeUnauthorized, "authentication required")
	require.NoError(t, mt.QueueResponse(queued))

	resp, err := client.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
}
