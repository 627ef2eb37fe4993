package supervise

import (
	"github.com/context-cleaner/supervise-go/internal/client"
)

// Client issues lifecycle requests against the supervisor over a local
// framed channel.
//
// Lifecycle: Clients are single-use. After Close(), create a new one with
// NewClient().
//
// Example usage:
//
//	client := supervise.NewClient(supervise.WithAuthToken("secret"))
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Ping(ctx)
type Client = client.Client

// NewClient creates an unconnected client. Call Connect before sending.
//
// Unset options resolve when connecting: the endpoint falls back to the
// platform default, the auth token to the environment, and the transport
// to the platform's socket or named pipe.
func NewClient(opts ...Option) *Client {
	return client.New(applyOptions(opts))
}
