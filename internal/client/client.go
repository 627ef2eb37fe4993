package client

import (
	"context"
	"iter"
	"log/slog"
	"os"
	"os/user"
	"runtime"
	"sync"
	"time"

	"github.com/context-cleaner/supervise-go/internal/endpoint"
	"github.com/context-cleaner/supervise-go/internal/errors"
	"github.com/context-cleaner/supervise-go/internal/protocol"
	"github.com/context-cleaner/supervise-go/internal/transport"
)

// Options carries the resolved client configuration.
type Options struct {
	Logger       *slog.Logger
	Endpoint     string
	AuthToken    string
	Transport    transport.Transport
	Timeout      time.Duration
	Version      string
	Capabilities []string
}

// Client issues synchronous request/response calls against the supervisor.
//
// Clients are single-use: after Close, create a new one.
type Client struct {
	log  *slog.Logger
	opts Options

	mu        sync.Mutex
	transport transport.Transport
	connected bool
	closed    bool
}

// New creates an unconnected client. Unset options resolve at Connect:
// the endpoint falls back to the platform default, the auth token to the
// environment, and the transport to the platform's socket or pipe.
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Client{
		log:  log.With("component", "client"),
		opts: opts,
	}
}

// Connect resolves the endpoint, selects a transport, and opens it.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &errors.TransportError{Op: "connect", Err: errors.ErrClosed}
	}

	if c.connected {
		return &errors.TransportError{Op: "connect", Err: errors.ErrAlreadyConnected}
	}

	ep := c.opts.Endpoint
	if ep == "" {
		ep = endpoint.Default()
	}

	t := c.opts.Transport
	if t == nil {
		t = defaultTransport(c.log, ep)
	}

	if err := t.Connect(ctx); err != nil {
		return err
	}

	c.log.Debug("client connected", "endpoint", ep)
	c.transport = t
	c.connected = true

	return nil
}

// Close releases the transport. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if !c.connected {
		return nil
	}

	c.connected = false

	return c.transport.Close()
}

// Send performs one synchronous request/response exchange. Client identity
// and the auth token are attached to the request if absent; explicitly
// provided values are never overwritten.
func (c *Client) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	t, err := c.currentTransport()
	if err != nil {
		return nil, err
	}

	c.prepare(req)

	ctx, cancel := c.requestContext(ctx, req)
	defer cancel()

	if err := t.SendRequest(ctx, req); err != nil {
		return nil, err
	}

	return t.ReceiveResponse(ctx)
}

// SendStreaming performs an exchange whose response is followed by stream
// chunks. The returned iterator yields chunks until the final chunk; the
// caller must consume it before reusing the connection.
func (c *Client) SendStreaming(ctx context.Context, req *protocol.Request) (*protocol.Response, iter.Seq2[*protocol.StreamChunk, error], error) {
	t, err := c.currentTransport()
	if err != nil {
		return nil, nil, err
	}

	// Requests are immutable once constructed; the streaming flag goes on
	// a copy, not on the caller's request.
	streamReq := *req
	streamReq.Streaming = true
	c.prepare(&streamReq)

	if err := t.SendRequest(ctx, &streamReq); err != nil {
		return nil, nil, err
	}

	resp, err := t.ReceiveResponse(ctx)
	if err != nil {
		return nil, nil, err
	}

	return resp, t.ReceiveStream(ctx), nil
}

// Ping performs the ping convenience call.
func (c *Client) Ping(ctx context.Context) (*protocol.Response, error) {
	return c.Send(ctx, protocol.NewRequest(protocol.ActionPing))
}

// prepare populates client identity and auth on req when absent.
//
// Token precedence: a token already on the request wins, then the
// constructor token, then the environment, then none.
func (c *Client) prepare(req *protocol.Request) {
	if req.ClientInfo == nil {
		req.ClientInfo = c.identity()
	}

	if req.Auth == nil {
		if token := c.resolveToken(); token != "" {
			req.Auth = &protocol.Auth{Token: token, Scheme: protocol.DefaultAuthScheme}
		}
	}
}

func (c *Client) resolveToken() string {
	if c.opts.AuthToken != "" {
		return c.opts.AuthToken
	}

	return endpoint.TokenFromEnv()
}

func (c *Client) identity() *protocol.ClientInfo {
	info := &protocol.ClientInfo{
		PID:          os.Getpid(),
		Version:      c.opts.Version,
		Capabilities: c.opts.Capabilities,
	}

	if u, err := user.Current(); err == nil {
		info.User = u.Username
	}

	return info
}

// requestContext applies the request's local timeout, preferring an
// explicit TimeoutMs over the constructor timeout. The supervisor is not
// notified when the caller stops waiting.
func (c *Client) requestContext(ctx context.Context, req *protocol.Request) (context.Context, context.CancelFunc) {
	timeout := c.opts.Timeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	if timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}

func (c *Client) currentTransport() (transport.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &errors.TransportError{Op: "send", Err: errors.ErrClosed}
	}

	if !c.connected {
		return nil, &errors.TransportError{Op: "send", Err: errors.ErrNotConnected}
	}

	return c.transport, nil
}

// defaultTransport picks the platform transport for ep.
func defaultTransport(log *slog.Logger, ep string) transport.Transport {
	if runtime.GOOS == "windows" || endpoint.IsPipe(ep) {
		return transport.NewPipeTransport(log, ep)
	}

	return transport.NewSocketTransport(log, ep)
}

// Endpoint reports the endpoint this client will dial, for diagnostics.
func (c *Client) Endpoint() string {
	if c.opts.Endpoint != "" {
		return c.opts.Endpoint
	}

	return endpoint.Default()
}
