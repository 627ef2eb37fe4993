package supervise

import (
	"log/slog"
	"time"

	"github.com/context-cleaner/supervise-go/internal/client"
)

// Option configures a Client using the functional options pattern.
type Option func(*client.Options)

// applyOptions applies functional options to a client.Options struct.
func applyOptions(opts []Option) client.Options {
	var options client.Options
	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *client.Options) {
		o.Logger = logger
	}
}

// WithEndpoint overrides the platform-default supervisor endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *client.Options) {
		o.Endpoint = endpoint
	}
}

// WithAuthToken sets the auth token attached to outgoing requests.
// A token already present on a request takes precedence; the
// CONTEXT_CLEANER_SUPERVISOR_TOKEN environment variable is the fallback.
func WithAuthToken(token string) Option {
	return func(o *client.Options) {
		o.AuthToken = token
	}
}

// WithTransport injects a custom transport implementation.
func WithTransport(t Transport) Option {
	return func(o *client.Options) {
		o.Transport = t
	}
}

// WithTimeout sets the default per-request timeout. A request's explicit
// TimeoutMs takes precedence. The supervisor is not notified when the
// client stops waiting; it completes processing regardless.
func WithTimeout(timeout time.Duration) Option {
	return func(o *client.Options) {
		o.Timeout = timeout
	}
}

// WithClientVersion sets the version string reported in ClientInfo.
func WithClientVersion(version string) Option {
	return func(o *client.Options) {
		o.Version = version
	}
}

// WithCapabilities sets the capability list reported in ClientInfo.
func WithCapabilities(capabilities ...string) Option {
	return func(o *client.Options) {
		o.Capabilities = capabilities
	}
}
