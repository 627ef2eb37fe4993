package supervise

import (
	"context"
	"fmt"
)

// WithConnection manages client lifecycle with automatic cleanup.
//
// This helper creates a client, connects it with the provided options,
// executes the callback, and guarantees the connection is closed on every
// exit path, including a panicking callback.
//
// If Close() fails after a successful callback, a warning is logged but the
// callback's result is returned unchanged.
//
// Example usage:
//
//	err := supervise.WithConnection(ctx, func(c *supervise.Client) error {
//	    resp, err := c.Ping(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(resp.Result["message"])
//	    return nil
//	}, supervise.WithLogger(slog.Default()))
func WithConnection(ctx context.Context, fn func(*Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	c := NewClient(opts...)
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			log.Warn("failed to close connection", "error", closeErr)
		}
	}()

	return fn(c)
}
