// Package supervise provides the control channel for the context-cleaner
// supervisor: a client for lifecycle operations (ping, status, shutdown,
// restart-service, reload-config) over a local socket or named pipe, the
// supervisor-side request broker, and the watchdog that restarts a stale
// supervisor.
//
// # Basic Usage
//
// For a one-shot call, use WithConnection for automatic cleanup:
//
//	err := supervise.WithConnection(ctx, func(c *supervise.Client) error {
//	    resp, err := c.Ping(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(resp.Result["message"]) // "pong"
//	    return nil
//	}, supervise.WithLogger(slog.Default()))
//
// Or manage the lifecycle yourself:
//
//	client := supervise.NewClient(supervise.WithAuthToken("secret"))
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err) // transport error: supervisor not reachable
//	}
//	defer client.Close()
//
//	resp, err := client.Send(ctx, supervise.NewRequest(supervise.ActionStatus))
//
// # Error Handling
//
// Failures come in two distinct classes. Transport errors (connection
// refused, broken pipe, truncated frame) are returned as Go errors of type
// *TransportError and mean the exchange itself failed. Protocol-level
// failures arrive as a well-formed Response with Status == StatusError and
// a code from the error taxonomy (unauthorized, invalid-argument,
// concurrency-limit, ...); the exchange succeeded and the supervisor
// declined the request. Callers must check both:
//
//	resp, err := client.Send(ctx, req)
//	if err != nil {
//	    var terr *supervise.TransportError
//	    if errors.As(err, &terr) {
//	        // infrastructure problem, e.g. supervisor not running
//	    }
//	    return err
//	}
//	if resp.Status == supervise.StatusError {
//	    // actionable protocol error with resp.Error.Code
//	}
//
// # Endpoint Resolution
//
// The default endpoint is a socket under the runtime directory on POSIX
// and a named pipe on Windows, overridable with WithEndpoint or the
// CONTEXT_CLEANER_SUPERVISOR_ENDPOINT environment variable. The auth token
// falls back to CONTEXT_CLEANER_SUPERVISOR_TOKEN.
package supervise
