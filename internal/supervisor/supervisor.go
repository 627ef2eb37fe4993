package supervisor

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// Config tunes one Supervisor instance.
type Config struct {
	// MaxConnections is the admission ceiling for concurrent requests.
	// Values below 1 are raised to 1.
	MaxConnections int

	// AuthToken, when non-empty, must match the auth token on every
	// request. The auth check runs before admission control so
	// unauthorized load cannot exhaust connection slots.
	AuthToken string

	// SupportedVersions is the protocol-version allow-list. Empty means
	// just the current protocol version.
	SupportedVersions []string
}

func (c Config) withDefaults() Config {
	if c.MaxConnections < 1 {
		c.MaxConnections = 1
	}

	if len(c.SupportedVersions) == 0 {
		c.SupportedVersions = []string{protocol.Version}
	}

	return c
}

// Supervisor authorizes, admits, and dispatches already-parsed requests
// against the orchestrator.
//
// Lifecycle is stopped -> running -> stopped; an instance that has been
// stopped is not resumable.
type Supervisor struct {
	log  *slog.Logger
	cfg  Config
	orch Orchestrator

	mu      sync.Mutex
	running bool
	stopped bool
	slots   *semaphore.Weighted

	// shutdowns tracks fire-and-forget teardown goroutines so Stop can
	// account for them without blocking request callers.
	shutdowns sync.WaitGroup
}

// New creates a stopped Supervisor. Call Start before handing it requests.
func New(log *slog.Logger, orch Orchestrator, cfg Config) *Supervisor {
	cfg = cfg.withDefaults()

	return &Supervisor{
		log:  log.With("component", "supervisor"),
		cfg:  cfg,
		orch: orch,
	}
}

// Start moves the supervisor to running. Repeated calls while running are
// no-ops, and an instance that has been stopped stays stopped.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.stopped {
		return
	}

	s.slots = semaphore.NewWeighted(int64(s.cfg.MaxConnections))
	s.running = true
	s.log.Info("supervisor started", "max_connections", s.cfg.MaxConnections)
}

// Stop drains in-flight requests and moves the supervisor to stopped.
// Repeated calls are no-ops. Shutdown is not resumable within one instance.
func (s *Supervisor) Stop(ctx context.Context) {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		return
	}

	s.running = false
	s.stopped = true
	slots := s.slots
	s.mu.Unlock()

	// Acquiring the full weight waits for every admitted request to
	// release its slot.
	if err := slots.Acquire(ctx, int64(s.cfg.MaxConnections)); err == nil {
		slots.Release(int64(s.cfg.MaxConnections))
	}

	s.log.Info("supervisor stopped")
}

// Running reports whether the supervisor accepts requests.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// HandleRequest authorizes and dispatches one request.
//
// The returned stream channel is nil unless the request asked for
// streaming; every accepted streaming request gets a stream terminated by
// exactly one final chunk, even when the action itself produces no
// progress. Error responses carry no stream. Every path, including
// dispatch panics, releases the admission slot before returning.
func (s *Supervisor) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, <-chan *protocol.StreamChunk) {
	s.mu.Lock()
	running := s.running
	slots := s.slots
	s.mu.Unlock()

	if !running {
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInternal, "supervisor-not-running"), nil
	}

	if resp := s.authorize(req); resp != nil {
		return resp, nil
	}

	if !slices.Contains(s.cfg.SupportedVersions, req.ProtocolVersion) {
		msg := fmt.Sprintf("unsupported protocol version %q", req.ProtocolVersion)
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInvalidArgument, msg), nil
	}

	// Fail fast at the ceiling; callers needing backpressure retry
	// themselves.
	if !slots.TryAcquire(1) {
		s.log.Warn("admission ceiling reached", "request_id", req.RequestID, "action", req.Action)
		return protocol.ErrorResponse(req.RequestID, protocol.CodeConcurrencyLimit, "connection limit reached"), nil
	}

	defer slots.Release(1)

	resp, stream := s.dispatch(ctx, req)

	// A streaming request whose action produced no stream still owes the
	// client its end-of-stream marker.
	if req.Streaming && stream == nil && resp.Status != protocol.StatusError {
		stream = terminalStream(req.RequestID)
	}

	return resp, stream
}

// terminalStream returns an already-closed stream holding one final chunk.
func terminalStream(requestID string) <-chan *protocol.StreamChunk {
	chunks := make(chan *protocol.StreamChunk, 1)
	chunks <- protocol.NewStreamChunk(requestID, nil, true)
	close(chunks)

	return chunks
}

// authorize returns an error response when the configured token is absent
// or mismatched on the request, nil otherwise.
func (s *Supervisor) authorize(req *protocol.Request) *protocol.Response {
	if s.cfg.AuthToken == "" {
		return nil
	}

	if req.Auth == nil ||
		subtle.ConstantTimeCompare([]byte(req.Auth.Token), []byte(s.cfg.AuthToken)) != 1 {
		s.log.Warn("rejected unauthorized request", "request_id", req.RequestID, "action", req.Action)
		return protocol.ErrorResponse(req.RequestID, protocol.CodeUnauthorized, "invalid or missing auth token")
	}

	return nil
}

func (s *Supervisor) dispatch(ctx context.Context, req *protocol.Request) (resp *protocol.Response, stream <-chan *protocol.StreamChunk) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("dispatch panicked", "request_id", req.RequestID, "action", req.Action, "panic", r)
			resp = protocol.ErrorResponse(req.RequestID, protocol.CodeInternal, fmt.Sprintf("dispatch failure: %v", r))
			stream = nil
		}
	}()

	switch req.Action {
	case protocol.ActionPing:
		return protocol.OKResponse(req.RequestID, map[string]any{"message": "pong"}), nil

	case protocol.ActionStatus:
		return s.handleStatus(ctx, req), nil

	case protocol.ActionShutdown:
		return s.handleShutdown(req)

	case protocol.ActionRestartService:
		return s.handleRestartService(ctx, req), nil

	case protocol.ActionReloadConfig:
		return s.handleReloadConfig(ctx, req), nil

	default:
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInvalidArgument, string(req.Action)), nil
	}
}

func (s *Supervisor) handleStatus(ctx context.Context, req *protocol.Request) *protocol.Response {
	status, err := s.orch.GetServiceStatus(ctx)
	if err != nil {
		s.log.Error("status query failed", "request_id", req.RequestID, "error", err)
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInternal, err.Error())
	}

	return protocol.OKResponse(req.RequestID, status)
}

// handleShutdown triggers orchestrator-wide teardown without blocking the
// caller on completion. With streaming requested, teardown progress is
// reported as chunks ending in exactly one final chunk; otherwise the
// teardown is strictly fire-and-forget.
func (s *Supervisor) handleShutdown(req *protocol.Request) (*protocol.Response, <-chan *protocol.StreamChunk) {
	resp := protocol.InProgressResponse(req.RequestID, map[string]any{"message": "shutdown-started"})

	if !req.Streaming {
		s.shutdowns.Add(1)

		go func() {
			defer s.shutdowns.Done()

			if err := s.orch.StopAllServices(context.Background()); err != nil {
				s.log.Error("service teardown failed", "request_id", req.RequestID, "error", err)
			}
		}()

		return resp, nil
	}

	chunks := make(chan *protocol.StreamChunk, 2)
	s.shutdowns.Add(1)

	go func() {
		defer s.shutdowns.Done()
		defer close(chunks)

		chunks <- protocol.NewStreamChunk(req.RequestID, []byte(`{"phase":"stopping-services"}`), false)

		if err := s.orch.StopAllServices(context.Background()); err != nil {
			s.log.Error("service teardown failed", "request_id", req.RequestID, "error", err)
			chunks <- protocol.NewStreamChunk(req.RequestID, []byte(`{"phase":"failed"}`), true)

			return
		}

		chunks <- protocol.NewStreamChunk(req.RequestID, []byte(`{"phase":"complete"}`), true)
	}()

	return resp, chunks
}

func (s *Supervisor) handleRestartService(ctx context.Context, req *protocol.Request) *protocol.Response {
	restarter, ok := s.orch.(ServiceRestarter)
	if !ok {
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInvalidArgument, string(req.Action))
	}

	name, ok := req.Options["service"].(string)
	if !ok || name == "" {
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInvalidArgument, "missing service option")
	}

	if err := restarter.RestartService(ctx, name); err != nil {
		s.log.Error("service restart failed", "request_id", req.RequestID, "service", name, "error", err)
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInternal, err.Error())
	}

	return protocol.OKResponse(req.RequestID, map[string]any{"message": "restarted", "service": name})
}

func (s *Supervisor) handleReloadConfig(ctx context.Context, req *protocol.Request) *protocol.Response {
	reloader, ok := s.orch.(ConfigReloader)
	if !ok {
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInvalidArgument, string(req.Action))
	}

	if err := reloader.ReloadConfig(ctx); err != nil {
		s.log.Error("config reload failed", "request_id", req.RequestID, "error", err)
		return protocol.ErrorResponse(req.RequestID, protocol.CodeInternal, err.Error())
	}

	return protocol.OKResponse(req.RequestID, map[string]any{"message": "config-reloaded"})
}
