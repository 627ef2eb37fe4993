package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"vawter.tech/stopper"
)

// Environment keys the supervisor writes into its registry entry.
const (
	// EnvHeartbeatAt is the ISO-8601 UTC timestamp of the last known-good
	// supervisor activity.
	EnvHeartbeatAt = "HEARTBEAT_AT"

	// EnvHeartbeatTimeout is the heartbeat validity window in seconds.
	EnvHeartbeatTimeout = "HEARTBEAT_TIMEOUT"
)

// Defaults for Config fields left zero.
const (
	DefaultPollInterval       = 5 * time.Second
	DefaultStaleGrace         = 5 * time.Second
	DefaultRestartBackoff     = 15 * time.Second
	DefaultMaxRestartAttempts = 3
)

// ProcessEntry is the read-only view onto one registry row the watchdog
// consumes. The watchdog never writes through this interface.
type ProcessEntry interface {
	PID() int
	RegistrationTime() time.Time
	EnvironmentVars() map[string]string
	IsAlive() bool
}

// Registry is the external process-registry read path.
type Registry interface {
	GetProcessesByType(ctx context.Context, serviceType string) ([]ProcessEntry, error)
}

// RestartFunc is the restart callback supplied by the process owner. Its
// effect (typically spawning a fresh supervisor process) is outside this
// subsystem; a returned error is logged and swallowed.
type RestartFunc func() error

// Config tunes one Watchdog instance.
type Config struct {
	// ServiceType selects which registry entries to observe.
	ServiceType string

	// PollInterval is how often the registry is polled.
	PollInterval time.Duration

	// StaleGrace is added to the entry's heartbeat timeout as a buffer
	// against clock and poll jitter.
	StaleGrace time.Duration

	// RestartBackoff is the window after a restart during which repeated
	// unhealthy polls are ignored.
	RestartBackoff time.Duration

	// MaxRestartAttempts is the hard ceiling after which the watchdog
	// disables itself permanently. Restart storms are worse than a down
	// supervisor an operator has to look at.
	MaxRestartAttempts int

	// RestartOnMissingEntry treats an empty registry as unhealthy from
	// the very first poll. Left false, the watchdog arms itself only
	// after it has observed at least one entry for ServiceType, so an
	// empty registry at cold start does not trigger a restart storm.
	RestartOnMissingEntry bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.StaleGrace <= 0 {
		c.StaleGrace = DefaultStaleGrace
	}

	if c.RestartBackoff <= 0 {
		c.RestartBackoff = DefaultRestartBackoff
	}

	if c.MaxRestartAttempts <= 0 {
		c.MaxRestartAttempts = DefaultMaxRestartAttempts
	}

	return c
}

// Watchdog polls the process registry for the supervisor's heartbeat and
// invokes the restart callback when it goes stale, throttled by a backoff
// window and an attempt ceiling.
//
// The watchdog runs decoupled from request handling: it only reads the
// registry and owns no supervisor memory.
type Watchdog struct {
	log      *slog.Logger
	cfg      Config
	registry Registry
	restart  RestartFunc

	// now is swapped out by tests.
	now func() time.Time

	// wake, when non-nil, lets a registry watch trigger a poll ahead of
	// the next tick.
	wake <-chan struct{}

	mu              sync.Mutex
	running         bool
	armed           bool
	disabled        bool
	restartAttempts int
	lastRestartAt   time.Time
	loop            *stopper.Context
}

// New creates an idle watchdog observing serviceType entries in registry.
func New(log *slog.Logger, registry Registry, restart RestartFunc, cfg Config) *Watchdog {
	cfg = cfg.withDefaults()

	return &Watchdog{
		log:      log.With("component", "watchdog"),
		cfg:      cfg,
		registry: registry,
		restart:  restart,
		now:      time.Now,
	}
}

// SetWakeChannel installs a channel that triggers an immediate poll, e.g.
// from a registry file watch. Must be called before Start.
func (w *Watchdog) SetWakeChannel(wake <-chan struct{}) {
	w.wake = wake
}

// Start launches the background poll loop. Calling Start while running is
// a no-op.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	w.running = true
	w.loop = stopper.WithContext(ctx)

	w.loop.Go(func(sctx *stopper.Context) error {
		w.run(sctx)
		return nil
	})

	w.log.Info("watchdog started",
		"service_type", w.cfg.ServiceType,
		"poll_interval", w.cfg.PollInterval,
		"max_restart_attempts", w.cfg.MaxRestartAttempts)
}

// Stop halts the poll loop and joins it with a bounded wait. Calling Stop
// while idle is a no-op.
func (w *Watchdog) Stop() {
	w.mu.Lock()

	if !w.running {
		w.mu.Unlock()
		return
	}

	w.running = false
	loop := w.loop
	w.mu.Unlock()

	loop.Stop(w.cfg.PollInterval)
	_ = loop.Wait()

	w.log.Info("watchdog stopped")
}

// RestartAttempts returns the consecutive restart count since the last
// healthy observation.
func (w *Watchdog) RestartAttempts() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.restartAttempts
}

// Disabled reports whether the watchdog has permanently disabled itself
// after exhausting its restart attempts. A disabled watchdog never
// restarts anything again; re-create it to resume monitoring.
func (w *Watchdog) Disabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.disabled
}

// LastRestartAt returns when the restart callback last fired, or the zero
// time.
func (w *Watchdog) LastRestartAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.lastRestartAt
}

func (w *Watchdog) run(sctx *stopper.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sctx.Stopping():
			return
		case <-ticker.C:
			w.pollOnce(sctx)
		case <-w.wake:
			w.pollOnce(sctx)
		}
	}
}

// pollOnce performs one health evaluation. Registry read failures are
// logged and skipped: a broken read path means health cannot be verified,
// which is not evidence the supervisor is down.
func (w *Watchdog) pollOnce(ctx context.Context) {
	healthy, reason, ok := w.checkHealth(ctx)
	if !ok {
		return
	}

	if healthy {
		w.mu.Lock()
		if w.restartAttempts != 0 {
			w.log.Info("supervisor healthy again, resetting restart attempts")
			w.restartAttempts = 0
		}
		w.mu.Unlock()

		return
	}

	w.maybeRestart(reason)
}

// checkHealth returns (healthy, unhealthy-reason, verifiable). ok=false
// means the poll could not reach a verdict and must be skipped.
func (w *Watchdog) checkHealth(ctx context.Context) (healthy bool, reason string, ok bool) {
	entries, err := w.registry.GetProcessesByType(ctx, w.cfg.ServiceType)
	if err != nil {
		w.log.Warn("registry read failed", "error", err)
		return false, "", false
	}

	if len(entries) == 0 {
		if !w.cfg.RestartOnMissingEntry && !w.isArmed() {
			w.log.Debug("no registry entry yet, watchdog not armed")
			return false, "", false
		}

		return false, "no-registry-entry", true
	}

	w.arm()

	entry := newestEntry(entries)
	if !entry.IsAlive() {
		return false, fmt.Sprintf("pid %d not alive", entry.PID()), true
	}

	heartbeatAt, timeout, err := parseHeartbeat(entry.EnvironmentVars())
	if err != nil {
		// Cannot verify health from a garbled entry; fail toward restart.
		return false, fmt.Sprintf("unparsable heartbeat: %v", err), true
	}

	age := w.now().Sub(heartbeatAt)
	if age <= timeout+w.cfg.StaleGrace {
		return true, "", true
	}

	return false, fmt.Sprintf("heartbeat stale by %s", age-timeout), true
}

func (w *Watchdog) maybeRestart(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disabled {
		return
	}

	if !w.lastRestartAt.IsZero() && w.now().Sub(w.lastRestartAt) < w.cfg.RestartBackoff {
		w.log.Debug("supervisor unhealthy within backoff window", "reason", reason)
		return
	}

	if w.restartAttempts >= w.cfg.MaxRestartAttempts {
		w.disabled = true
		w.log.Error("restart attempts exhausted, watchdog disabling itself permanently",
			"attempts", w.restartAttempts,
			"reason", reason)

		return
	}

	w.restartAttempts++
	w.lastRestartAt = w.now()
	w.log.Warn("supervisor unhealthy, invoking restart callback",
		"reason", reason,
		"attempt", w.restartAttempts,
		"max_attempts", w.cfg.MaxRestartAttempts)

	w.invokeRestart()
}

// invokeRestart shields the poll loop from the callback: both panics and
// returned errors are logged and swallowed. Callers hold mu.
func (w *Watchdog) invokeRestart() {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("restart callback panicked", "panic", r)
		}
	}()

	if err := w.restart(); err != nil {
		w.log.Error("restart callback failed", "error", err)
	}
}

func (w *Watchdog) isArmed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.armed
}

func (w *Watchdog) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.armed = true
}

// newestEntry returns the most-recently-registered entry.
func newestEntry(entries []ProcessEntry) ProcessEntry {
	newest := entries[0]

	for _, entry := range entries[1:] {
		if entry.RegistrationTime().After(newest.RegistrationTime()) {
			newest = entry
		}
	}

	return newest
}

// parseHeartbeat extracts HEARTBEAT_AT/HEARTBEAT_TIMEOUT from the entry's
// metadata blob.
func parseHeartbeat(env map[string]string) (time.Time, time.Duration, error) {
	raw, ok := env[EnvHeartbeatAt]
	if !ok {
		return time.Time{}, 0, fmt.Errorf("missing %s", EnvHeartbeatAt)
	}

	heartbeatAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parse %s: %w", EnvHeartbeatAt, err)
	}

	rawTimeout, ok := env[EnvHeartbeatTimeout]
	if !ok {
		return time.Time{}, 0, fmt.Errorf("missing %s", EnvHeartbeatTimeout)
	}

	seconds, err := strconv.ParseFloat(rawTimeout, 64)
	if err != nil || seconds <= 0 {
		return time.Time{}, 0, fmt.Errorf("parse %s: %q", EnvHeartbeatTimeout, rawTimeout)
	}

	return heartbeatAt, time.Duration(seconds * float64(time.Second)), nil
}
