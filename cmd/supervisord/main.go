// Command supervisord serves the local control channel: it registers itself
// in the process registry, advertises liveness through heartbeats, and
// answers lifecycle requests on the platform socket endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/context-cleaner/supervise-go/internal/config"
	"github.com/context-cleaner/supervise-go/internal/registry"
	"github.com/context-cleaner/supervise-go/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "supervisord:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	log.Info("starting supervisor daemon",
		"endpoint", cfg.Endpoint,
		"registry", cfg.RegistryPath,
		"pid", os.Getpid())

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A shutdown request over the control channel cancels this context
	// the same way a signal does.
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	store := registry.NewFileStore(log, cfg.RegistryPath)
	pid := os.Getpid()

	entry := &registry.Entry{
		ProcessID:    pid,
		ServiceType:  registry.ServiceTypeSupervisor,
		RegisteredAt: time.Now().UTC(),
	}
	if err := store.Register(ctx, entry); err != nil {
		return fmt.Errorf("failed to register in process registry: %w", err)
	}
	defer func() {
		if err := store.Deregister(context.Background(), registry.ServiceTypeSupervisor, pid); err != nil {
			log.Warn("failed to deregister", "error", err)
		}
	}()

	heartbeatTimeout := time.Duration(cfg.Heartbeat.TimeoutSeconds) * time.Second
	heartbeatInterval := time.Duration(cfg.Heartbeat.IntervalSeconds) * time.Second

	beater := registry.NewHeartbeater(log, store, registry.ServiceTypeSupervisor, pid, heartbeatTimeout, heartbeatInterval)
	if err := beater.Start(ctx); err != nil {
		return fmt.Errorf("failed to start heartbeater: %w", err)
	}
	defer beater.Stop()

	sup := supervisor.New(log, newSelfOrchestrator(cancel), supervisor.Config{
		MaxConnections: cfg.MaxConnections,
		AuthToken:      cfg.AuthToken,
	})
	sup.Start()

	listener, err := supervisor.NewListener(log, sup, cfg.Endpoint, supervisor.ListenerConfig{})
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Endpoint, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listener.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("accept loop failed: %w", err)
		}
	}

	if err := listener.Close(); err != nil {
		log.Warn("failed to close listener", "error", err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sup.Stop(drainCtx)

	log.Info("supervisor daemon stopped")

	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// selfOrchestrator reports the daemon's own state. It stands in until a
// service manager is plugged in; the control channel semantics do not
// depend on what sits behind the Orchestrator interface.
type selfOrchestrator struct {
	startedAt time.Time
	stopping  atomic.Bool
	shutdown  func()
}

var _ supervisor.Orchestrator = (*selfOrchestrator)(nil)

func newSelfOrchestrator(shutdown func()) *selfOrchestrator {
	return &selfOrchestrator{startedAt: time.Now(), shutdown: shutdown}
}

func (o *selfOrchestrator) GetServiceStatus(_ context.Context) (map[string]any, error) {
	state := "running"
	if o.stopping.Load() {
		state = "stopping"
	}

	return map[string]any{
		"supervisor": map[string]any{
			"state":          state,
			"pid":            os.Getpid(),
			"uptime_seconds": int(time.Since(o.startedAt).Seconds()),
		},
	}, nil
}

func (o *selfOrchestrator) StopAllServices(_ context.Context) error {
	o.stopping.Store(true)
	o.shutdown()

	return nil
}
