// Command watchdogd observes the supervisor's registry entry and restarts
// the supervisor when its heartbeat goes stale or its process dies.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/context-cleaner/supervise-go/internal/config"
	"github.com/context-cleaner/supervise-go/internal/registry"
	"github.com/context-cleaner/supervise-go/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "watchdogd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if len(cfg.Watchdog.RestartCommand) == 0 {
		return fmt.Errorf("watchdog.restart_command must be configured")
	}

	log := newLogger(cfg.LogLevel)
	log.Info("starting watchdog daemon",
		"registry", cfg.RegistryPath,
		"restart_command", cfg.Watchdog.RestartCommand)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := registry.NewFileStore(log, cfg.RegistryPath)

	wd := watchdog.New(log, store, restartCommand(log, cfg.Watchdog.RestartCommand), watchdog.Config{
		ServiceType:           registry.ServiceTypeSupervisor,
		PollInterval:          time.Duration(cfg.Watchdog.PollIntervalSeconds) * time.Second,
		StaleGrace:            time.Duration(cfg.Watchdog.StaleGraceSeconds) * time.Second,
		RestartBackoff:        time.Duration(cfg.Watchdog.RestartBackoffSeconds) * time.Second,
		MaxRestartAttempts:    cfg.Watchdog.MaxRestartAttempts,
		RestartOnMissingEntry: cfg.Watchdog.RestartOnMissingEntry,
	})

	// Registry writes wake the watchdog between polls so freshness is
	// re-evaluated promptly after a heartbeat or a restart.
	wake, stopWatch, err := store.Watch(ctx)
	if err != nil {
		log.Warn("registry watch unavailable, falling back to polling only", "error", err)
	} else {
		wd.SetWakeChannel(wake)
		defer func() {
			if err := stopWatch(); err != nil {
				log.Warn("failed to stop registry watch", "error", err)
			}
		}()
	}

	wd.Start(ctx)
	defer wd.Stop()

	<-ctx.Done()
	log.Info("watchdog daemon stopped")

	return nil
}

// restartCommand returns a callback that spawns the configured command and
// leaves it running detached. The restarted supervisor re-registers itself,
// which is how success becomes visible to the next poll.
func restartCommand(log *slog.Logger, argv []string) watchdog.RestartFunc {
	return func() error {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Stdout = nil
		cmd.Stderr = nil

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to spawn %q: %w", argv[0], err)
		}

		log.Info("spawned restart command", "pid", cmd.Process.Pid)

		return cmd.Process.Release()
	}
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
