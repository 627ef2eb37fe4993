package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vawter.tech/stopper"
)

// Heartbeater periodically refreshes the supervisor's heartbeat in the
// registry to prove liveness to the watchdog.
type Heartbeater struct {
	log         *slog.Logger
	store       *FileStore
	serviceType string
	pid         int
	timeout     time.Duration
	interval    time.Duration

	mu   sync.Mutex
	loop *stopper.Context
}

// NewHeartbeater refreshes the (serviceType, pid) entry every interval with
// a validity window of timeout. An interval of zero defaults to a third of
// the timeout, so two refreshes can be missed before staleness.
func NewHeartbeater(log *slog.Logger, store *FileStore, serviceType string, pid int, timeout, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = timeout / 3
	}

	return &Heartbeater{
		log:         log.With("component", "heartbeater"),
		store:       store,
		serviceType: serviceType,
		pid:         pid,
		timeout:     timeout,
		interval:    interval,
	}
}

// Start writes one heartbeat immediately, then refreshes on the interval
// until Stop. Start while running is a no-op.
func (h *Heartbeater) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loop != nil {
		return nil
	}

	if err := h.store.Heartbeat(ctx, h.serviceType, h.pid, h.timeout); err != nil {
		return err
	}

	h.loop = stopper.WithContext(ctx)

	h.loop.Go(func(sctx *stopper.Context) error {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-sctx.Stopping():
				return nil
			case <-ticker.C:
				if err := h.store.Heartbeat(sctx, h.serviceType, h.pid, h.timeout); err != nil {
					h.log.Warn("heartbeat refresh failed", "error", err)
				}
			}
		}
	})

	return nil
}

// Stop halts the refresh loop. Stop while idle is a no-op.
func (h *Heartbeater) Stop() {
	h.mu.Lock()
	loop := h.loop
	h.loop = nil
	h.mu.Unlock()

	if loop == nil {
		return
	}

	loop.Stop(time.Second)
	_ = loop.Wait()
}
