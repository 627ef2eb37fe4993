package supervisor

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/context-cleaner/supervise-go/internal/protocol"
	"github.com/context-cleaner/supervise-go/internal/transport"
)

// ListenerConfig tunes the accept loop.
type ListenerConfig struct {
	// AcceptRate caps how many connections per second the listener
	// admits; connections above the rate are closed immediately.
	// Zero disables rate limiting.
	AcceptRate rate.Limit

	// AcceptBurst is the short-term burst allowance for AcceptRate.
	AcceptBurst int
}

// Listener accepts connections on the supervisor's socket endpoint, reads
// framed requests, and writes framed responses. One goroutine serves each
// connection; admission control itself lives in the Supervisor.
type Listener struct {
	log     *slog.Logger
	sup     *Supervisor
	ln      net.Listener
	limiter *rate.Limiter

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// NewListener binds a unix domain socket at endpoint. A stale socket file
// from a previous run is removed first; the socket is only accessible to
// the owning user.
func NewListener(log *slog.Logger, sup *Supervisor, endpoint string, cfg ListenerConfig) (*Listener, error) {
	if err := os.MkdirAll(filepath.Dir(endpoint), 0o700); err != nil {
		return nil, err
	}

	if err := os.Remove(endpoint); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	ln, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, err
	}

	if err := os.Chmod(endpoint, 0o600); err != nil {
		_ = ln.Close()
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst < 1 {
			burst = 1
		}

		limiter = rate.NewLimiter(cfg.AcceptRate, burst)
	}

	return &Listener{
		log:     log.With("component", "listener"),
		sup:     sup,
		ln:      ln,
		limiter: limiter,
		done:    make(chan struct{}),
	}, nil
}

// Addr returns the bound socket address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve runs the accept loop until Close. It always returns nil after a
// clean shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
				return nil
			default:
			}

			if stderrors.Is(err, net.ErrClosed) {
				return nil
			}

			l.log.Error("accept failed", "error", err)

			return err
		}

		if l.limiter != nil && !l.limiter.Allow() {
			l.log.Warn("accept rate exceeded, dropping connection")
			_ = conn.Close()

			continue
		}

		l.wg.Add(1)

		go func() {
			defer l.wg.Done()
			l.serveConn(ctx, conn)
		}()
	}
}

// Close stops accepting, closes the socket, and waits for in-flight
// connections to finish. Safe to call multiple times.
func (l *Listener) Close() error {
	var err error

	l.closeOnce.Do(func() {
		close(l.done)
		err = l.ln.Close()
		l.wg.Wait()
	})

	return err
}

// serveConn handles framed exchanges on one connection until the peer
// hangs up. A malformed request closes the connection; there is no
// request ID to correlate an error response to.
func (l *Listener) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := ulid.Make().String()
	log := l.log.With("conn_id", connID)
	log.Debug("connection opened")

	for {
		select {
		case <-l.done:
			return
		default:
		}

		payload, err := transport.ReadFrame(conn)
		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				log.Debug("connection read ended", "error", err)
			}

			return
		}

		req, err := protocol.DecodeRequest(payload)
		if err != nil {
			log.Warn("dropping malformed request", "error", err)
			return
		}

		resp, stream := l.sup.HandleRequest(ctx, req)

		if err := l.writeResponse(conn, resp); err != nil {
			log.Debug("connection write ended", "error", err)
			return
		}

		if stream == nil {
			continue
		}

		for chunk := range stream {
			if err := l.writeChunk(conn, chunk); err != nil {
				log.Debug("stream write ended", "error", err)
				// Drain so the producer goroutine can finish.
				for range stream {
				}

				return
			}
		}
	}
}

func (l *Listener) writeResponse(conn net.Conn, resp *protocol.Response) error {
	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}

	return transport.WriteFrame(conn, payload)
}

func (l *Listener) writeChunk(conn net.Conn, chunk *protocol.StreamChunk) error {
	payload, err := protocol.EncodeStreamChunk(chunk)
	if err != nil {
		return err
	}

	return transport.WriteFrame(conn, payload)
}
