package supervise

import "github.com/context-cleaner/supervise-go/internal/transport"

// Transport is the duplex framed channel to the supervisor's endpoint.
// Implement this to provide custom transports for testing, mocking, or
// alternative local channels.
//
// The default implementations are the platform socket/pipe transports;
// custom transports are injected via WithTransport.
type Transport = transport.Transport

// NewMemoryTransport returns the in-memory debug transport used in tests.
// Its receive operations fail fast instead of blocking when nothing is
// queued.
func NewMemoryTransport() *transport.MemoryTransport {
	return transport.NewMemoryTransport()
}

// MemoryTransport is the in-memory debug transport.
type MemoryTransport = transport.MemoryTransport
