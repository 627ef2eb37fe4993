// Package transport provides the framed local channels used to reach the
// supervisor: a unix domain socket, a Windows named pipe, and an in-memory
// variant for tests.
//
// Every implementation shares the same wire framing: a 4-byte unsigned
// big-endian length prefix followed by exactly that many bytes of encoded
// protocol payload. The framing is bit-identical across transports so
// implementations are interchangeable in tests.
package transport
