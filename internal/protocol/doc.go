// Package protocol defines the request/response/stream-chunk structures
// exchanged with the supervisor, their canonical wire encoding, and the
// error-code vocabulary.
//
// One encoded message occupies exactly one transport frame. The encoding is
// transport-agnostic; framing lives in the transport package.
package protocol
