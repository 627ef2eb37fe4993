// Package registry is the file-backed process registry: the supervisor
// registers itself and refreshes its heartbeat here, and the watchdog
// reads it to judge supervisor liveness.
//
// The backing store is one JSON file under the runtime directory, replaced
// atomically on every write so concurrent readers never see a torn file.
package registry
