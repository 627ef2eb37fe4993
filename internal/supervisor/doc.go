// Package supervisor contains the request broker: authorization, admission
// control under a connection ceiling, and dispatch to the external service
// orchestrator, plus the socket listener that feeds it framed requests.
package supervisor
