package supervise

import (
	"github.com/context-cleaner/supervise-go/internal/protocol"
)

// Re-export protocol types from the internal package.

// Request is one client call. Construct with NewRequest; requests are
// consumed once and not mutated after sending.
type Request = protocol.Request

// Response is the supervisor's answer to one Request.
type Response = protocol.Response

// StreamChunk is one unit of a streamed response.
type StreamChunk = protocol.StreamChunk

// ClientInfo carries client identity metadata on a Request.
type ClientInfo = protocol.ClientInfo

// Auth carries the optional auth token on a Request.
type Auth = protocol.Auth

// ErrorDetail is the code/message pair on error Responses.
type ErrorDetail = protocol.ErrorDetail

// Action identifies the requested operation.
type Action = protocol.Action

// Status classifies a Response outcome.
type Status = protocol.Status

// ErrorCode is the supervisor-level error vocabulary.
type ErrorCode = protocol.ErrorCode

// ProtocolVersion is the protocol version this build speaks.
const ProtocolVersion = protocol.Version

// Actions.
const (
	ActionPing           = protocol.ActionPing
	ActionStatus         = protocol.ActionStatus
	ActionShutdown       = protocol.ActionShutdown
	ActionRestartService = protocol.ActionRestartService
	ActionReloadConfig   = protocol.ActionReloadConfig
)

// Response statuses.
const (
	StatusOK         = protocol.StatusOK
	StatusInProgress = protocol.StatusInProgress
	StatusError      = protocol.StatusError
)

// Error codes.
const (
	CodeUnauthorized     = protocol.CodeUnauthorized
	CodeInvalidArgument  = protocol.CodeInvalidArgument
	CodeNotFound         = protocol.CodeNotFound
	CodeTimeout          = protocol.CodeTimeout
	CodeInternal         = protocol.CodeInternal
	CodeConcurrencyLimit = protocol.CodeConcurrencyLimit
)

// NewRequest builds a Request with a fresh client-generated request ID.
func NewRequest(action Action) *Request {
	return protocol.NewRequest(action)
}
