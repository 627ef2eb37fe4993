package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/context-cleaner/supervise-go/internal/errors"
)

// Version is the protocol version this build speaks.
const Version = "1.0"

// DefaultAuthScheme tags auth tokens whose scheme is not set explicitly.
const DefaultAuthScheme = "hmac"

// Action identifies the operation a request asks the supervisor to perform.
//
// Action is a closed enumeration: decoding an unknown action fails with a
// ProtocolError at the boundary rather than falling through to a runtime
// string miss.
type Action string

const (
	ActionPing           Action = "ping"
	ActionStatus         Action = "status"
	ActionShutdown       Action = "shutdown"
	ActionRestartService Action = "restart-service"
	ActionReloadConfig   Action = "reload-config"
)

// ParseAction validates s against the closed set of actions.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPing, ActionStatus, ActionShutdown, ActionRestartService, ActionReloadConfig:
		return a, nil
	default:
		return "", &errors.ProtocolError{Reason: fmt.Sprintf("unknown action %q", s)}
	}
}

// Status is the outcome classification of a Response.
type Status string

const (
	StatusOK         Status = "ok"
	StatusInProgress Status = "in-progress"
	StatusError      Status = "error"
)

// ErrorCode is the supervisor-level error vocabulary carried inside error
// Responses. Transport failures are a separate class and never appear here.
type ErrorCode string

const (
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeInvalidArgument  ErrorCode = "invalid-argument"
	CodeNotFound         ErrorCode = "not-found"
	CodeTimeout          ErrorCode = "timeout"
	CodeInternal         ErrorCode = "internal"
	CodeConcurrencyLimit ErrorCode = "concurrency-limit"
)

// ClientInfo carries identity metadata the client attaches to requests.
type ClientInfo struct {
	PID          int      `json:"pid"`
	User         string   `json:"user,omitempty"`
	Version      string   `json:"version,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Auth carries the optional auth token on a request.
type Auth struct {
	Token  string `json:"token"`
	Scheme string `json:"scheme,omitempty"`
}

// Request is one client call. It is constructed by the client, consumed once
// by the supervisor, and not mutated after construction.
type Request struct {
	Action          Action         `json:"action"`
	ProtocolVersion string         `json:"protocol_version"`
	RequestID       string         `json:"request_id"`
	ClientTimestamp time.Time      `json:"client_timestamp"`
	Options         map[string]any `json:"options,omitempty"`
	Filters         map[string]any `json:"filters,omitempty"`
	Streaming       bool           `json:"streaming,omitempty"`
	TimeoutMs       int64          `json:"timeout_ms,omitempty"`
	ClientInfo      *ClientInfo    `json:"client_info,omitempty"`
	Auth            *Auth          `json:"auth,omitempty"`
}

// NewRequest builds a Request for action with a fresh request ID and the
// current protocol version. The request ID is generated client-side so async
// responses can be correlated without server cooperation.
func NewRequest(action Action) *Request {
	return &Request{
		Action:          action,
		ProtocolVersion: Version,
		RequestID:       uuid.NewString(),
		ClientTimestamp: time.Now().UTC(),
	}
}

// ErrorDetail is the code/message pair carried by error Responses.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Response is the supervisor's answer to one Request. Exactly one of Result
// and Error is populated on terminal responses.
type Response struct {
	RequestID       string         `json:"request_id"`
	Status          Status         `json:"status"`
	ProtocolVersion string         `json:"protocol_version"`
	ServerTimestamp time.Time      `json:"server_timestamp"`
	Progress        *float64       `json:"progress,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *ErrorDetail   `json:"error,omitempty"`
}

// OKResponse builds a terminal success response echoing requestID.
func OKResponse(requestID string, result map[string]any) *Response {
	return &Response{
		RequestID:       requestID,
		Status:          StatusOK,
		ProtocolVersion: Version,
		ServerTimestamp: time.Now().UTC(),
		Result:          result,
	}
}

// InProgressResponse builds a non-terminal response for long-running work.
func InProgressResponse(requestID string, result map[string]any) *Response {
	return &Response{
		RequestID:       requestID,
		Status:          StatusInProgress,
		ProtocolVersion: Version,
		ServerTimestamp: time.Now().UTC(),
		Result:          result,
	}
}

// ErrorResponse builds a terminal error response with the given code.
func ErrorResponse(requestID string, code ErrorCode, message string) *Response {
	return &Response{
		RequestID:       requestID,
		Status:          StatusError,
		ProtocolVersion: Version,
		ServerTimestamp: time.Now().UTC(),
		Error:           &ErrorDetail{Code: code, Message: message},
	}
}

// StreamChunk carries one unit of a streamed response. Chunks for a request
// are delivered in send order; the chunk with FinalChunk set is the
// end-of-stream signal, there is no separate close frame.
type StreamChunk struct {
	RequestID       string    `json:"request_id"`
	ServerTimestamp time.Time `json:"server_timestamp"`
	Payload         []byte    `json:"payload,omitempty"`
	FinalChunk      bool      `json:"final_chunk,omitempty"`
}

// NewStreamChunk builds a chunk for requestID carrying payload.
func NewStreamChunk(requestID string, payload []byte, final bool) *StreamChunk {
	return &StreamChunk{
		RequestID:       requestID,
		ServerTimestamp: time.Now().UTC(),
		Payload:         payload,
		FinalChunk:      final,
	}
}
