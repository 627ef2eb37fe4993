package protocol

import (
	"encoding/json"

	"github.com/context-cleaner/supervise-go/internal/errors"
)

// The wire representation is compact JSON, one message per frame, with no
// embedded newlines. Unknown incoming fields are ignored for forward
// compatibility; missing required fields fail with a ProtocolError.
//
// Encode and Decode are inverse: Decode(Encode(x)) preserves every field.

// EncodeRequest serializes r to its canonical wire form.
func EncodeRequest(r *Request) ([]byte, error) {
	if err := validateRequest(r); err != nil {
		return nil, err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, &errors.ProtocolError{Reason: "encode request", Err: err}
	}

	return data, nil
}

// DecodeRequest parses one wire payload into a Request.
func DecodeRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &errors.ProtocolError{Reason: "decode request", Err: err}
	}

	if err := validateRequest(&r); err != nil {
		return nil, err
	}

	return &r, nil
}

func validateRequest(r *Request) error {
	if r.RequestID == "" {
		return &errors.ProtocolError{Reason: "request missing request_id"}
	}

	if r.Action == "" {
		return &errors.ProtocolError{Reason: "request missing action"}
	}

	if _, err := ParseAction(string(r.Action)); err != nil {
		return err
	}

	return nil
}

// EncodeResponse serializes r to its canonical wire form.
func EncodeResponse(r *Response) ([]byte, error) {
	if err := validateResponse(r); err != nil {
		return nil, err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, &errors.ProtocolError{Reason: "encode response", Err: err}
	}

	return data, nil
}

// DecodeResponse parses one wire payload into a Response.
func DecodeResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &errors.ProtocolError{Reason: "decode response", Err: err}
	}

	if err := validateResponse(&r); err != nil {
		return nil, err
	}

	return &r, nil
}

func validateResponse(r *Response) error {
	if r.RequestID == "" {
		return &errors.ProtocolError{Reason: "response missing request_id"}
	}

	if r.Status == "" {
		return &errors.ProtocolError{Reason: "response missing status"}
	}

	return nil
}

// EncodeStreamChunk serializes c to its canonical wire form.
func EncodeStreamChunk(c *StreamChunk) ([]byte, error) {
	if c.RequestID == "" {
		return nil, &errors.ProtocolError{Reason: "stream chunk missing request_id"}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, &errors.ProtocolError{Reason: "encode stream chunk", Err: err}
	}

	return data, nil
}

// DecodeStreamChunk parses one wire payload into a StreamChunk.
func DecodeStreamChunk(data []byte) (*StreamChunk, error) {
	var c StreamChunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &errors.ProtocolError{Reason: "decode stream chunk", Err: err}
	}

	if c.RequestID == "" {
		return nil, &errors.ProtocolError{Reason: "stream chunk missing request_id"}
	}

	return &c, nil
}
