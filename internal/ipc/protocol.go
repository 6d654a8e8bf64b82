package ipc

import (
	"context"
	"encoding/json"
)

// Control fields read by the bridge and never forwarded to the engine.
const (
	FieldIsGuidance      = "is_guidance"
	FieldIncludeMetadata = "include_metadata"
)

// Error codes carried in error responses.
const (
	CodeInvalidRequest = "invalid_request" // undecodable JSON, bad control flags, rejected payload
	CodeOutOfRange     = "out_of_range"    // request outside the engine's dataset window
	CodeEngineError    = "engine_error"    // engine failure or result missing expected fields
)

// MaxResponseSize bounds what a client will accept for one response.
const MaxResponseSize = 512 << 10

// Handler processes one request message and returns the response bytes.
// It must always return a complete JSON document.
type Handler func(ctx context.Context, msg []byte) []byte

// Error is the body of an error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// ErrorResponse is sent instead of a prediction when a request fails.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// EncodeError renders an error response.
func EncodeError(code, message string) []byte {
	data, err := json.Marshal(ErrorResponse{Error: &Error{Code: code, Message: message}})
	if err != nil {
		return []byte(`{"error":{"code":"engine_error","message":"encoding error response"}}`)
	}
	return data
}

// DecodeError reports whether resp is an error response.
func DecodeError(resp []byte) (*Error, bool) {
	var er ErrorResponse
	if err := json.Unmarshal(resp, &er); err != nil {
		return nil, false
	}
	if er.Error == nil || er.Error.Code == "" {
		return nil, false
	}
	return er.Error, true
}
