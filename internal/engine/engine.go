// Package engine defines the contract between the bridge and an external
// trajectory prediction engine.
//
// The bridge treats the engine as opaque: it hands over a Payload, receives
// a normalized Request back, and later a Result. Only the sentinel errors
// below carry meaning across the boundary.
package engine

import (
	"context"
	"encoding/json"
	"errors"
)

// Payload is a request envelope with the local-only control flags removed.
type Payload = json.RawMessage

// Request is a Payload after the engine's own normalization step. Its shape
// belongs to the backend that produced it.
type Request = json.RawMessage

// Result is the engine's prediction document, kept byte-for-byte. It is
// expected to carry a "prediction" array of stages, each with a
// "trajectory" array of points.
type Result = json.RawMessage

var (
	// ErrOutOfRange reports a request outside the engine's dataset window.
	ErrOutOfRange = errors.New("unsupported time range")
	// ErrInvalidRequest reports a payload the engine refused to parse.
	ErrInvalidRequest = errors.New("invalid prediction request")
)

// Engine normalizes and runs predictions.
type Engine interface {
	Normalize(ctx context.Context, payload Payload) (Request, error)
	Predict(ctx context.Context, req Request) (Result, error)
	Close() error
}
