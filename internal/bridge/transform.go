// Package bridge implements the per-message protocol between a bridge
// client and the prediction engine: decode the envelope, strip the control
// flags, run the engine, and shape the response the flags ask for.
package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lydakis/trajbridge/internal/engine"
	"github.com/lydakis/trajbridge/internal/ipc"
)

// Transformer turns request messages into response messages.
type Transformer struct {
	engine engine.Engine
	logger *slog.Logger
}

// New returns a Transformer calling eng. A nil logger uses slog.Default().
func New(eng engine.Engine, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{engine: eng, logger: logger}
}

// Handle satisfies ipc.Handler. Failures become error responses; the
// connection is never dropped for a bad request.
func (t *Transformer) Handle(ctx context.Context, msg []byte) []byte {
	resp, err := t.Transform(ctx, msg)
	if err != nil {
		code := Classify(err)
		t.logger.Warn("request failed", "code", code, "error", err)
		return ipc.EncodeError(code, err.Error())
	}
	return resp
}

// Transform runs one request through the engine and shapes the result.
func (t *Transformer) Transform(ctx context.Context, msg []byte) ([]byte, error) {
	env, err := ParseEnvelope(msg)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("envelope",
		"is_guidance", env.IsGuidance,
		"include_metadata", env.IncludeMetadata,
	)

	req, err := t.engine.Normalize(ctx, env.Payload)
	if err != nil {
		return nil, err
	}
	res, err := t.engine.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	return Shape(res, env)
}

// Classify maps a Transform error to an error response code.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrMalformed), errors.Is(err, engine.ErrInvalidRequest):
		return ipc.CodeInvalidRequest
	case errors.Is(err, engine.ErrOutOfRange):
		return ipc.CodeOutOfRange
	default:
		return ipc.CodeEngineError
	}
}
