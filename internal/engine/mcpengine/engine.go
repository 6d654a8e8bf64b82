// Package mcpengine runs predictions through a tool exposed by an MCP server.
//
// The server is reached over stdio (a spawned subprocess) or streamable
// HTTP. One connection is opened lazily on first use, dropped after any
// transport error, and closed once it has been idle for the configured
// timeout. The next call reconnects.
package mcpengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lydakis/trajbridge/internal/config"
	"github.com/lydakis/trajbridge/internal/engine"
)

// Engine is an engine.Engine backed by MCP tools.
type Engine struct {
	cfg     config.MCPConfig
	logger  *slog.Logger
	connect func(ctx context.Context, cfg config.MCPConfig) (*connection, error)
	idle    *keepalive

	mu   sync.Mutex
	conn *connection
}

var _ engine.Engine = (*Engine)(nil)

// New creates an MCP engine. No connection is made until the first call.
func New(cfg config.MCPConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		connect: connect,
	}
	e.idle = newKeepalive(cfg.IdleTimeoutDuration(), e.dropIdle)
	return e
}

// Normalize calls the configured normalize tool, or returns the payload
// unchanged when none is configured.
func (e *Engine) Normalize(ctx context.Context, payload engine.Payload) (engine.Request, error) {
	if e.cfg.NormalizeTool == "" {
		return payload, nil
	}
	return e.call(ctx, e.cfg.NormalizeTool, payload)
}

// Predict calls the configured predict tool with the normalized request.
func (e *Engine) Predict(ctx context.Context, req engine.Request) (engine.Result, error) {
	return e.call(ctx, e.cfg.PredictTool, req)
}

// Close stops the idle timer and disconnects from the server.
func (e *Engine) Close() error {
	e.idle.stop()

	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	if conn != nil && conn.close != nil {
		return conn.close()
	}
	return nil
}

func (e *Engine) call(ctx context.Context, tool string, argsJSON json.RawMessage) (json.RawMessage, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return nil, err
	}

	e.idle.begin()
	defer e.idle.end()

	conn, err := e.getOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	result, err := conn.callTool(ctx, tool, args)
	if err != nil {
		e.invalidate(conn)
		return nil, fmt.Errorf("calling %s: %w", tool, err)
	}
	return unwrap(result)
}

func (e *Engine) getOrCreate(ctx context.Context) (*connection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		return e.conn, nil
	}

	conn, err := e.connect(ctx, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to mcp engine: %w", err)
	}
	e.logger.Debug("mcp engine connected")
	e.conn = conn
	return conn, nil
}

func (e *Engine) invalidate(conn *connection) {
	e.mu.Lock()
	if e.conn == conn {
		e.conn = nil
	}
	e.mu.Unlock()

	if conn != nil && conn.close != nil {
		conn.close() //nolint: errcheck
	}
}

func (e *Engine) dropIdle() {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	if conn == nil {
		return
	}
	e.logger.Debug("closing idle mcp engine connection")
	if conn.close != nil {
		conn.close() //nolint: errcheck
	}
}

func decodeArgs(data json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: tool arguments must be a JSON object: %v", engine.ErrInvalidRequest, err)
	}
	return args, nil
}
