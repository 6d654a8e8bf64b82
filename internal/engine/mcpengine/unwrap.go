package mcpengine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lydakis/trajbridge/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
)

// unwrap extracts the JSON document from a tool result. Structured content
// wins; otherwise the first text item must hold JSON.
func unwrap(result *mcp.CallToolResult) (json.RawMessage, error) {
	if result == nil {
		return nil, fmt.Errorf("mcp engine: empty tool result")
	}

	if result.IsError {
		return nil, toolError(textOf(result))
	}

	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("mcp engine: encoding structured content: %w", err)
		}
		return data, nil
	}

	text := textOf(result)
	if text == "" {
		return nil, fmt.Errorf("mcp engine: tool returned no content")
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("mcp engine: tool returned non-JSON text")
	}
	return json.RawMessage(text), nil
}

func textOf(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			return strings.TrimSpace(c.Text)
		case *mcp.TextContent:
			return strings.TrimSpace(c.Text)
		}
	}
	return ""
}

// toolError maps a tool-reported failure onto the engine sentinels.
func toolError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "predictionexception"),
		strings.Contains(lower, "invaliddatasetexception"),
		strings.Contains(lower, "out of range"),
		strings.Contains(lower, "outside of time range"):
		return fmt.Errorf("%w: %s", engine.ErrOutOfRange, msg)
	case strings.Contains(lower, "requestexception"),
		strings.Contains(lower, "invalid params"):
		return fmt.Errorf("%w: %s", engine.ErrInvalidRequest, msg)
	default:
		if msg == "" {
			msg = "tool reported an error"
		}
		return fmt.Errorf("mcp engine: %s", msg)
	}
}
