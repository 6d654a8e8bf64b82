package mcpengine

import (
	"context"
	"fmt"

	"github.com/lydakis/trajbridge/internal/config"
	"github.com/lydakis/trajbridge/internal/httpheaders"
	"github.com/lydakis/trajbridge/internal/version"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const protocolVersion = "2025-11-25"

// connection wraps an MCP client with its transport.
type connection struct {
	callTool func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	close    func() error
}

func connect(ctx context.Context, cfg config.MCPConfig) (*connection, error) {
	switch {
	case cfg.IsStdio():
		return connectStdio(ctx, cfg)
	case cfg.IsHTTP():
		return connectHTTP(ctx, cfg)
	default:
		return nil, fmt.Errorf("mcp engine: no command or url configured")
	}
}

func connectStdio(ctx context.Context, cfg config.MCPConfig) (*connection, error) {
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	c, err := mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("creating stdio client: %w", err)
	}

	if err := initialize(ctx, c); err != nil {
		c.Close()
		return nil, err
	}
	return wrap(c), nil
}

func connectHTTP(ctx context.Context, cfg config.MCPConfig) (*connection, error) {
	headers := httpheaders.Canonical(cfg.Headers)
	httpheaders.SetDefault(headers, "User-Agent", userAgent())

	c, err := mcpclient.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting HTTP client: %w", err)
	}

	if err := initialize(ctx, c); err != nil {
		c.Close()
		return nil, err
	}
	return wrap(c), nil
}

func userAgent() string {
	return "trajbridge/" + version.Version
}

func initialize(ctx context.Context, c *mcpclient.Client) error {
	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "trajbridge",
				Version: version.Version,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}); err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	return nil
}

func wrap(c *mcpclient.Client) *connection {
	return &connection{
		callTool: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			return c.CallTool(ctx, mcp.CallToolRequest{
				Params: mcp.CallToolParams{
					Name:      name,
					Arguments: args,
				},
			})
		},
		close: func() error {
			return c.Close()
		},
	}
}
