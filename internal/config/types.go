package config

import (
	"time"

	"github.com/lydakis/trajbridge/internal/paths"
)

// Disconnect policies decide what a zero-byte read from the peer means.
const (
	// DisconnectConnection ends only the current connection.
	DisconnectConnection = "connection"
	// DisconnectShutdown ends the connection and shuts the bridge down.
	DisconnectShutdown = "shutdown"
)

// Engine backends.
const (
	BackendTawhiri = "tawhiri"
	BackendMCP     = "mcp"
)

// DefaultReadSize is the bound on a single request read.
const DefaultReadSize = 1024

// Config is the top-level trajbridge configuration.
type Config struct {
	Socket           string       `toml:"socket" env:"SOCKET"`
	ReadSize         int          `toml:"read_size" env:"READ_SIZE"`
	DisconnectPolicy string       `toml:"disconnect_policy" env:"DISCONNECT_POLICY"`
	LogLevel         string       `toml:"log_level" env:"LOG_LEVEL"`
	Engine           EngineConfig `toml:"engine" envPrefix:"ENGINE_"`
}

// EngineConfig selects and configures the prediction engine.
type EngineConfig struct {
	Backend  string    `toml:"backend" env:"BACKEND"`
	URL      string    `toml:"url" env:"URL"`
	Timeout  string    `toml:"timeout" env:"TIMEOUT"`
	CacheTTL string    `toml:"cache_ttl" env:"CACHE_TTL"`
	MCP      MCPConfig `toml:"mcp" envPrefix:"MCP_"`
}

// MCPConfig describes an engine served over MCP.
type MCPConfig struct {
	// Stdio transport
	Command string            `toml:"command" env:"COMMAND"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`

	// HTTP transport
	URL     string            `toml:"url" env:"URL"`
	Headers map[string]string `toml:"headers"`

	NormalizeTool string `toml:"normalize_tool" env:"NORMALIZE_TOOL"`
	PredictTool   string `toml:"predict_tool" env:"PREDICT_TOOL"`
	IdleTimeout   string `toml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// IsStdio returns true if the engine is spawned as a subprocess.
func (m MCPConfig) IsStdio() bool {
	return m.Command != ""
}

// IsHTTP returns true if the engine is reached over streamable HTTP.
func (m MCPConfig) IsHTTP() bool {
	return m.URL != ""
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		ReadSize:         DefaultReadSize,
		DisconnectPolicy: DisconnectConnection,
		LogLevel:         "info",
		Engine: EngineConfig{
			Backend: BackendTawhiri,
			URL:     "http://localhost:8000",
			Timeout: "60s",
			MCP: MCPConfig{
				PredictTool: "run_prediction",
				IdleTimeout: "60s",
			},
		},
	}
}

// SocketPath returns the configured socket path, or the XDG default.
func (c *Config) SocketPath() string {
	if c.Socket != "" {
		return c.Socket
	}
	return paths.SocketPath()
}

// TimeoutDuration returns the per-call engine timeout. Call after Validate.
func (e EngineConfig) TimeoutDuration() time.Duration {
	return durationOr(e.Timeout, 60*time.Second)
}

// CacheTTLDuration returns the prediction cache TTL; zero disables caching.
// Call after Validate.
func (e EngineConfig) CacheTTLDuration() time.Duration {
	return durationOr(e.CacheTTL, 0)
}

// IdleTimeoutDuration returns how long an idle MCP engine connection is kept.
// Call after Validate.
func (m MCPConfig) IdleTimeoutDuration() time.Duration {
	return durationOr(m.IdleTimeout, 60*time.Second)
}

// durationOr parses s, returning fallback when s is empty. Validate rejects
// every value it cannot parse, so the error branch is unreachable there.
func durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
