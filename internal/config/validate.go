package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// maxReadSize bounds the per-connection read buffer.
const maxReadSize = 1 << 20

// Validate checks the configuration and returns every problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error

	if cfg.ReadSize <= 0 || cfg.ReadSize > maxReadSize {
		errs = append(errs, fmt.Errorf("read_size: must be between 1 and %d, got %d", maxReadSize, cfg.ReadSize))
	}

	switch cfg.DisconnectPolicy {
	case DisconnectConnection, DisconnectShutdown:
	default:
		errs = append(errs, fmt.Errorf("disconnect_policy: must be %q or %q, got %q", DisconnectConnection, DisconnectShutdown, cfg.DisconnectPolicy))
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	errs = append(errs, validateEngine(cfg.Engine)...)
	return errors.Join(errs...)
}

// ParseLogLevel maps a config log level name to a slog level.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid level %q", name)
	}
	return level, nil
}

func validateEngine(e EngineConfig) []error {
	var errs []error

	errs = append(errs, validateDuration("engine.timeout", e.Timeout, false)...)
	errs = append(errs, validateDuration("engine.cache_ttl", e.CacheTTL, true)...)

	switch e.Backend {
	case BackendTawhiri:
		if strings.TrimSpace(e.URL) == "" {
			errs = append(errs, fmt.Errorf("engine.url: required for the %s backend", BackendTawhiri))
		} else if _, err := url.ParseRequestURI(e.URL); err != nil {
			errs = append(errs, fmt.Errorf("engine.url: invalid URL %q: %w", e.URL, err))
		}
	case BackendMCP:
		errs = append(errs, validateMCP(e.MCP)...)
	default:
		errs = append(errs, fmt.Errorf("engine.backend: must be %q or %q, got %q", BackendTawhiri, BackendMCP, e.Backend))
	}
	return errs
}

func validateMCP(m MCPConfig) []error {
	var errs []error

	hasCommand := strings.TrimSpace(m.Command) != ""
	hasURL := strings.TrimSpace(m.URL) != ""

	switch {
	case hasCommand && hasURL:
		errs = append(errs, fmt.Errorf("engine.mcp: configure either command (stdio) or url (http), not both"))
	case !hasCommand && !hasURL:
		errs = append(errs, fmt.Errorf("engine.mcp: missing transport, set command (stdio) or url (http)"))
	}

	if hasURL {
		if _, err := url.ParseRequestURI(m.URL); err != nil {
			errs = append(errs, fmt.Errorf("engine.mcp.url: invalid URL %q: %w", m.URL, err))
		}
	}
	if strings.TrimSpace(m.PredictTool) == "" {
		errs = append(errs, fmt.Errorf("engine.mcp.predict_tool: required"))
	}
	errs = append(errs, validateDuration("engine.mcp.idle_timeout", m.IdleTimeout, false)...)
	return errs
}

func validateDuration(field, value string, allowZero bool) []error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}
	if d < 0 || (d == 0 && !allowZero) {
		return []error{fmt.Errorf("%s: must be > 0, got %q", field, value)}
	}
	return nil
}
