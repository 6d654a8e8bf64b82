package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/lydakis/trajbridge/internal/paths"
)

// EnvPrefix prefixes every environment override, e.g. TRAJBRIDGE_SOCKET.
const EnvPrefix = "TRAJBRIDGE_"

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the default config file and applies environment overrides.
// A missing config file yields Default() (no error).
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadFrom reads and parses a config file at the given path, then applies
// environment overrides. Precedence: defaults < file < environment.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		expandConfigEnvVars(cfg)
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

func expandConfigEnvVars(cfg *Config) {
	cfg.Socket = expandEnvVars(cfg.Socket)
	cfg.Engine.URL = expandEnvVars(cfg.Engine.URL)

	m := &cfg.Engine.MCP
	m.Command = expandEnvVars(m.Command)
	m.URL = expandEnvVars(m.URL)
	for i := range m.Args {
		m.Args[i] = expandEnvVars(m.Args[i])
	}
	for k, v := range m.Env {
		m.Env[k] = expandEnvVars(v)
	}
	for k, v := range m.Headers {
		m.Headers[k] = expandEnvVars(v)
	}
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment variable.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // leave unresolved vars as-is
	})
}
