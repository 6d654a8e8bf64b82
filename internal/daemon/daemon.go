// Package daemon runs the bridge process: it loads configuration, builds
// the prediction engine, binds the socket, and serves until interrupted.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lydakis/trajbridge/internal/bridge"
	"github.com/lydakis/trajbridge/internal/cache"
	"github.com/lydakis/trajbridge/internal/config"
	"github.com/lydakis/trajbridge/internal/engine"
	"github.com/lydakis/trajbridge/internal/engine/mcpengine"
	"github.com/lydakis/trajbridge/internal/engine/tawhiri"
	"github.com/lydakis/trajbridge/internal/ipc"
	"github.com/lydakis/trajbridge/internal/paths"
)

// Options override configuration from the command line.
type Options struct {
	ConfigPath       string
	Socket           string
	DisconnectPolicy string
	Verbose          bool

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

var newEngineFn = newEngine

// Run serves until ctx is cancelled or the disconnect policy ends the
// process. Startup failures are returned before anything is served. The
// socket file and the engine are released on every return path.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return err
	}

	eng, err := newEngineFn(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("closing engine", "error", err)
		}
	}()

	socket := cfg.SocketPath()
	if err := paths.EnsureDir(filepath.Dir(socket)); err != nil {
		return fmt.Errorf("creating socket dir: %w", err)
	}

	transformer := bridge.New(eng, logger)
	srv, err := ipc.Listen(socket, transformer.Handle, ipc.Options{
		ReadSize:             cfg.ReadSize,
		ShutdownOnDisconnect: cfg.DisconnectPolicy == config.DisconnectShutdown,
		Logger:               logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("closing server", "error", err)
		}
	}()

	logger.Info("listening",
		"socket", socket,
		"engine", cfg.Engine.Backend,
		"disconnect_policy", cfg.DisconnectPolicy,
	)

	err = srv.Serve(ctx)
	logger.Info("shutting down")
	return err
}

func loadConfig(opts Options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFrom(opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.Socket != "" {
		cfg.Socket = opts.Socket
	}
	if opts.DisconnectPolicy != "" {
		cfg.DisconnectPolicy = opts.DisconnectPolicy
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

func newEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	var eng engine.Engine
	switch cfg.Engine.Backend {
	case config.BackendTawhiri:
		eng = tawhiri.New(cfg.Engine.URL, cfg.Engine.TimeoutDuration())
	case config.BackendMCP:
		if err := mcpengine.CheckCommand(cfg.Engine.MCP); err != nil {
			return nil, err
		}
		eng = mcpengine.New(cfg.Engine.MCP, logger)
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Engine.Backend)
	}
	return cache.Wrap(eng, cfg.Engine.CacheTTLDuration()), nil
}
