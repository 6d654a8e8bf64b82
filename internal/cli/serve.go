package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/lydakis/trajbridge/internal/daemon"
)

var runDaemon = daemon.Run

func runServe(ctx context.Context, args []string) int {
	var opts daemon.Options

	flags := pflag.NewFlagSet("trajbridge serve", pflag.ContinueOnError)
	flags.SetOutput(rootStderr)
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/trajbridge/config.toml)")
	flags.StringVar(&opts.Socket, "socket", "", "socket path (default $XDG_RUNTIME_DIR/trajbridge/bridge.sock)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every message at debug level")
	flags.StringVar(&opts.DisconnectPolicy, "disconnect-policy", "", "on peer disconnect: connection (keep serving) or shutdown (exit)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if rest := flags.Args(); len(rest) > 0 {
		fmt.Fprintf(rootStderr, "trajbridge serve: unexpected argument: %s\n", rest[0])
		return exitUsage
	}

	opts.LogOutput = rootStderr
	if err := runDaemon(ctx, opts); err != nil {
		fmt.Fprintf(rootStderr, "trajbridge: %v\n", err)
		return exitError
	}
	return exitOK
}
