package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/lydakis/trajbridge/internal/config"
	"github.com/lydakis/trajbridge/internal/ipc"
)

const maxPayloadSize = 1 << 20

func runRequest(ctx context.Context, args []string) int {
	var (
		configPath      string
		socket          string
		isGuidance      bool
		includeMetadata bool
		timeout         time.Duration
	)

	flags := pflag.NewFlagSet("trajbridge request", pflag.ContinueOnError)
	flags.SetOutput(rootStderr)
	flags.StringVar(&configPath, "config", "", "config file used to locate the socket")
	flags.StringVar(&socket, "socket", "", "socket path (overrides config)")
	flags.BoolVar(&isGuidance, "guidance", false, "return only the final point of the descent stage")
	flags.BoolVar(&includeMetadata, "metadata", false, "return the full engine result")
	flags.DurationVar(&timeout, "timeout", 2*time.Minute, "give up waiting for a response after this long")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if rest := flags.Args(); len(rest) > 0 {
		fmt.Fprintf(rootStderr, "trajbridge request: unexpected argument: %s\n", rest[0])
		return exitUsage
	}

	if socket == "" {
		path, err := configuredSocket(configPath)
		if err != nil {
			fmt.Fprintf(rootStderr, "trajbridge request: %v\n", err)
			return exitError
		}
		socket = path
	}

	payload, err := io.ReadAll(io.LimitReader(rootStdin, maxPayloadSize+1))
	if err != nil {
		fmt.Fprintf(rootStderr, "trajbridge request: reading payload: %v\n", err)
		return exitError
	}
	if len(payload) > maxPayloadSize {
		fmt.Fprintf(rootStderr, "trajbridge request: payload exceeds %d bytes\n", maxPayloadSize)
		return exitUsage
	}

	msg, err := ipc.NewEnvelope(payload, isGuidance, includeMetadata)
	if err != nil {
		fmt.Fprintf(rootStderr, "trajbridge request: %v\n", err)
		return exitUsage
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := ipc.Dial(ctx, socket)
	if err != nil {
		fmt.Fprintf(rootStderr, "trajbridge request: %v\n", err)
		return exitError
	}
	defer client.Close()

	resp, err := client.Do(ctx, msg)
	if err != nil {
		fmt.Fprintf(rootStderr, "trajbridge request: %v\n", err)
		return exitError
	}

	fmt.Fprintf(rootStdout, "%s\n", resp)
	if e, ok := ipc.DecodeError(resp); ok {
		fmt.Fprintf(rootStderr, "trajbridge request: %s: %s\n", e.Code, e.Message)
		return exitError
	}
	return exitOK
}

func configuredSocket(configPath string) (string, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.SocketPath(), nil
}
