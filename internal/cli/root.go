// Package cli implements the trajbridge command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lydakis/trajbridge/internal/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var (
	rootStdin  io.Reader = os.Stdin
	rootStdout io.Writer = os.Stdout
	rootStderr io.Writer = os.Stderr
)

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args)
}

func run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return runServe(ctx, nil)
	}

	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:])
	case "request":
		return runRequest(ctx, args[1:])
	case "version", "--version", "-V":
		fmt.Fprintf(rootStdout, "trajbridge %s\n", version.Version)
		return exitOK
	case "help", "--help", "-h":
		printRootHelp(rootStdout)
		return exitOK
	}

	// Bare flags select the default serve command.
	if len(args[0]) > 0 && args[0][0] == '-' {
		return runServe(ctx, args)
	}

	fmt.Fprintf(rootStderr, "trajbridge: unknown command: %s\n", args[0])
	printRootHelp(rootStderr)
	return exitUsage
}

func printRootHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  trajbridge [serve] [--config PATH] [--socket PATH] [--verbose] [--disconnect-policy connection|shutdown]")
	fmt.Fprintln(out, "  trajbridge request [--socket PATH] [--guidance] [--metadata] < payload.json")
	fmt.Fprintln(out, "  trajbridge version")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Global flags:")
	fmt.Fprintln(out, "  --help, -h       Show help")
	fmt.Fprintln(out, "  --version, -V    Show version")
}
