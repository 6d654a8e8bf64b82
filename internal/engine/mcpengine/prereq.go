package mcpengine

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lydakis/trajbridge/internal/config"
)

var lookPath = exec.LookPath

// CheckCommand reports whether the stdio engine command can be started.
// When the command is env(1), the program it wraps is checked as well.
func CheckCommand(cfg config.MCPConfig) error {
	if !cfg.IsStdio() {
		return nil
	}

	command := strings.TrimSpace(cfg.Command)
	if _, err := lookPath(command); err != nil {
		return fmt.Errorf("engine command %q not found in PATH", command)
	}
	if filepath.Base(command) != "env" {
		return nil
	}

	wrapped := envTarget(cfg.Args)
	if wrapped == "" {
		return nil
	}
	if _, err := lookPath(wrapped); err != nil {
		return fmt.Errorf("engine command %q not found in PATH", wrapped)
	}
	return nil
}

// envTarget returns the program env(1) would run given args.
func envTarget(args []string) string {
	for i := 0; i < len(args); i++ {
		token := strings.TrimSpace(args[i])
		switch {
		case token == "":
		case token == "--":
			return firstCommand(args[i+1:])
		case token == "-S" || token == "--split-string":
			if i+1 >= len(args) {
				return ""
			}
			i++
			if target := envTarget(strings.Fields(args[i])); target != "" {
				return target
			}
		case strings.HasPrefix(token, "-S="), strings.HasPrefix(token, "--split-string="):
			_, raw, _ := strings.Cut(token, "=")
			if target := envTarget(strings.Fields(raw)); target != "" {
				return target
			}
		case token == "-u" || token == "--unset" || token == "-C" || token == "--chdir":
			i++
		case strings.HasPrefix(token, "-"):
		case strings.Index(token, "=") > 0:
			// NAME=value assignment.
		default:
			return unquote(token)
		}
	}
	return ""
}

func firstCommand(args []string) string {
	for _, raw := range args {
		token := unquote(strings.TrimSpace(raw))
		if token == "" || strings.Index(token, "=") > 0 {
			continue
		}
		return token
	}
	return ""
}

func unquote(token string) string {
	if len(token) < 2 {
		return token
	}
	first, last := token[0], token[len(token)-1]
	if (first == '\'' || first == '"') && first == last {
		return token[1 : len(token)-1]
	}
	return token
}
