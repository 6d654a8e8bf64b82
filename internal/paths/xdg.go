// Package paths locates the trajbridge config file and bridge socket.
package paths

import (
	"os"
	"path/filepath"
	"strconv"
)

const appName = "trajbridge"

// ConfigFile returns $XDG_CONFIG_HOME/trajbridge/config.toml, defaulting
// XDG_CONFIG_HOME to ~/.config.
func ConfigFile() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home := os.Getenv("HOME")
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName, "config.toml")
}

// RuntimeDir returns the directory holding the bridge socket:
// $XDG_RUNTIME_DIR/trajbridge, or a per-user directory under the system
// temp dir when no runtime dir is set.
func RuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(os.TempDir(), appName+"-"+strconv.Itoa(os.Getuid()))
}

// SocketPath returns the default bridge socket path.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "bridge.sock")
}

// EnsureDir creates dir and its parents, private to the current user.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
