// Package version holds the build version of trajbridge.
package version

import "runtime/debug"

// Version is set at build time via -ldflags.
var Version = "dev"

func init() {
	Version = resolve(Version)
}

func resolve(defaultVersion string) string {
	if defaultVersion != "" && defaultVersion != "dev" {
		return defaultVersion
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return defaultVersion
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return defaultVersion
	}
	return info.Main.Version
}
