// Package version exposes the compiled-in host version used by Preflight's
// engine.kbCli check and the --version flag.
package version

import "os"

// Version, Commit and BuildDate are overridden at link time via
// -ldflags "-X github.com/kblabs/kb/internal/version.Version=...".
var (
	Version   = "0.1.0-dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Effective returns the version Preflight should compare against: the
// CLI_VERSION environment variable overrides the compiled-in value so
// tests and CI can pin a specific host version.
func Effective() string {
	if v := os.Getenv("CLI_VERSION"); v != "" {
		return v
	}
	return Version
}
