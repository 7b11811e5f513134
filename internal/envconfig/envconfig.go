// Package envconfig centralizes the environment variables spec.md §6 says
// the dispatcher consumes, rather than scattering os.Getenv calls across
// the CLI tree the way the teacher codebase does.
package envconfig

import "github.com/caarlos0/env/v11"

// Env is the process environment bound once at startup.
type Env struct {
	// CLIVersion overrides the compiled-in host version used by Preflight's
	// engine.kbCli check.
	CLIVersion string `env:"CLI_VERSION"`
	// NoCache is equivalent to passing --no-cache on every invocation.
	NoCache bool `env:"KB_PLUGIN_NO_CACHE"`
	// Profile selects a named profile from the config Store, same role as
	// the teacher's active-profile switch.
	Profile string `env:"KB_PROFILE"`
	// HomeDir overrides the default ~/.kb directory; primarily for tests.
	HomeDir string `env:"KB_HOME_DIR"`
}

// Load parses the current process environment into an Env.
func Load() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}
