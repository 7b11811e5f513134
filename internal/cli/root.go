// Package cli is a thin spf13/cobra root command: it owns argv
// tokenization and global-flag parsing only (--help, --version, --json,
// --quiet, --verbose, --debug, --log-level, --no-cache, --only-available,
// --dry-run). Everything after the global flags — the command path itself
// — is handed to the Dispatcher verbatim; Cobra never resolves command
// paths on its own, since colon/space/group-traversal semantics are
// bespoke to this system. Grounded on kcli/internal/cli/root.go's
// app-struct-plus-persistent-flags shape and kcli/cmd/kcli/main.go's
// process-start-time recording.
package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kblabs/kb/internal/command"
	"github.com/kblabs/kb/internal/dispatcher"
	"github.com/kblabs/kb/internal/version"
)

var processStart time.Time

// SetProcessStart records the process launch time; call this as the very
// first statement in main() before any other work.
func SetProcessStart(t time.Time) { processStart = t }

// ProcessStart returns the recorded process start time.
func ProcessStart() time.Time { return processStart }

// Runner is satisfied by dispatcher.Dispatcher; kept as an interface here
// so cli never imports the concrete wiring main.go assembles.
type Runner interface {
	Run(ctx *command.Context, argv []string) dispatcher.Outcome
}

type globals struct {
	jsonOut       bool
	quiet         bool
	verbose       bool
	debug         bool
	logLevel      string
	noCache       bool
	onlyAvailable bool
	dryRun        bool
}

// NewRootCommand builds the root command. run is invoked with the
// post-global-flag argv; everything about resolving that argv into a
// command belongs to the Dispatcher.
func NewRootCommand(run Runner, workspaceRoot string, out, errOut io.Writer) *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "kb",
		Short:         "Extensible plugin dispatcher for the kb CLI",
		Version:       version.Effective(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := &command.Context{
				Context:       context.Background(),
				WorkspaceRoot: workspaceRoot,
				Stdout:        out,
				Stderr:        errOut,
				CorrelationID: uuid.New().String(),
				Global: command.GlobalFlags{
					JSON:          g.jsonOut,
					Quiet:         g.quiet,
					Verbose:       g.verbose,
					Debug:         g.debug,
					OnlyAvailable: g.onlyAvailable,
					NoCache:       g.noCache,
					DryRun:        g.dryRun,
				},
			}
			outcome := run.Run(ctx, args)
			if outcome.Message != "" {
				io.WriteString(errOut, outcome.Message+"\n")
			}
			if outcome.ExitCode != 0 {
				os.Exit(outcome.ExitCode)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "switch presenter to JSON")
	cmd.PersistentFlags().BoolVar(&g.quiet, "quiet", false, "suppress non-summary output")
	cmd.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "raise verbosity")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "raise verbosity to debug")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "explicit log level name")
	cmd.PersistentFlags().BoolVar(&g.noCache, "no-cache", false, "bypass the discovery cache store for this run")
	cmd.PersistentFlags().BoolVar(&g.onlyAvailable, "only-available", false, "filter listings to available commands only")
	cmd.PersistentFlags().BoolVar(&g.dryRun, "dry-run", false, "advisory; propagated to the handler")
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	return cmd
}

// GlobalLogLevel exposes the parsed --log-level/--quiet/--verbose/--debug
// combination for main.go to build the logger before handlers run. A
// --log-level of "debug", "verbose", or "quiet"/"error" sets the matching
// flag; any other name leaves the boolean flags as parsed.
func GlobalLogLevel(cmd *cobra.Command) (quiet, verbose, debug bool) {
	q, _ := cmd.PersistentFlags().GetBool("quiet")
	v, _ := cmd.PersistentFlags().GetBool("verbose")
	d, _ := cmd.PersistentFlags().GetBool("debug")
	lvl, _ := cmd.PersistentFlags().GetString("log-level")
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		d = true
	case "verbose":
		v = true
	case "quiet", "error":
		q = true
	}
	return q, v, d
}

// os.Stdin/os.Stdout are not referenced directly by this package — main.go
// owns process-level I/O wiring — so no package-level io vars are kept
// here besides what NewRootCommand takes as parameters.
