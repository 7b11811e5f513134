// Package command defines the contract external collaborators (built-ins
// and plugin loaders) satisfy to be dispatched: the Command/CommandGroup
// union of spec.md §3/§9 and the DispatcherContext bag of host services
// threaded into every invocation, modeled as a tagged sum type per spec.md
// §9's explicit re-architecture note. Grounded on kcli/pkg/api's Client,
// the teacher's own stable entry point into its command tree, adapted from
// a single fixed CLI to an open set of dynamically registered commands.
package command

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kblabs/kb/internal/manifestmodel"
)

// GlobalFlags are the flags spec.md §4.F.6.a says are merged into every
// handler's flags before it runs.
type GlobalFlags struct {
	JSON          bool
	Quiet         bool
	Verbose       bool
	Debug         bool
	OnlyAvailable bool
	NoCache       bool
	DryRun        bool
}

// Context is the opaque bag of host services threaded into every handler
// invocation (spec.md's "Dispatcher context" glossary entry).
type Context struct {
	context.Context

	WorkspaceRoot string
	Stdout        io.Writer
	Stderr        io.Writer
	Logger        *zap.SugaredLogger
	Global        GlobalFlags
	Deadline      time.Time

	// CorrelationID identifies this invocation across telemetry and crash
	// reports (SPEC_FULL.md §B.3).
	CorrelationID string
}

// Result is what a Handler returns on success; ExitCode defaults to 0 when
// unset (spec.md §4.F.7: "If the handler returns an integer, return it;
// otherwise 0 on success").
type Result struct {
	ExitCode int
}

// Handler is the function a Command ultimately runs. argv excludes the
// resolved command path itself. flags is the merged global+manifest flag
// set already parsed into the right Go types per each Flag.Type.
type Handler func(ctx *Context, argv []string, flags map[string]any) (Result, error)

// Command pairs a RegisteredCommand's static descriptor with the Handler
// that implements it, loaded lazily by the Dispatcher (spec.md §4.F step 5:
// "Handler load").
type Command struct {
	Registered manifestmodel.RegisteredCommand
	Load       func() (Handler, error)
}

// ID is a convenience accessor mirroring RegisteredCommand.ID.
func (c Command) ID() string { return c.Registered.Manifest.ID }
