// Package dispatcher implements the Dispatcher of spec.md §4.F: normalize
// the command path, resolve it through the Registry, gate on availability
// and permissions, lazily load the handler, and supervise its execution
// under a timeout, recording telemetry and crashes. Shape grounded on
// kcli/internal/plugin.Run/resolveForInvocation's
// resolve-then-permission-gate-then-exec-then-audit pattern, generalized
// from "exec a subprocess" to "dispatch to an in-process Command".
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kblabs/kb/internal/audit"
	"github.com/kblabs/kb/internal/command"
	"github.com/kblabs/kb/internal/errs"
	"github.com/kblabs/kb/internal/manifestmodel"
	"github.com/kblabs/kb/internal/notify"
	"github.com/kblabs/kb/internal/registry"
	"github.com/kblabs/kb/internal/state"
	"github.com/kblabs/kb/internal/telemetry"
)

// HandlerTimeout is the per-command timeout of spec.md §4.F.6.c: "5-minute
// handler timeout".
const HandlerTimeout = 5 * time.Minute

// Lookup resolves a RegisteredCommand to its command.Handler. Built-ins and
// exec-loaded plugins both arrive through this one function (the caller's
// implementation branches on the manifest's loader), so the Dispatcher
// itself never branches on LoaderKind.
type Lookup func(rc manifestmodel.RegisteredCommand) (command.Handler, error)

// Dispatcher wires together the Registry, PluginState, Telemetry and
// Notifier collaborators behind the single run(argv, ctx) entry point.
type Dispatcher struct {
	Registry  *registry.Registry
	State     *state.State
	Workspace string
	Recorder  telemetry.Recorder
	Notifier  *notify.Notifier
	LoadFor   Lookup
}

// CrashReport mirrors spec.md §4.F.6.d's structured crash report, with the
// correlationID field SPEC_FULL.md §B.3 adds.
type CrashReport struct {
	CommandID     string
	Package       string
	CorrelationID string
	ErrorCode     string
	ErrorMessage  string
	Hint          string
}

// Outcome is what Run returns: the exit code plus enough context for the
// caller's presenter to render a message, and non-nil CrashReport when the
// run ended in an error worth surfacing beyond the exit code.
type Outcome struct {
	ExitCode int
	Message  string
	Hint     string
	Code     string
	Crash    *CrashReport
}

// NormalizePath applies spec.md §4.F step 1: a first token containing
// exactly one ":" splits into [group, name]; two or more splits at every
// colon; anything else passes through as-is (space-form argv).
func NormalizePath(argv []string) []string {
	if len(argv) == 0 {
		return argv
	}
	first := argv[0]
	if strings.Contains(first, ":") {
		parts := strings.Split(first, ":")
		out := append([]string(nil), parts...)
		out = append(out, argv[1:]...)
		return out
	}
	return argv
}

// firstTokenSegments reports the longest prefix of normalized that should be
// tried as a lookup key before shorter prefixes get a chance. When argv[0]
// itself is colon-joined, that is every segment it split into (spec.md §8:
// an id with N colons splits into N+1 segments and matches only as that
// whole path, e.g. "a:b:c" matching only "a:b:c", never "b:c" or "a:b").
// Otherwise (plain space-form argv) it is the first two tokens, e.g.
// "plugins doctor" tried as "plugins:doctor" before "plugins" alone.
func firstTokenSegments(argv []string) int {
	if len(argv) == 0 {
		return 0
	}
	if !strings.Contains(argv[0], ":") {
		if len(argv) >= 2 {
			return 2
		}
		return 1
	}
	return len(strings.Split(argv[0], ":"))
}

// lookupKey joins the leading n segments of normalized back into the key
// Registry.Get expects to try first (colon form), falling back internally
// to space form and group-only. n is clamped to [1, len(normalized)].
func lookupKey(normalized []string, n int) (key string, rest []string) {
	if len(normalized) == 0 {
		return "", nil
	}
	if n > len(normalized) {
		n = len(normalized)
	}
	if n < 1 {
		n = 1
	}
	return strings.Join(normalized[:n], ":"), normalized[n:]
}

// legacyDottedKey converts the legacy "init.profile" form (spec.md §4.F
// step 2d) into its modern colon equivalent.
func legacyDottedKey(first string) (string, bool) {
	if strings.Contains(first, ".") && !strings.Contains(first, ":") {
		return strings.Replace(first, ".", ":", 1), true
	}
	return "", false
}

// Run executes spec.md §4.F's full dispatch sequence for one invocation.
func (d *Dispatcher) Run(ctx *command.Context, argv []string) Outcome {
	normalized := NormalizePath(argv)
	if len(normalized) == 0 {
		return Outcome{ExitCode: 1, Message: "no command given", Code: errs.ErrCmdNotFound.Error()}
	}

	// Try the longest possible id first (every segment argv[0]'s colons
	// produced), then progressively shorter prefixes, so a registered
	// "a:b:c" is matched whole before "a:b" or the bare group "a" ever get
	// a chance to shadow it.
	var rest []string
	var result registry.LookupResult
	for n := firstTokenSegments(argv); n >= 1; n-- {
		key, r := lookupKey(normalized, n)
		if res := d.Registry.Get(key); res.Command != nil || res.Group != nil {
			rest, result = r, res
			break
		}
	}

	if result.Command == nil && result.Group == nil {
		if dotted, ok := legacyDottedKey(normalized[0]); ok {
			result = d.Registry.Get(dotted)
			rest = normalized[1:]
		}
	}

	if result.Group != nil {
		return Outcome{ExitCode: 0}
	}
	if result.Command == nil {
		return Outcome{
			ExitCode: 1,
			Message:  fmt.Sprintf("command not found: %s", strings.Join(normalized, " ")),
			Code:     errs.ErrCmdNotFound.Error(),
		}
	}

	rc := *result.Command
	if !rc.Available {
		return Outcome{
			ExitCode: 2,
			Message:  rc.UnavailableReason,
			Hint:     rc.Hint,
			Code:     errs.ErrCmdUnavailable.Error(),
		}
	}

	pkg := rc.Manifest.Package
	if missing := d.State.MissingPermissions(pkg, rc.Manifest.Permissions); len(missing) > 0 {
		return Outcome{
			ExitCode: 2,
			Message:  fmt.Sprintf("missing permission(s) for %s: %s", rc.ID(), strings.Join(missing, ", ")),
			Hint:     fmt.Sprintf("run: kb plugins:grant %s %s", pkg, strings.Join(missing, ",")),
			Code:     errs.ErrPermissionDenied.Error(),
		}
	}

	handler, err := d.LoadFor(rc)
	if err != nil {
		out := d.recordCrash(rc, ctx.CorrelationID, errs.ReasonHandlerLoad, err)
		audit.Append(audit.New(rc.ID(), pkg, rest, out.ExitCode, time.Now(), ctx.CorrelationID, false))
		return out
	}

	flags := mergeFlags(ctx.Global, nil)
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx.Context, HandlerTimeout)
	defer cancel()

	type runOutcome struct {
		res command.Result
		err error
	}
	done := make(chan runOutcome, 1)
	go func() {
		res, err := handler(ctx, rest, flags)
		done <- runOutcome{res, err}
	}()

	select {
	case <-runCtx.Done():
		out := d.recordCrash(rc, ctx.CorrelationID, errs.ReasonTimeout, errs.ErrExecutionTimeout)
		audit.Append(audit.New(rc.ID(), pkg, rest, out.ExitCode, start, ctx.CorrelationID, false))
		return out
	case ro := <-done:
		duration := time.Since(start).Seconds()
		if ro.err != nil {
			out := d.recordCrash(rc, ctx.CorrelationID, errs.ReasonHandlerFailed, ro.err)
			d.recordTelemetry(rc.ID(), duration, false)
			audit.Append(audit.New(rc.ID(), pkg, rest, out.ExitCode, start, ctx.CorrelationID, false))
			return out
		}
		d.recordTelemetry(rc.ID(), duration, true)
		audit.Append(audit.New(rc.ID(), pkg, rest, ro.res.ExitCode, start, ctx.CorrelationID, ro.res.ExitCode == 0))
		if ro.res.ExitCode != 0 {
			return Outcome{ExitCode: ro.res.ExitCode}
		}
		return Outcome{ExitCode: 0}
	}
}

// mergeFlags folds the global flags (spec.md §4.F.6.a) into the
// already-parsed manifest flag map.
func mergeFlags(g command.GlobalFlags, manifestFlags map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range manifestFlags {
		out[k] = v
	}
	out["json"] = g.JSON
	out["quiet"] = g.Quiet
	out["verbose"] = g.Verbose
	out["debug"] = g.Debug
	out["onlyAvailable"] = g.OnlyAvailable
	out["noCache"] = g.NoCache
	out["dryRun"] = g.DryRun
	return out
}

func (d *Dispatcher) recordTelemetry(commandID string, duration float64, success bool) {
	if d.Recorder != nil {
		d.Recorder.RecordExecution(telemetry.Event{CommandID: commandID, Duration: duration, Success: success})
	}
}

// recordCrash implements spec.md §4.F.6.d: record crash via state, build
// the structured crash report, notify, and return exit code 1.
func (d *Dispatcher) recordCrash(rc manifestmodel.RegisteredCommand, correlationID, reason string, cause error) Outcome {
	pkg := rc.Manifest.Package
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	quarantined := false
	if pkg != "" && d.State != nil {
		quarantined = d.State.RecordCrash(pkg, func(p string, crashes int) {
			if d.Notifier != nil {
				d.Notifier.NotifyQuarantine(p, crashes)
			}
		})
	}

	report := CrashReport{
		CommandID:     rc.ID(),
		Package:       pkg,
		CorrelationID: correlationID,
		ErrorCode:     reason,
		ErrorMessage:  cause.Error(),
		Hint:          "run `kb plugins:doctor` for remediation guidance",
	}
	if quarantined {
		report.Hint = fmt.Sprintf("package %q auto-quarantined; run `kb plugins:reset-crashes %s` after fixing", pkg, pkg)
	}
	if d.Notifier != nil {
		d.Notifier.NotifyCrash(notify.CrashReport{
			CommandID:     report.CommandID,
			Package:       report.Package,
			CorrelationID: report.CorrelationID,
			ErrorMessage:  report.ErrorMessage,
			Hint:          report.Hint,
		})
	}

	return Outcome{
		ExitCode: 1,
		Message:  cause.Error(),
		Hint:     report.Hint,
		Code:     reason,
		Crash:    &report,
	}
}
