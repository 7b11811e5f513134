// Command kb is the entry point for the extensible plugin dispatcher:
// record process-start time, assemble the host's collaborators (state,
// cache, discovery, registry, dispatcher), wire the thin cobra root
// command, and execute it. Grounded on kcli/cmd/kcli/main.go's
// record-start-time-then-delegate-to-cli shape.
package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kblabs/kb/internal/allowlist"
	"github.com/kblabs/kb/internal/builtin"
	"github.com/kblabs/kb/internal/cachestore"
	"github.com/kblabs/kb/internal/cachewatch"
	"github.com/kblabs/kb/internal/cli"
	"github.com/kblabs/kb/internal/command"
	"github.com/kblabs/kb/internal/config"
	"github.com/kblabs/kb/internal/discovery"
	"github.com/kblabs/kb/internal/dispatcher"
	"github.com/kblabs/kb/internal/envconfig"
	"github.com/kblabs/kb/internal/execloader"
	"github.com/kblabs/kb/internal/logging"
	"github.com/kblabs/kb/internal/manifestmodel"
	tearepl "github.com/kblabs/kb/internal/repl"
	"github.com/kblabs/kb/internal/notify"
	"github.com/kblabs/kb/internal/preflight"
	"github.com/kblabs/kb/internal/registry"
	"github.com/kblabs/kb/internal/shutdown"
	"github.com/kblabs/kb/internal/state"
	"github.com/kblabs/kb/internal/telemetry"
	"github.com/kblabs/kb/internal/version"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

var procStart = time.Now()

func main() {
	cli.SetProcessStart(procStart)

	env, err := envconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if env.CLIVersion != "" {
		version.Version = env.CLIVersion
	}

	workspaceRoot, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfgStore, err := config.LoadStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := cfgStore.Current(env.Profile)

	homeDir, err := config.HomeDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runner := &hostRunner{
		workspaceRoot: workspaceRoot,
		cfg:           cfg,
		homeDir:       homeDir,
		noCacheEnv:    env.NoCache,
	}

	root := cli.NewRootCommand(runner, workspaceRoot, os.Stdout, os.Stderr)
	// The logger (and everything that logs through it) can only be built
	// once --quiet/--verbose/--debug/--log-level have actually been parsed,
	// so construction is deferred to PersistentPreRunE instead of happening
	// before root.Execute().
	root.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		quiet, verbose, debug := cli.GlobalLogLevel(c)
		logger, closeLogger, err := logging.New(homeDir, logging.LevelFromFlags(quiet, verbose, debug))
		if err != nil {
			return err
		}
		runner.logger = logger
		runner.closeLogger = closeLogger

		recorder, err := telemetry.New(homeDir)
		if err != nil {
			logger.Warnw("telemetry init failed", "error", err)
		}
		runner.recorder = recorder
		runner.notifier = notify.New(cfg.Integrations.SlackWebhook, logger)

		runner.shutdownReg = shutdown.NewRegistry()
		if recorder != nil {
			runner.shutdownReg.Register(func() {
				if err := recorder.Flush(homeDir); err != nil {
					logger.Warnw("telemetry flush failed", "error", err)
				}
			})
		}
		runner.shutdownReg.ListenAndRunOnSignal(130)
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		runner.shutdown()
		os.Exit(1)
	}
	runner.shutdown()
}

// hostRunner implements cli.Runner, assembling State, the Registry, and the
// Dispatcher for exactly one invocation (spec.md §5: "The Registry, State,
// and Cache are single-writer... only the Dispatcher mutates Registry
// during a run").
type hostRunner struct {
	workspaceRoot string
	cfg           *config.Config
	recorder      *telemetry.PromRecorder
	notifier      *notify.Notifier
	homeDir       string
	noCacheEnv    bool
	logger        *zap.SugaredLogger
	closeLogger   func()
	shutdownReg   *shutdown.Registry
}

// shutdown runs the registered disposers (if the logger/recorder were ever
// built) and closes the logger. Safe to call even when PersistentPreRunE
// never ran (e.g. cobra's own --help/--version short-circuit).
func (h *hostRunner) shutdown() {
	if h.shutdownReg != nil {
		h.shutdownReg.RunOnce()
	}
	if h.closeLogger != nil {
		h.closeLogger()
	}
}

func (h *hostRunner) Run(ctx *command.Context, argv []string) dispatcher.Outcome {
	ctx.Logger = h.logger
	st, err := state.Load(h.workspaceRoot)
	if err != nil {
		return dispatcher.Outcome{ExitCode: 1, Message: err.Error()}
	}

	reg := registry.New()
	var skipped []builtin.DoctorEntry
	// dispPtr is filled in after the Dispatcher is built below; StartRepl
	// closes over the variable (not its value) so it sees the real
	// Dispatcher once Run reaches that point, despite being registered here.
	var dispPtr *dispatcher.Dispatcher

	deps := builtin.Deps{
		Registry: reg,
		State:    st,
		SaveState: func() error {
			return state.Save(h.workspaceRoot, st)
		},
		Doctor: func() []builtin.DoctorEntry { return skipped },
		StartWatch: func() error {
			return h.startWatch(reg, st, ctx.WorkspaceRoot)
		},
		StartRepl: func() error {
			return h.startRepl(ctx, dispPtr)
		},
	}
	for _, rc := range builtin.Bundle(deps) {
		reg.Register(rc)
	}
	handlers := builtin.Handlers(deps)

	noCache := h.noCacheEnv || ctx.Global.NoCache
	results, fingerprint := h.discover(st, noCache)
	for _, r := range results {
		if r.Err != nil {
			skipped = append(skipped, builtin.DoctorEntry{
				Package: r.Candidate.Name,
				Reason:  "MANIFEST_UNREADABLE",
				Hint:    r.Err.Error(),
			})
			continue
		}
		if err := allowlist.IsAllowed(r.Manifest.Package); err != nil {
			skipped = append(skipped, builtin.DoctorEntry{Package: r.Candidate.Name, Reason: "NOT_ALLOWLISTED", Hint: err.Error()})
			continue
		}
		// A v2-only manifest (no flat id) fans out into one manifest per
		// manifestV2.cli.commands[] entry; a v1 manifest passes through as
		// the single element it already is.
		for _, m := range manifestmodel.ExpandV2(r.Manifest, r.Candidate.PkgRoot) {
			verdict := preflight.Run(m, version.Effective(), preflight.RuntimeNodeMajor(), r.ActualModule, nil)
			rc := manifestmodel.RegisteredCommand{
				Manifest: m,
				Source:   r.Candidate.Source,
				PkgRoot:  r.Candidate.PkgRoot,
			}
			if !verdict.Valid {
				skipped = append(skipped, builtin.DoctorEntry{Package: r.Candidate.Name, Reason: verdict.Reason, Hint: verdict.Hint})
				continue
			}
			rc.Available = st.IsEnabled(r.Manifest.Package, h.cfg.Discovery.DefaultEnabled)
			if !rc.Available {
				rc.UnavailableReason = "disabled"
				rc.Hint = fmt.Sprintf("run: kb plugins:enable %s", r.Manifest.Package)
			}
			reg.RegisterManifest(rc)
		}
	}
	if !noCache && fingerprint != "" {
		_ = cachestore.Write(h.workspaceRoot, &cachestore.Entry{Fingerprint: fingerprint, Commands: reg.ListManifests()})
	}

	loadFor := func(rc manifestmodel.RegisteredCommand) (command.Handler, error) {
		switch rc.Manifest.Loader.Kind {
		case manifestmodel.LoaderBuiltin:
			h, ok := handlers[rc.Manifest.Loader.BuiltinName]
			if !ok {
				return nil, fmt.Errorf("no builtin handler registered for %q", rc.Manifest.Loader.BuiltinName)
			}
			return h, nil
		case manifestmodel.LoaderExec:
			return execloader.New(rc.Manifest.Loader.ExecPath), nil
		default:
			return nil, fmt.Errorf("unknown loader kind %q", rc.Manifest.Loader.Kind)
		}
	}

	// h.recorder is a typed *telemetry.PromRecorder that may be nil (telemetry
	// init can fail); assigning it directly to the Recorder interface field
	// would produce a non-nil interface wrapping a nil pointer, so gate it
	// explicitly to keep the interface itself nil in that case.
	var rec telemetry.Recorder
	if h.recorder != nil {
		rec = h.recorder
	}
	disp := &dispatcher.Dispatcher{
		Registry:  reg,
		State:     st,
		Workspace: h.workspaceRoot,
		Recorder:  rec,
		Notifier:  h.notifier,
		LoadFor:   loadFor,
	}
	dispPtr = disp
	if ctx.CorrelationID == "" {
		ctx.CorrelationID = uuid.New().String()
	}
	return disp.Run(ctx, argv)
}

// discover resolves candidates either from the on-disk cache (when the
// fingerprint matches and noCache is false) or by running Discovery fresh,
// per spec.md §4.B/§4.C.
func (h *hostRunner) discover(st *state.State, noCache bool) ([]discovery.Result, string) {
	roots, err := discovery.Roots(h.workspaceRoot, h.cfg.Discovery.ExtraRoots)
	if err != nil || len(roots) == 0 {
		return nil, ""
	}

	var stats []cachestore.PackageStat
	for _, root := range roots {
		entries, _ := os.ReadDir(root)
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if s, ok := cachestore.StatPackage(e.Name(), root+"/"+e.Name()); ok {
				stats = append(stats, s)
			}
		}
	}
	fingerprint := cachestore.Fingerprint(stats)

	if !noCache {
		if entry, err := cachestore.Read(h.workspaceRoot); err == nil && entry != nil && entry.Fingerprint == fingerprint {
			results := make([]discovery.Result, 0, len(entry.Commands))
			for _, rc := range entry.Commands {
				results = append(results, discovery.Result{
					Candidate: discovery.Candidate{Name: rc.Manifest.Package, PkgRoot: rc.PkgRoot, Source: rc.Source},
					Manifest:  rc.Manifest,
				})
			}
			return results, fingerprint
		}
	}

	return discovery.Scan(h.workspaceRoot, roots, st.Linked), fingerprint
}

func (h *hostRunner) startWatch(reg *registry.Registry, st *state.State, workspaceRoot string) error {
	roots, err := discovery.Roots(workspaceRoot, h.cfg.Discovery.ExtraRoots)
	if err != nil {
		return err
	}
	w, err := cachewatch.New(roots, nil)
	if err != nil {
		return err
	}
	defer w.Close()
	stop := make(chan struct{})
	w.Run(stop, func() {
		_, fp := h.discover(st, true)
		_ = cachestore.Write(workspaceRoot, &cachestore.Entry{Fingerprint: fp, Commands: reg.ListManifests()})
	})
	return nil
}

// startRepl runs the bubbletea REPL loop, dispatching each submitted line
// through the same Dispatcher used for single-shot invocations (spec.md's
// repl built-in re-enters the normal dispatch path per line rather than
// holding its own resolution logic).
func (h *hostRunner) startRepl(parent *command.Context, disp *dispatcher.Dispatcher) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("repl requires an interactive terminal")
	}
	dispatch := func(line string) string {
		argv := strings.Fields(line)
		if len(argv) == 0 {
			return ""
		}
		var out bytes.Buffer
		lineCtx := &command.Context{
			Context:       parent.Context,
			WorkspaceRoot: parent.WorkspaceRoot,
			Stdout:        &out,
			Stderr:        &out,
			Logger:        parent.Logger,
			Global:        parent.Global,
			CorrelationID: uuid.New().String(),
		}
		outcome := disp.Run(lineCtx, argv)
		if outcome.Message != "" {
			if out.Len() > 0 {
				out.WriteString("\n")
			}
			out.WriteString(outcome.Message)
		}
		return out.String()
	}
	p := tea.NewProgram(tearepl.New(dispatch))
	_, err := p.Run()
	return err
}
