// Package builtin implements the fixed Built-in Command Bundle of spec.md
// §4.I: a hello/version/diagnose/health/diag triad plus plugins:* state
// management, registered unconditionally before discovery so the CLI stays
// usable even with no workspace plugins. Cobra subcommand shapes grounded
// on kcli/internal/cli/plugin.go's plugin list/search/marketplace
// structure, adapted onto the command.Handler contract instead of cobra
// directly.
package builtin

import (
	"fmt"
	"strings"

	"github.com/kblabs/kb/internal/cachestore"
	"github.com/kblabs/kb/internal/command"
	"github.com/kblabs/kb/internal/help"
	"github.com/kblabs/kb/internal/manifestmodel"
	"github.com/kblabs/kb/internal/presenter"
	"github.com/kblabs/kb/internal/registry"
	"github.com/kblabs/kb/internal/state"
	"github.com/kblabs/kb/internal/version"
)

// Deps is the set of collaborators builtin handlers close over.
type Deps struct {
	Registry *registry.Registry
	State    *state.State
	// SaveState persists State back to its workspace file after a mutation.
	SaveState func() error
	// Doctor reports every skipped candidate's preflight reason, across all
	// candidates seen during the last discovery pass, not just the ones
	// that made it into the Registry (SPEC_FULL.md §C).
	Doctor func() []DoctorEntry
	// StartWatch runs `kb plugins:watch`'s blocking loop; it returns only
	// when the shutdown hook registry stops it.
	StartWatch func() error
	// StartRepl runs the `kb repl` bubbletea program; blocks until the user
	// exits it.
	StartRepl func() error
}

// DoctorEntry is one skipped candidate surfaced by `kb plugins:doctor`.
type DoctorEntry struct {
	Package string
	Reason  string
	Hint    string
}

// Bundle returns every built-in Command, source always SourceBuiltin. The
// actual handler for each id is wired separately by Handlers, so Bundle
// only needs id/group/describe.
func Bundle(d Deps) []manifestmodel.RegisteredCommand {
	specs := []struct {
		id, group, describe string
	}{
		{"hello", "builtin", "print a friendly readiness check"},
		{"version", "builtin", "print the host version"},
		{"diagnose", "builtin", "run diagnostics on the current workspace"},
		{"health", "builtin", "report dispatcher/registry health"},
		{"diag", "builtin", "alias of diagnose"},
		{"plugins:list", "builtin", "list every registered command"},
		{"plugins:enable", "builtin", "enable a package"},
		{"plugins:disable", "builtin", "disable a package"},
		{"plugins:link", "builtin", "register a linked package path"},
		{"plugins:unlink", "builtin", "remove a linked package path"},
		{"plugins:grant", "builtin", "grant capabilities to a package"},
		{"plugins:reset-crashes", "builtin", "clear a package's crash counter"},
		{"plugins:clear-cache", "builtin", "clear the discovery cache"},
		{"plugins:watch", "builtin", "watch workspace package.json files and rescan on change"},
		{"plugins:doctor", "builtin", "report every skipped candidate's preflight reason"},
		{"repl", "builtin", "start an interactive command loop"},
	}

	out := make([]manifestmodel.RegisteredCommand, 0, len(specs))
	for _, s := range specs {
		out = append(out, manifestmodel.RegisteredCommand{
			Manifest: manifestmodel.Manifest{
				ID:       s.id,
				Group:    s.group,
				Describe: s.describe,
				Loader:   manifestmodel.Loader{Kind: manifestmodel.LoaderBuiltin, BuiltinName: s.id},
			},
			Source:    manifestmodel.SourceBuiltin,
			Available: true,
		})
	}
	return out
}

// Handlers returns the id->Handler map Bundle's manifests resolve through,
// kept separate from Bundle so Dispatcher.LoadFor can stay a pure lookup.
func Handlers(d Deps) map[string]command.Handler {
	return map[string]command.Handler{
		"hello":                 helloHandler,
		"version":               versionHandler,
		"diagnose":              diagnoseHandler(d),
		"diag":                  diagnoseHandler(d),
		"health":                healthHandler(d),
		"plugins:list":          pluginsListHandler(d),
		"plugins:enable":        pluginsEnableHandler(d),
		"plugins:disable":       pluginsDisableHandler(d),
		"plugins:link":          pluginsLinkHandler(d),
		"plugins:unlink":        pluginsUnlinkHandler(d),
		"plugins:grant":         pluginsGrantHandler(d),
		"plugins:reset-crashes": pluginsResetCrashesHandler(d),
		"plugins:clear-cache":   pluginsClearCacheHandler,
		"plugins:watch":         pluginsWatchHandler(d),
		"plugins:doctor":        pluginsDoctorHandler(d),
		"repl":                  replHandler(d),
	}
}

func presenterFor(ctx *command.Context) *presenter.Presenter {
	return presenter.New(ctx.Stdout, ctx.Global.JSON)
}

func helloHandler(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
	presenterFor(ctx).Success("kb is ready.", nil)
	return command.Result{}, nil
}

func versionHandler(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
	presenterFor(ctx).Success(version.Effective(), map[string]string{"version": version.Effective()})
	return command.Result{}, nil
}

func diagnoseHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		p := presenterFor(ctx)
		p.Heading("Diagnostics")
		p.Line("workspace: %s", ctx.WorkspaceRoot)
		p.Line("registered commands: %d", len(d.Registry.ListManifests()))
		p.Line("partial discovery: %v", d.Registry.IsPartial())
		p.Success("", map[string]any{
			"workspace":       ctx.WorkspaceRoot,
			"commandCount":    len(d.Registry.ListManifests()),
			"partialDiscover": d.Registry.IsPartial(),
		})
		return command.Result{}, nil
	}
}

func healthHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		disabled := 0
		for range d.State.Disabled {
			disabled++
		}
		presenterFor(ctx).Success(fmt.Sprintf("%d disabled package(s)", disabled), map[string]any{"disabledCount": disabled})
		return command.Result{}, nil
	}
}

func pluginsListHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		listing := help.GlobalListing(d.Registry, ctx.Global.OnlyAvailable)
		if ctx.Global.JSON {
			presenterFor(ctx).Success("", listing)
			return command.Result{}, nil
		}
		help.WriteText(ctx.Stdout, listing)
		return command.Result{}, nil
	}
}

func pluginsEnableHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if len(argv) == 0 {
			return command.Result{}, fmt.Errorf("usage: plugins:enable <package>")
		}
		d.State.Enable(argv[0])
		if d.SaveState != nil {
			if err := d.SaveState(); err != nil {
				return command.Result{}, err
			}
		}
		presenterFor(ctx).Success(fmt.Sprintf("enabled %s", argv[0]), nil)
		return command.Result{}, nil
	}
}

func pluginsDisableHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if len(argv) == 0 {
			return command.Result{}, fmt.Errorf("usage: plugins:disable <package>")
		}
		d.State.Disable(argv[0])
		if d.SaveState != nil {
			if err := d.SaveState(); err != nil {
				return command.Result{}, err
			}
		}
		presenterFor(ctx).Success(fmt.Sprintf("disabled %s", argv[0]), nil)
		return command.Result{}, nil
	}
}

func pluginsLinkHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if len(argv) == 0 {
			return command.Result{}, fmt.Errorf("usage: plugins:link <absolute-path>")
		}
		d.State.Link(argv[0])
		if d.SaveState != nil {
			if err := d.SaveState(); err != nil {
				return command.Result{}, err
			}
		}
		presenterFor(ctx).Success(fmt.Sprintf("linked %s", argv[0]), nil)
		return command.Result{}, nil
	}
}

func pluginsUnlinkHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if len(argv) == 0 {
			return command.Result{}, fmt.Errorf("usage: plugins:unlink <absolute-path>")
		}
		d.State.Unlink(argv[0])
		if d.SaveState != nil {
			if err := d.SaveState(); err != nil {
				return command.Result{}, err
			}
		}
		presenterFor(ctx).Success(fmt.Sprintf("unlinked %s", argv[0]), nil)
		return command.Result{}, nil
	}
}

func pluginsGrantHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if len(argv) < 2 {
			return command.Result{}, fmt.Errorf("usage: plugins:grant <package> <cap1,cap2,...>")
		}
		caps := strings.Split(argv[1], ",")
		d.State.GrantPermissions(argv[0], caps)
		if d.SaveState != nil {
			if err := d.SaveState(); err != nil {
				return command.Result{}, err
			}
		}
		presenterFor(ctx).Success(fmt.Sprintf("granted %s to %s", argv[1], argv[0]), nil)
		return command.Result{}, nil
	}
}

func pluginsResetCrashesHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if len(argv) == 0 {
			return command.Result{}, fmt.Errorf("usage: plugins:reset-crashes <package>")
		}
		d.State.ResetCrashes(argv[0])
		if d.SaveState != nil {
			if err := d.SaveState(); err != nil {
				return command.Result{}, err
			}
		}
		presenterFor(ctx).Success(fmt.Sprintf("reset crash count for %s", argv[0]), nil)
		return command.Result{}, nil
	}
}

func pluginsClearCacheHandler(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
	deep, _ := flags["deep"].(bool)
	if err := cachestore.Clear(ctx.WorkspaceRoot, cachestore.ClearOptions{Deep: deep}); err != nil {
		return command.Result{}, err
	}
	presenterFor(ctx).Success("discovery cache cleared", nil)
	return command.Result{}, nil
}

func pluginsWatchHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if d.StartWatch == nil {
			return command.Result{}, fmt.Errorf("plugins:watch is not configured for this host")
		}
		presenterFor(ctx).Success("watching workspace for package.json changes (ctrl-c to stop)", nil)
		if err := d.StartWatch(); err != nil {
			return command.Result{}, err
		}
		return command.Result{}, nil
	}
}

func pluginsDoctorHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if d.Doctor == nil {
			presenterFor(ctx).Success("no skipped candidates to report", nil)
			return command.Result{}, nil
		}
		entries := d.Doctor()
		if ctx.Global.JSON {
			presenterFor(ctx).Success("", entries)
			return command.Result{}, nil
		}
		p := presenterFor(ctx)
		if len(entries) == 0 {
			p.Line("no skipped candidates")
			return command.Result{}, nil
		}
		p.Heading("Skipped candidates")
		for _, e := range entries {
			p.Line("  %s: %s (%s)", e.Package, e.Reason, e.Hint)
		}
		return command.Result{}, nil
	}
}

func replHandler(d Deps) command.Handler {
	return func(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
		if d.StartRepl == nil {
			return command.Result{}, fmt.Errorf("repl is not configured for this host")
		}
		if err := d.StartRepl(); err != nil {
			return command.Result{}, err
		}
		return command.Result{}, nil
	}
}
