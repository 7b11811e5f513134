// Package help produces the structured listings of groups/commands/
// manifests spec.md §4.G describes, as pure functions over a Registry
// snapshot so both the text and JSON presenters can render the same data.
// Tab-separated row rendering is grounded on kcli/internal/cli/plugin.go's
// `plugin list`/`plugin search` Fprintf tables.
package help

import (
	"fmt"
	"io"
	"path"
	"sort"
	"text/tabwriter"

	"github.com/kblabs/kb/internal/manifestmodel"
	"github.com/kblabs/kb/internal/registry"
)

// GlobalOption documents one of the global flags spec.md §6 defines; the
// Global Listing surfaces this list verbatim so both the text and JSON
// layouts carry it.
type GlobalOption struct {
	Name     string `json:"name"`
	Describe string `json:"describe"`
}

// GlobalOptions is the fixed set of global flags the dispatcher recognizes
// (spec.md §6), reused by GlobalListing.
var GlobalOptions = []GlobalOption{
	{"--help", "show help and exit 0"},
	{"--version", "print host version, exit 0"},
	{"--json", "switch presenter to JSON"},
	{"--quiet", "suppress non-summary output"},
	{"--verbose", "raise verbosity"},
	{"--debug", "raise verbosity to debug"},
	{"--log-level", "raise verbosity to an explicit level name"},
	{"--no-cache", "bypass the discovery cache store for this run"},
	{"--only-available", "filter listings to available commands only"},
	{"--dry-run", "advisory; propagated to the handler"},
}

// GroupSummary is one product group's entry in the Global Listing: its
// name, how many commands it contributes, and the version badge derived
// from whichever of its manifests declares manifestV2.schema.
type GroupSummary struct {
	Name         string `json:"name"`
	CommandCount int    `json:"commandCount"`
	VersionBadge string `json:"versionBadge,omitempty"`
}

// Listing is the JSON-serializable shape of a global or group help
// response.
type Listing struct {
	Groups             []string                           `json:"groups,omitempty"`
	GroupSummaries     []GroupSummary                      `json:"groupSummaries,omitempty"`
	StandaloneCommands []manifestmodel.RegisteredCommand   `json:"standaloneCommands,omitempty"`
	GlobalOptions      []GlobalOption                      `json:"globalOptions,omitempty"`
	Commands           []manifestmodel.RegisteredCommand   `json:"commands"`
	Partial            bool                                `json:"partial"`
}

// GlobalListing builds the full listing: every product group with its
// command count and version badge, the standalone system commands (the
// built-in bundle, which contributes no product group of its own), the
// global options, and every command, filtered to available-only when
// requested (the --only-available global flag, spec.md §6), per spec.md
// §4.G: "list of product groups with command counts; list of standalone
// system commands; list of global options; manifest version badge per
// group".
func GlobalListing(r *registry.Registry, onlyAvailable bool) Listing {
	cmds := r.ListManifests()
	if onlyAvailable {
		cmds = filterAvailable(cmds)
	}

	groups := r.ListProductGroups()
	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		groupCmds := r.GetCommandsByGroup(g)
		summaries = append(summaries, GroupSummary{
			Name:         g,
			CommandCount: len(groupCmds),
			VersionBadge: versionBadge(groupCmds),
		})
	}

	standalone := r.GetCommandsByGroup("builtin")
	if onlyAvailable {
		standalone = filterAvailable(standalone)
	}

	return Listing{
		Groups:             groups,
		GroupSummaries:     summaries,
		StandaloneCommands: standalone,
		GlobalOptions:      GlobalOptions,
		Commands:           cmds,
		Partial:            r.IsPartial(),
	}
}

// versionBadge derives a group's version badge from the first
// manifestV2.schema it finds among its commands, taking the schema
// string's final path segment (e.g. ".../schemas/manifest/v2" -> "v2").
func versionBadge(cmds []manifestmodel.RegisteredCommand) string {
	for _, c := range cmds {
		if c.Manifest.ManifestV2 != nil && c.Manifest.ManifestV2.Schema != "" {
			return path.Base(c.Manifest.ManifestV2.Schema)
		}
	}
	return ""
}

// GroupListing builds the listing for one group's commands (spec.md §4.F
// step 2c: "group-only match -> return the CommandGroup").
func GroupListing(r *registry.Registry, group string, onlyAvailable bool) Listing {
	cmds := r.GetCommandsByGroup(group)
	if onlyAvailable {
		cmds = filterAvailable(cmds)
	}
	return Listing{Commands: cmds, Partial: r.IsPartial()}
}

func filterAvailable(in []manifestmodel.RegisteredCommand) []manifestmodel.RegisteredCommand {
	out := make([]manifestmodel.RegisteredCommand, 0, len(in))
	for _, c := range in {
		if c.Available {
			out = append(out, c)
		}
	}
	return out
}

// WriteText renders a Listing as tab-aligned rows: id, describe, source,
// and an "(unavailable: reason)" suffix when relevant.
func WriteText(w io.Writer, l Listing) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(l.GroupSummaries) > 0 {
		fmt.Fprintf(tw, "GROUPS\n")
		summaries := append([]GroupSummary(nil), l.GroupSummaries...)
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
		for _, g := range summaries {
			badge := g.VersionBadge
			if badge == "" {
				badge = "-"
			}
			fmt.Fprintf(tw, "  %s\t%d command(s)\t%s\n", g.Name, g.CommandCount, badge)
		}
		fmt.Fprintf(tw, "\n")
	} else if len(l.Groups) > 0 {
		fmt.Fprintf(tw, "GROUPS\n")
		groups := append([]string(nil), l.Groups...)
		sort.Strings(groups)
		for _, g := range groups {
			fmt.Fprintf(tw, "  %s\n", g)
		}
		fmt.Fprintf(tw, "\n")
	}

	if len(l.StandaloneCommands) > 0 {
		fmt.Fprintf(tw, "STANDALONE COMMANDS\n")
		for _, c := range l.StandaloneCommands {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Manifest.ID, c.Manifest.Describe)
		}
		fmt.Fprintf(tw, "\n")
	}

	if len(l.GlobalOptions) > 0 {
		fmt.Fprintf(tw, "GLOBAL OPTIONS\n")
		for _, o := range l.GlobalOptions {
			fmt.Fprintf(tw, "  %s\t%s\n", o.Name, o.Describe)
		}
		fmt.Fprintf(tw, "\n")
	}

	fmt.Fprintf(tw, "ID\tDESCRIBE\tSOURCE\n")
	for _, c := range l.Commands {
		suffix := ""
		if !c.Available {
			suffix = fmt.Sprintf(" (unavailable: %s)", c.UnavailableReason)
		}
		if c.Shadowed {
			suffix += " (shadowed)"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%s\n", c.Manifest.ID, c.Manifest.Describe, suffix, c.Source)
	}
	if l.Partial {
		fmt.Fprintf(tw, "\n(partial: one or more manifests were skipped during discovery)\n")
	}
}

// CommandHelp describes a single resolved command in detail, as rendered by
// WriteCommandText.
type CommandHelp struct {
	Manifest manifestmodel.Manifest `json:"manifest"`
	Source   manifestmodel.Source   `json:"source"`
}

// WriteCommandText renders one command's detailed help: describe, long
// description, flags, examples.
func WriteCommandText(w io.Writer, c CommandHelp) {
	fmt.Fprintf(w, "%s\n", c.Manifest.ID)
	if c.Manifest.Describe != "" {
		fmt.Fprintf(w, "\n%s\n", c.Manifest.Describe)
	}
	if c.Manifest.LongDescription != "" {
		fmt.Fprintf(w, "\n%s\n", c.Manifest.LongDescription)
	}
	if len(c.Manifest.Flags) > 0 {
		fmt.Fprintf(w, "\nFlags:\n")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, f := range c.Manifest.Flags {
			req := ""
			if f.Required {
				req = " (required)"
			}
			fmt.Fprintf(tw, "  --%s\t%s%s\n", f.Name, f.Type, req)
		}
		tw.Flush()
	}
	if len(c.Manifest.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, ex := range c.Manifest.Examples {
			fmt.Fprintf(w, "  %s\n", ex)
		}
	}
}
