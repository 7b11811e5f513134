// Package manifestmodel defines the Manifest data model of spec.md §3: the
// descriptor a package contributes, whether read from a package.json field
// or a conventional sidecar file, plus the RegisteredCommand classification
// the Registry layers on top of it.
package manifestmodel

import "path/filepath"

// FlagType enumerates the flag.type values spec.md §3 allows.
type FlagType string

const (
	FlagBoolean FlagType = "boolean"
	FlagString  FlagType = "string"
	FlagNumber  FlagType = "number"
	FlagArray   FlagType = "array"
)

// Flag is one declared command-line flag.
type Flag struct {
	Name     string   `json:"name" yaml:"name"`
	Type     FlagType `json:"type" yaml:"type"`
	Alias    string   `json:"alias,omitempty" yaml:"alias,omitempty"`
	Default  any      `json:"default,omitempty" yaml:"default,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Choices  []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// ModuleKind is the package's declared module system, consulted by
// Preflight's engine.module check.
type ModuleKind string

const (
	ModuleESM ModuleKind = "esm"
	ModuleCJS ModuleKind = "cjs"
)

// Engine holds the compatibility constraints spec.md §3 lists.
type Engine struct {
	Node   string     `json:"node,omitempty" yaml:"node,omitempty"`
	KBCli  string     `json:"kbCli,omitempty" yaml:"kbCli,omitempty"`
	Module ModuleKind `json:"module,omitempty" yaml:"module,omitempty"`
}

// LoaderKind distinguishes how the Dispatcher resolves a manifest's
// executable implementation, per spec.md §9's re-architecture note.
type LoaderKind string

const (
	// LoaderBuiltin is an in-process handler registered by the Built-in
	// Command Bundle (§4.I); Loader.BuiltinName names it in the process's
	// builtin handler table.
	LoaderBuiltin LoaderKind = "builtin"
	// LoaderExec is an external executable invoked as a subprocess over a
	// line-delimited JSON stdio protocol (SPEC_FULL.md §B.1).
	LoaderExec LoaderKind = "exec"
)

// Loader is the opaque handle spec.md §3 calls for: enough information for
// the Dispatcher to invoke the command without the Registry or Discovery
// layers understanding what is on the other end.
type Loader struct {
	Kind LoaderKind `json:"kind" yaml:"kind"`
	// BuiltinName identifies the in-process handler when Kind == LoaderBuiltin.
	BuiltinName string `json:"builtinName,omitempty" yaml:"builtinName,omitempty"`
	// ExecPath is the resolved path to the subprocess executable when
	// Kind == LoaderExec.
	ExecPath string `json:"execPath,omitempty" yaml:"execPath,omitempty"`
}

// V2Command is one entry in ManifestV2.CLI.Commands.
type V2Command struct {
	ID          string `json:"id" yaml:"id"`
	Describe    string `json:"describe,omitempty" yaml:"describe,omitempty"`
	Entrypoint  string `json:"entrypoint" yaml:"entrypoint"`
	Flags       []Flag `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// ManifestV2 is the richer descriptor some packages declare alongside (or
// instead of) the flat v1 fields.
type ManifestV2 struct {
	Schema       string      `json:"schema,omitempty" yaml:"schema,omitempty"`
	CLI          struct {
		Commands []V2Command `json:"commands,omitempty" yaml:"commands,omitempty"`
	} `json:"cli" yaml:"cli"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	REST         any      `json:"rest,omitempty" yaml:"rest,omitempty"`
}

// Manifest is the descriptor a package contributes (spec.md §3).
type Manifest struct {
	ID              string      `json:"id" yaml:"id"`
	Group           string      `json:"group,omitempty" yaml:"group,omitempty"`
	Package         string      `json:"package,omitempty" yaml:"package,omitempty"`
	Describe        string      `json:"describe,omitempty" yaml:"describe,omitempty"`
	LongDescription string      `json:"longDescription,omitempty" yaml:"longDescription,omitempty"`
	Examples        []string    `json:"examples,omitempty" yaml:"examples,omitempty"`
	Aliases         []string    `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Flags           []Flag      `json:"flags,omitempty" yaml:"flags,omitempty"`
	Engine          Engine      `json:"engine,omitempty" yaml:"engine,omitempty"`
	Permissions     []string    `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Requires        []string    `json:"requires,omitempty" yaml:"requires,omitempty"`
	Loader          Loader      `json:"loader" yaml:"loader"`
	ManifestV2      *ManifestV2 `json:"manifestV2,omitempty" yaml:"manifestV2,omitempty"`
}

// ExpandV2 returns the manifests Discovery should register for one
// candidate. A manifest that declares a top-level id is returned
// unchanged; a v2-only manifest (empty ID, non-empty ManifestV2.CLI.Commands)
// is fanned out into one synthesized manifest per subcommand, per spec.md
// §4.F step 5: "for v2 manifests, locate the subcommand in
// manifestV2.cli.commands[] and use the external execution adapter". Each
// synthesized manifest carries Loader{Kind: LoaderExec} pointing at the
// subcommand's entrypoint resolved against pkgRoot.
func ExpandV2(m Manifest, pkgRoot string) []Manifest {
	if m.ID != "" || m.ManifestV2 == nil || len(m.ManifestV2.CLI.Commands) == 0 {
		return []Manifest{m}
	}

	group := m.Group
	if group == "" {
		group = m.Package
	}

	out := make([]Manifest, 0, len(m.ManifestV2.CLI.Commands))
	for _, c := range m.ManifestV2.CLI.Commands {
		sub := m
		sub.ManifestV2 = nil
		sub.Group = group
		sub.Describe = c.Describe
		sub.Flags = c.Flags
		sub.ID = c.ID
		if group != "" {
			sub.ID = group + ":" + c.ID
		}
		sub.Loader = Loader{Kind: LoaderExec, ExecPath: filepath.Join(pkgRoot, c.Entrypoint)}
		out = append(out, sub)
	}
	return out
}

// Source classifies how a candidate package was reached (spec.md §3).
type Source string

const (
	SourceWorkspace    Source = "workspace"
	SourceNodeModules  Source = "node_modules"
	SourceLinked       Source = "linked"
	SourceBuiltin      Source = "builtin"
)

// RegisteredCommand pairs a Manifest with the runtime classification the
// Registry and Preflight layers compute (spec.md §3).
type RegisteredCommand struct {
	Manifest          Manifest `json:"manifest"`
	Source            Source   `json:"source"`
	PkgRoot           string   `json:"pkgRoot,omitempty"`
	Available         bool     `json:"available"`
	UnavailableReason string   `json:"unavailableReason,omitempty"`
	Hint              string   `json:"hint,omitempty"`
	Shadowed          bool     `json:"shadowed"`
}

// ID is a convenience accessor.
func (r RegisteredCommand) ID() string { return r.Manifest.ID }

// Precedence returns the sort weight spec.md §4.E defines for shadowing:
// lower is higher priority. Builtins always win over any plugin source.
func (s Source) Precedence() int {
	switch s {
	case SourceBuiltin:
		return 0
	case SourceWorkspace:
		return 1
	case SourceLinked:
		return 2
	case SourceNodeModules:
		return 3
	default:
		return 4
	}
}
