// Package registry is the in-memory Registry of spec.md §4.E: the byName
// lookup table, the manifests map, group indexing, and the
// precedence/shadowing rule applied when two manifests claim the same id.
// Shape grounded on the goneat ops registry's mutex-guarded map plus group
// index pair, generalized from static command registration to manifest
// registration with shadowing.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/kblabs/kb/internal/manifestmodel"
)

// Group is a named collection of commands, registered as a unit.
type Group struct {
	Name     string
	Commands []manifestmodel.RegisteredCommand
}

// Registry is single-writer per invocation (spec.md §5): only the
// Dispatcher mutates it during a run. The mutex exists for the rare case of
// concurrent introspection (e.g. `plugins:watch`) reading while a reload
// mutates.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*manifestmodel.RegisteredCommand
	manifests map[string]*manifestmodel.RegisteredCommand
	groups    map[string]*Group
	partial   bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName:    map[string]*manifestmodel.RegisteredCommand{},
		manifests: map[string]*manifestmodel.RegisteredCommand{},
		groups:    map[string]*Group{},
	}
}

// RegisterManifest stores rc in the manifests map (every contender for an
// id is kept, losers marked shadowed) and indexes it under its
// canonical id, space form, bare name, and every alias, applying the
// precedence/shadowing rule of spec.md §4.E when another entry already
// owns one of those keys.
func (r *Registry) RegisterManifest(rc manifestmodel.RegisteredCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := rc.Manifest.ID
	entry := rc
	mkey := id
	if _, taken := r.manifests[id]; taken {
		// A second contender for the same id is kept under its own key so
		// the shadowed loser stays visible to ListManifests.
		mkey = id + "\x00" + string(rc.Source) + "\x00" + rc.Manifest.Package
	}
	r.manifests[mkey] = &entry

	keys := r.keysFor(rc.Manifest)
	for _, k := range keys {
		r.bindKey(k, &entry)
	}
	if rc.Manifest.Group != "" {
		g := r.groups[rc.Manifest.Group]
		if g == nil {
			g = &Group{Name: rc.Manifest.Group}
			r.groups[rc.Manifest.Group] = g
		}
		g.Commands = append(g.Commands, entry)
	}
}

// keysFor computes every lookup key a manifest should be reachable under:
// canonical id, space form ("a b c" for a three-or-more-segment id), bare
// name, and aliases. The full segment list is used, not just the first two
// tokens, so ids like "a:b:c" stay reachable only as that whole path.
func (r *Registry) keysFor(m manifestmodel.Manifest) []string {
	keys := []string{m.ID}
	if strings.Contains(m.ID, ":") {
		parts := strings.Split(m.ID, ":")
		keys = append(keys, strings.Join(parts, " "))
		keys = append(keys, parts[len(parts)-1])
	}
	keys = append(keys, m.Aliases...)
	return dedupe(keys)
}

// bindKey resolves precedence/shadowing when key is already bound: the
// higher-precedence source wins and the loser is marked shadowed; builtins
// always win; ties within a source are broken by package name
// lexicographically, first-seen authoritative.
func (r *Registry) bindKey(key string, candidate *manifestmodel.RegisteredCommand) {
	existing, present := r.byName[key]
	if !present {
		r.byName[key] = candidate
		return
	}
	if winnerIsCandidate(existing, candidate) {
		existing.Shadowed = true
		r.byName[key] = candidate
	} else {
		candidate.Shadowed = true
	}
}

// winnerIsCandidate reports whether candidate outranks the existing
// binding under spec.md §4.E's precedence rule.
func winnerIsCandidate(existing, candidate *manifestmodel.RegisteredCommand) bool {
	if existing.Source == manifestmodel.SourceBuiltin {
		return false
	}
	if candidate.Source == manifestmodel.SourceBuiltin {
		return true
	}
	pe, pc := existing.Source.Precedence(), candidate.Source.Precedence()
	if pc != pe {
		return pc < pe
	}
	return candidate.Manifest.Package < existing.Manifest.Package
}

// Register adds a built-in command (source always SourceBuiltin).
func (r *Registry) Register(rc manifestmodel.RegisteredCommand) {
	rc.Source = manifestmodel.SourceBuiltin
	rc.Available = true
	r.RegisterManifest(rc)
}

// RegisterGroup registers every command in a named collection as a
// built-in, filling in Group where it is empty. Lookup keys come from each
// command's id alone: a "<group>:<name>" id is space-form indexed under
// "<group> <name>", while a bare id gets no "<group> <name>" key.
func (r *Registry) RegisterGroup(name string, cmds []manifestmodel.RegisteredCommand) {
	for _, c := range cmds {
		if c.Manifest.Group == "" {
			c.Manifest.Group = name
		}
		r.Register(c)
	}
}

// LookupResult distinguishes a resolved Command from a resolved Group.
type LookupResult struct {
	Command *manifestmodel.RegisteredCommand
	Group   *Group
}

// Get resolves pathOrString via the Registry lookup order: exact key,
// space form, group-only, nil if nothing matches. The legacy dotted form
// (§4.F step 2d) is handled by the Dispatcher before calling Get.
func (r *Registry) Get(pathOrString string) LookupResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rc, ok := r.byName[pathOrString]; ok {
		return LookupResult{Command: rc}
	}
	spaceForm := strings.ReplaceAll(pathOrString, ":", " ")
	if rc, ok := r.byName[spaceForm]; ok {
		return LookupResult{Command: rc}
	}
	if g, ok := r.groups[pathOrString]; ok {
		return LookupResult{Group: g}
	}
	return LookupResult{}
}

// ListManifests returns every registered manifest, sorted by id.
func (r *Registry) ListManifests() []manifestmodel.RegisteredCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]manifestmodel.RegisteredCommand, 0, len(r.manifests))
	for _, rc := range r.manifests {
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })
	return out
}

// ListGroups returns every group name, sorted.
func (r *Registry) ListGroups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.groups))
	for name := range r.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListProductGroups returns groups excluding the builtin namespace, the
// distinction the Help component uses to separate host commands from
// product-contributed ones.
func (r *Registry) ListProductGroups() []string {
	all := r.ListGroups()
	out := make([]string, 0, len(all))
	for _, g := range all {
		if g != "builtin" {
			out = append(out, g)
		}
	}
	return out
}

// GetCommandsByGroup returns a group's commands sorted by id.
func (r *Registry) GetCommandsByGroup(group string) []manifestmodel.RegisteredCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[group]
	if !ok {
		return nil
	}
	out := append([]manifestmodel.RegisteredCommand(nil), g.Commands...)
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })
	return out
}

// MarkPartial records that this run's registry reflects an incomplete
// discovery pass (e.g. a scan that hit an I/O error on some root).
func (r *Registry) MarkPartial(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partial = v
}

// IsPartial reports the partial flag set by MarkPartial.
func (r *Registry) IsPartial() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.partial
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
