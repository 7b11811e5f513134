// Package discovery enumerates candidate packages across a workspace and
// yields their raw manifests (spec.md §4.C), generalizing the teacher's
// single-directory plugin.DiscoverInfo walk into a multi-root workspace
// scan with bounded concurrency.
package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kblabs/kb/internal/manifestmodel"
)

// maxConcurrency bounds simultaneous candidate-package inspections, per
// spec.md §5's explicit "suggested cap: 16".
const maxConcurrency = 16

// conventionalPaths is tried, in order, after the package.json fields, for
// each candidate package root. Go-native equivalents of the source's
// JS/TS file list (SPEC_FULL.md §B.2).
var conventionalPaths = []string{
	filepath.Join("dist", "manifest.v2.yaml"),
	filepath.Join("dist", "manifest.v2.json"),
	"manifest.v2.yaml",
	"manifest.v2.json",
}

// Candidate is one package root discovered during workspace enumeration,
// not yet parsed into a Manifest.
type Candidate struct {
	Name    string
	PkgRoot string
	Source  manifestmodel.Source
}

// Result pairs a Candidate with its parsed manifest, or a load error.
// ActualModule is the package's own declared module system (package.json's
// "type" field), what Preflight's engine.module check compares against.
type Result struct {
	Candidate    Candidate
	Manifest     manifestmodel.Manifest
	ActualModule manifestmodel.ModuleKind
	Err          error
}

// packageJSON is the subset of package.json fields discovery reads.
type packageJSON struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	KBLabs struct {
		Manifest string   `json:"manifest"`
		Plugins  []string `json:"plugins"`
	} `json:"kbLabs"`
	KB struct {
		Manifest string   `json:"manifest"`
		Plugins  []string `json:"plugins"`
	} `json:"kb"`
}

// moduleTypeOf maps package.json's "type" field to the ModuleKind
// convention engine.module is expressed in: "module" is ESM; anything else
// (absent, "commonjs") is Node's commonjs default.
func moduleTypeOf(pj packageJSON) manifestmodel.ModuleKind {
	if pj.Type == "module" {
		return manifestmodel.ModuleESM
	}
	return manifestmodel.ModuleCJS
}

// workspaceConfig mirrors the relevant subset of pnpm-workspace.yaml.
type workspaceConfig struct {
	Packages []string `yaml:"packages"`
}

// Roots resolves the package-root directories to scan, from
// pnpm-workspace.yaml glob patterns when present, otherwise the
// packages/* and apps/* default (spec.md §4.C), ascending up to three
// parent directories when no workspace marker is found at all.
func Roots(workspaceRoot string, extra []string) ([]string, error) {
	root, err := findWorkspaceRoot(workspaceRoot)
	if err != nil {
		return nil, err
	}

	patterns := []string{"packages/*", "apps/*"}
	if cfg, ok := readWorkspaceConfig(root); ok && len(cfg.Packages) > 0 {
		patterns = cfg.Packages
	}

	var roots []string
	seen := map[string]bool{}
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pat))
		if err != nil {
			continue
		}
		for _, m := range matches {
			fi, err := os.Stat(m)
			if err != nil || !fi.IsDir() {
				continue
			}
			if filepath.Base(m) == "node_modules" || filepath.Base(m) == ".kb" {
				continue
			}
			if !seen[m] {
				seen[m] = true
				roots = append(roots, m)
			}
		}
	}
	for _, e := range extra {
		if !seen[e] {
			seen[e] = true
			roots = append(roots, e)
		}
	}
	sort.Strings(roots)
	return roots, nil
}

func findWorkspaceRoot(start string) (string, error) {
	dir := start
	for i := 0; i < 4; i++ {
		if _, ok := readWorkspaceConfig(dir); ok {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return start, nil
}

func readWorkspaceConfig(dir string) (workspaceConfig, bool) {
	b, err := os.ReadFile(filepath.Join(dir, "pnpm-workspace.yaml"))
	if err != nil {
		return workspaceConfig{}, false
	}
	var cfg workspaceConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return workspaceConfig{}, false
	}
	return cfg, true
}

// ClassifySource labels a package root by its position relative to the
// workspace root and the set of linked absolute paths (spec.md §4.C).
func ClassifySource(workspaceRoot, pkgRoot string, linked map[string]bool) manifestmodel.Source {
	if linked[pkgRoot] {
		return manifestmodel.SourceLinked
	}
	if strings.Contains(pkgRoot, string(filepath.Separator)+"node_modules"+string(filepath.Separator)) {
		return manifestmodel.SourceNodeModules
	}
	return manifestmodel.SourceWorkspace
}

// Scan walks every root's immediate package directories, loads each
// candidate's manifest with bounded concurrency, and returns results in
// deterministic lexicographic-by-id order regardless of completion order
// (spec.md §4.C's determinism requirement).
func Scan(workspaceRoot string, roots []string, linked map[string]bool) []Result {
	var candidates []Candidate
	seen := map[string]bool{}
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			pkgRoot := filepath.Join(root, e.Name())
			if seen[pkgRoot] {
				continue
			}
			seen[pkgRoot] = true
			candidates = append(candidates, Candidate{
				Name:    e.Name(),
				PkgRoot: pkgRoot,
				Source:  ClassifySource(workspaceRoot, pkgRoot, linked),
			})
		}
	}

	results := make([]Result, len(candidates))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			m, err := loadManifest(c.PkgRoot)
			pj, _ := readPackageJSON(c.PkgRoot)
			results[i] = Result{Candidate: c, Manifest: m, ActualModule: moduleTypeOf(pj), Err: err}
		}(i, c)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		idOrName := func(r Result) string {
			if r.Manifest.ID != "" {
				return r.Manifest.ID
			}
			return r.Candidate.Name
		}
		return idOrName(results[i]) < idOrName(results[j])
	})
	return results
}

// loadManifest applies the priority-ordered strategy of spec.md §4.C: the
// package.json field lookups first, then the conventional sidecar paths.
func loadManifest(pkgRoot string) (manifestmodel.Manifest, error) {
	pj, ok := readPackageJSON(pkgRoot)
	if ok {
		if pj.KBLabs.Manifest != "" {
			if m, err := readManifestFile(filepath.Join(pkgRoot, pj.KBLabs.Manifest)); err == nil {
				return m, nil
			}
		}
		if pj.KB.Manifest != "" {
			if m, err := readManifestFile(filepath.Join(pkgRoot, pj.KB.Manifest)); err == nil {
				return m, nil
			}
		}
		for _, p := range pj.KBLabs.Plugins {
			if m, err := readManifestFile(filepath.Join(pkgRoot, p)); err == nil {
				return m, nil
			}
		}
		for _, p := range pj.KB.Plugins {
			if m, err := readManifestFile(filepath.Join(pkgRoot, p)); err == nil {
				return m, nil
			}
		}
	}

	if matches, _ := filepath.Glob(filepath.Join(pkgRoot, ".kblabs", "plugins", "*.yaml")); len(matches) > 0 {
		sort.Strings(matches)
		if m, err := readManifestFile(matches[0]); err == nil {
			return m, nil
		}
	}

	for _, p := range conventionalPaths {
		if m, err := readManifestFile(filepath.Join(pkgRoot, p)); err == nil {
			return m, nil
		}
	}

	return manifestmodel.Manifest{}, os.ErrNotExist
}

func readPackageJSON(pkgRoot string) (packageJSON, bool) {
	b, err := os.ReadFile(filepath.Join(pkgRoot, "package.json"))
	if err != nil {
		return packageJSON{}, false
	}
	var pj packageJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		return packageJSON{}, false
	}
	return pj, true
}

func readManifestFile(path string) (manifestmodel.Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return manifestmodel.Manifest{}, err
	}
	var m manifestmodel.Manifest
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(b, &m)
	} else {
		err = yaml.Unmarshal(b, &m)
	}
	if err != nil {
		return manifestmodel.Manifest{}, err
	}
	return m, nil
}
