// Package cachestore implements the discovery Cache of spec.md §4.B: a
// per-workspace snapshot of the last successful scan, keyed by a fingerprint
// of the workspace's package set so a later invocation can skip the
// Discovery scan when nothing has changed; cached manifests still go
// through Preflight.
package cachestore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kblabs/kb/internal/manifestmodel"
)

const (
	cacheDir  = ".kb/cache"
	cacheFile = "cli-manifests.json"
)

// Entry is the persisted cache document (spec.md §4.B).
type Entry struct {
	Fingerprint string                          `json:"fingerprint"`
	Commands    []manifestmodel.RegisteredCommand `json:"commands"`
	CreatedAt   int64                           `json:"createdAt"`
}

// FilePath returns <workspace>/.kb/cache/cli-manifests.json.
func FilePath(workspace string) string {
	return filepath.Join(workspace, cacheDir, cacheFile)
}

// Read loads the cache entry, returning (nil, nil) when absent or corrupt.
// A corrupt cache is not an error worth surfacing to the user: spec.md §4.B
// treats it the same as a cold cache and simply re-runs discovery.
func Read(workspace string) (*Entry, error) {
	b, err := os.ReadFile(FilePath(workspace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, nil
	}
	return &e, nil
}

// Write persists entry atomically.
func Write(workspace string, entry *Entry) error {
	entry.CreatedAt = time.Now().UnixMilli()
	path := FilePath(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ClearOptions controls Clear's scope.
type ClearOptions struct {
	// Deep additionally invokes Invalidate, for callers holding an
	// in-process registry cache alongside the on-disk one.
	Deep       bool
	Invalidate func()
}

// Clear removes the on-disk cache file, and when opts.Deep is set, also
// calls the caller's in-process invalidation hook (spec.md §4.B: "clearing
// must cover both the persisted cache and any in-memory copy").
func Clear(workspace string, opts ClearOptions) error {
	err := os.Remove(FilePath(workspace))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if opts.Deep && opts.Invalidate != nil {
		opts.Invalidate()
	}
	return nil
}

// PackageStat is one input to Fingerprint: a candidate package's identity
// and the mtime/size of its package.json, the cheapest available proxy for
// "has this package changed" without hashing file contents.
type PackageStat struct {
	Name    string
	ModTime int64
	Size    int64
}

// Fingerprint computes the workspace fingerprint spec.md §9 left open,
// resolved in SPEC_FULL.md §C as sha256 over the sorted, newline-joined
// (name, mtime, size) tuples of every candidate package.json. Sorting first
// makes the result independent of scan order.
func Fingerprint(stats []PackageStat) string {
	sorted := append([]PackageStat(nil), stats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, s := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", s.Name, s.ModTime, s.Size)
	}
	return "sha256-" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// StatPackage builds a PackageStat from a package root directory's
// package.json, returning ok=false when it cannot be stat'd (the package is
// excluded from the fingerprint rather than failing discovery entirely).
func StatPackage(name, pkgRoot string) (PackageStat, bool) {
	fi, err := os.Stat(filepath.Join(pkgRoot, "package.json"))
	if err != nil {
		return PackageStat{}, false
	}
	return PackageStat{Name: name, ModTime: fi.ModTime().UnixMilli(), Size: fi.Size()}, true
}
