// Package allowlist implements an organization-managed package allowlist:
// platform admins can pin the set of packages discovery is permitted to
// register and lock enforcement, so that developers in a workspace cannot
// pick up commands from outside the approved set. Adapted from
// kcli/internal/plugin's P2-5 plugin-allowlist feature (same JSON document
// shape and lock semantics), retargeted from plugin binary names onto
// manifest package identifiers and wired as a registration-time gate rather
// than a subprocess-install gate, since this host has no install step.
package allowlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kblabs/kb/internal/config"
)

// Store is the JSON document persisted to allowlist.json in the kb home
// directory.
type Store struct {
	// Packages is the sorted, deduplicated list of permitted package names.
	Packages []string `json:"packages"`
	// Locked controls enforcement.
	//   false (default) — the allowlist has no effect; any package may
	//   register.
	//   true            — only packages in Packages may register.
	Locked bool `json:"locked,omitempty"`
}

// ErrNotAllowed is wrapped into the error IsAllowed returns when the
// allowlist is locked and the package is not present in it.
var ErrNotAllowed = errors.New("package not in organization allowlist")

func filePath() (string, error) {
	if p := os.Getenv("KB_ALLOWLIST_FILE"); p != "" {
		return p, nil
	}
	home, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "allowlist.json"), nil
}

// Load reads and parses the allowlist file, returning an empty (unlocked)
// Store when the file does not exist.
func Load() (*Store, error) {
	path, err := filePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Store{}, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return &Store{}, nil
	}
	var s Store
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("allowlist.json: %w", err)
	}
	s.Packages = dedupe(s.Packages)
	sort.Strings(s.Packages)
	return &s, nil
}

// Save writes the allowlist to disk, deduplicated and sorted.
func Save(store *Store) error {
	if store == nil {
		return fmt.Errorf("nil allowlist store")
	}
	store.Packages = dedupe(store.Packages)
	sort.Strings(store.Packages)
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	b, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// IsAllowed reports whether pkg may register a command.
//
// When the allowlist is not locked this always returns nil. When it is
// locked and pkg is absent from Packages, it returns an error wrapping
// ErrNotAllowed. A corrupt or missing allowlist file fails open rather
// than blocking every registration.
func IsAllowed(pkg string) error {
	store, err := Load()
	if err != nil {
		return nil
	}
	if !store.Locked {
		return nil
	}
	for _, p := range store.Packages {
		if p == pkg {
			return nil
		}
	}
	return fmt.Errorf("package %q: %w", pkg, ErrNotAllowed)
}

// Add appends names to the allowlist (no-op for duplicates).
func Add(names []string) error {
	store, err := Load()
	if err != nil {
		return err
	}
	store.Packages = dedupe(append(store.Packages, names...))
	sort.Strings(store.Packages)
	return Save(store)
}

// Remove removes names from the allowlist (no-op for missing names).
func Remove(names []string) error {
	store, err := Load()
	if err != nil {
		return err
	}
	rm := make(map[string]struct{}, len(names))
	for _, n := range names {
		rm[n] = struct{}{}
	}
	out := store.Packages[:0]
	for _, p := range store.Packages {
		if _, found := rm[p]; !found {
			out = append(out, p)
		}
	}
	store.Packages = out
	return Save(store)
}

// SetLocked sets the Locked flag and saves.
func SetLocked(locked bool) error {
	store, err := Load()
	if err != nil {
		return err
	}
	store.Locked = locked
	return Save(store)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
