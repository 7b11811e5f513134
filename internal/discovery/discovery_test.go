package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kblabs/kb/internal/manifestmodel"
)

func writePkg(t *testing.T, root, name string, manifestJSON string) string {
	t.Helper()
	pkgRoot := filepath.Join(root, name)
	if err := os.MkdirAll(pkgRoot, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgRoot, "package.json"), []byte(`{"name":"`+name+`"}`), 0o644); err != nil {
		t.Fatalf("WriteFile(package.json) error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgRoot, "manifest.v2.json"), []byte(manifestJSON), 0o644); err != nil {
		t.Fatalf("WriteFile(manifest.v2.json) error = %v", err)
	}
	return pkgRoot
}

func TestRoots_DefaultsToPackagesAndApps(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "package.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Join(ws, "packages", "a"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	roots, err := Roots(ws, nil)
	if err != nil {
		t.Fatalf("Roots() error = %v", err)
	}
	if len(roots) != 1 || filepath.Base(roots[0]) != "a" {
		t.Fatalf("Roots() = %v, want [.../packages/a]", roots)
	}
}

func TestRoots_PnpmWorkspacePatterns(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "pnpm-workspace.yaml"), []byte("packages:\n  - plugins/*\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Join(ws, "plugins", "p1"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	roots, err := Roots(ws, nil)
	if err != nil {
		t.Fatalf("Roots() error = %v", err)
	}
	if len(roots) != 1 || filepath.Base(roots[0]) != "p1" {
		t.Fatalf("Roots() = %v, want [.../plugins/p1]", roots)
	}
}

func TestRoots_ExcludesNodeModulesAndKbDir(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "package.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	for _, d := range []string{"packages/node_modules", "packages/.kb", "packages/real"} {
		if err := os.MkdirAll(filepath.Join(ws, d), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}
	roots, err := Roots(ws, nil)
	if err != nil {
		t.Fatalf("Roots() error = %v", err)
	}
	if len(roots) != 1 || filepath.Base(roots[0]) != "real" {
		t.Fatalf("Roots() = %v, want only .../packages/real", roots)
	}
}

func TestClassifySource(t *testing.T) {
	linked := map[string]bool{"/abs/linked-pkg": true}
	cases := []struct {
		path string
		want string
	}{
		{"/abs/linked-pkg", "linked"},
		{filepath.Join("/ws", "node_modules", "acme"), "node_modules"},
		{filepath.Join("/ws", "packages", "acme"), "workspace"},
	}
	for _, tc := range cases {
		got := ClassifySource("/ws", tc.path, linked)
		if string(got) != tc.want {
			t.Errorf("ClassifySource(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestScan_DeterministicOrderByID(t *testing.T) {
	root := t.TempDir()
	writePkg(t, root, "zeta", `{"id":"aaa-first","package":"zeta"}`)
	writePkg(t, root, "alpha", `{"id":"zzz-last","package":"alpha"}`)

	results := Scan(root, []string{root}, nil)
	if len(results) != 2 {
		t.Fatalf("Scan() returned %d results, want 2", len(results))
	}
	if results[0].Manifest.ID != "aaa-first" || results[1].Manifest.ID != "zzz-last" {
		t.Fatalf("Scan() order = [%s, %s], want id-sorted", results[0].Manifest.ID, results[1].Manifest.ID)
	}
}

func TestScan_MissingManifestIsAnError(t *testing.T) {
	root := t.TempDir()
	pkgRoot := filepath.Join(root, "bare")
	if err := os.MkdirAll(pkgRoot, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	results := Scan(root, []string{root}, nil)
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("Scan() = %+v, want a single result with a load error", results)
	}
}

func TestScan_ActualModuleFromPackageJSONType(t *testing.T) {
	root := t.TempDir()
	pkgRoot := filepath.Join(root, "esm-pkg")
	if err := os.MkdirAll(pkgRoot, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgRoot, "package.json"), []byte(`{"name":"esm-pkg","type":"module"}`), 0o644); err != nil {
		t.Fatalf("WriteFile(package.json) error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgRoot, "manifest.v2.json"), []byte(`{"id":"esm-pkg"}`), 0o644); err != nil {
		t.Fatalf("WriteFile(manifest.v2.json) error = %v", err)
	}

	results := Scan(root, []string{root}, nil)
	if len(results) != 1 || results[0].ActualModule != manifestmodel.ModuleESM {
		t.Fatalf("Scan() ActualModule = %+v, want esm", results)
	}
}

func TestScan_ActualModuleDefaultsToCJS(t *testing.T) {
	root := t.TempDir()
	writePkg(t, root, "cjs-pkg", `{"id":"cjs-pkg"}`)

	results := Scan(root, []string{root}, nil)
	if len(results) != 1 || results[0].ActualModule != manifestmodel.ModuleCJS {
		t.Fatalf("Scan() ActualModule = %+v, want cjs default", results)
	}
}

func TestScan_DedupesRootsSeenTwice(t *testing.T) {
	root := t.TempDir()
	writePkg(t, root, "once", `{"id":"once"}`)

	results := Scan(root, []string{root, root}, nil)
	if len(results) != 1 {
		t.Fatalf("Scan() with duplicate roots = %d results, want 1", len(results))
	}
}
