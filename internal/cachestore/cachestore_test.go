package cachestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kblabs/kb/internal/manifestmodel"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	workspace := t.TempDir()
	entry := &Entry{
		Fingerprint: "sha256-abc",
		Commands: []manifestmodel.RegisteredCommand{
			{Manifest: manifestmodel.Manifest{ID: "hello", Package: "acme-cli"}},
		},
	}
	if err := Write(workspace, entry); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Read(workspace)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got == nil || got.Fingerprint != "sha256-abc" {
		t.Fatalf("Read() = %+v, want fingerprint sha256-abc", got)
	}
	if len(got.Commands) != 1 || got.Commands[0].Manifest.ID != "hello" {
		t.Fatalf("Read().Commands = %+v", got.Commands)
	}
	if got.CreatedAt == 0 {
		t.Fatal("Write() did not stamp CreatedAt")
	}
}

func TestRead_MissingFileReturnsNilNil(t *testing.T) {
	workspace := t.TempDir()
	got, err := Read(workspace)
	if err != nil || got != nil {
		t.Fatalf("Read() = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestRead_CorruptFileReturnsNilNil(t *testing.T) {
	workspace := t.TempDir()
	path := FilePath(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := Read(workspace)
	if err != nil || got != nil {
		t.Fatalf("Read() on corrupt cache = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestClear_RemovesFileAndInvokesDeepInvalidate(t *testing.T) {
	workspace := t.TempDir()
	if err := Write(workspace, &Entry{Fingerprint: "x"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	invalidated := false
	if err := Clear(workspace, ClearOptions{Deep: true, Invalidate: func() { invalidated = true }}); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if !invalidated {
		t.Fatal("Clear() with Deep=true did not call Invalidate")
	}
	if _, err := os.Stat(FilePath(workspace)); !os.IsNotExist(err) {
		t.Fatalf("cache file still exists after Clear(): err=%v", err)
	}
}

func TestClear_MissingFileIsNotAnError(t *testing.T) {
	workspace := t.TempDir()
	if err := Clear(workspace, ClearOptions{}); err != nil {
		t.Fatalf("Clear() on missing cache error = %v", err)
	}
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := []PackageStat{{Name: "b", ModTime: 2, Size: 20}, {Name: "a", ModTime: 1, Size: 10}}
	b := []PackageStat{{Name: "a", ModTime: 1, Size: 10}, {Name: "b", ModTime: 2, Size: 20}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("Fingerprint() depends on input order, want order-independent")
	}
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	a := []PackageStat{{Name: "a", ModTime: 1, Size: 10}}
	b := []PackageStat{{Name: "a", ModTime: 2, Size: 10}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("Fingerprint() identical for different mtimes")
	}
}

func TestStatPackage(t *testing.T) {
	pkgRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(pkgRoot, "package.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	stat, ok := StatPackage("acme", pkgRoot)
	if !ok {
		t.Fatal("StatPackage() ok = false, want true")
	}
	if stat.Name != "acme" || stat.Size != 2 {
		t.Fatalf("StatPackage() = %+v", stat)
	}
}

func TestStatPackage_MissingFile(t *testing.T) {
	_, ok := StatPackage("acme", t.TempDir())
	if ok {
		t.Fatal("StatPackage() ok = true for missing package.json, want false")
	}
}
