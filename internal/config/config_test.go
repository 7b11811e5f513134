package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withHomeDir(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("KB_HOME_DIR", home)
	return home
}

func TestLoadStore_DefaultsWhenMissing(t *testing.T) {
	withHomeDir(t)

	s, err := LoadStore()
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	if s.ActiveProfile != "default" {
		t.Fatalf("ActiveProfile = %q, want default", s.ActiveProfile)
	}
	if !s.Current("").AuditEnabled() {
		t.Fatal("default profile AuditEnabled() = false, want true")
	}
}

func TestSaveAndLoadStore_RoundTrip(t *testing.T) {
	home := withHomeDir(t)

	s := DefaultStore()
	s.Profiles["default"].General.LogLevel = "debug"
	s.Profiles["default"].Discovery.ExtraRoots = []string{"../vendor-plugins"}
	if err := SaveStore(s); err != nil {
		t.Fatalf("SaveStore() error = %v", err)
	}

	loaded, err := LoadStore()
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	if loaded.Current("").General.LogLevel != "debug" {
		t.Fatalf("General.LogLevel = %q, want debug", loaded.Current("").General.LogLevel)
	}
	if len(loaded.Current("").Discovery.ExtraRoots) != 1 || loaded.Current("").Discovery.ExtraRoots[0] != "../vendor-plugins" {
		t.Fatalf("Discovery.ExtraRoots = %v, want [../vendor-plugins]", loaded.Current("").Discovery.ExtraRoots)
	}

	path, err := FilePath()
	if err != nil {
		t.Fatalf("FilePath() error = %v", err)
	}
	if want := filepath.Join(home, "config.yaml"); path != want {
		t.Fatalf("FilePath() = %q, want %q", path, want)
	}
}

func TestLoadStore_EmptyFileDefaults(t *testing.T) {
	home := withHomeDir(t)
	path := filepath.Join(home, "config.yaml")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s, err := LoadStore()
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	if s.ActiveProfile != "default" {
		t.Fatalf("ActiveProfile = %q, want default", s.ActiveProfile)
	}
}

func TestLoadStore_CorruptFileErrors(t *testing.T) {
	home := withHomeDir(t)
	path := filepath.Join(home, "config.yaml")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("not: valid: yaml: ["), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := LoadStore(); err == nil {
		t.Fatal("LoadStore() error = nil, want a parse error on corrupt yaml")
	}
}

func TestCurrent_ProfileOverride(t *testing.T) {
	s := DefaultStore()
	prod := Default()
	prod.General.LogLevel = "warn"
	s.Profiles["prod"] = prod

	if got := s.Current("prod").General.LogLevel; got != "warn" {
		t.Fatalf("Current(\"prod\").General.LogLevel = %q, want warn", got)
	}
	if got := s.Current("").General.LogLevel; got != "info" {
		t.Fatalf("Current(\"\").General.LogLevel = %q, want info (default profile)", got)
	}
}

func TestCurrent_UnknownOverrideFallsBackToDefault(t *testing.T) {
	s := DefaultStore()
	if got := s.Current("does-not-exist").General.LogLevel; got != "info" {
		t.Fatalf("Current() with unknown override = %q, want fallback to default profile", got)
	}
}

func TestCurrent_NilStoreReturnsDefault(t *testing.T) {
	var s *Store
	if got := s.Current(""); got == nil || got.General.LogLevel != "info" {
		t.Fatalf("Current() on nil Store = %+v, want the built-in default", got)
	}
}

func TestAuditEnabled_DefaultsTrueWhenUnset(t *testing.T) {
	c := &Config{}
	if !c.AuditEnabled() {
		t.Fatal("AuditEnabled() = false, want true when General.AuditEnabled is nil")
	}
}

func TestAuditEnabled_HonorsExplicitFalse(t *testing.T) {
	f := false
	c := &Config{General: GeneralConfig{AuditEnabled: &f}}
	if c.AuditEnabled() {
		t.Fatal("AuditEnabled() = true, want false when explicitly disabled")
	}
}

func TestHomeDir_HonorsOverride(t *testing.T) {
	custom := t.TempDir()
	t.Setenv("KB_HOME_DIR", custom)
	dir, err := HomeDir()
	if err != nil {
		t.Fatalf("HomeDir() error = %v", err)
	}
	if dir != custom {
		t.Fatalf("HomeDir() = %q, want %q", dir, custom)
	}
}
