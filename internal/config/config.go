// Package config implements the host configuration store at
// ~/.kb/config.yaml: a named-profile store selected by the KB_PROFILE
// environment variable (spec.md §6), holding the ambient settings the
// Dispatcher and Built-in Command Bundle need (log level, audit toggle,
// extra discovery roots, crash-notification integrations).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	dirName  = ".kb"
	fileName = "config.yaml"
)

// Store is the on-disk document: a named set of profiles plus which one is
// active. KB_PROFILE overrides ActiveProfile for a single invocation
// without rewriting the file.
type Store struct {
	ActiveProfile string             `yaml:"active_profile"`
	Profiles      map[string]*Config `yaml:"profiles"`
}

// Config is one profile's settings.
type Config struct {
	General      GeneralConfig      `yaml:"general"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Integrations IntegrationsConfig `yaml:"integrations"`
}

// GeneralConfig holds host-wide ambient settings.
type GeneralConfig struct {
	LogLevel          string `yaml:"logLevel"`
	StartupTimeBudget string `yaml:"startupTimeBudget"`
	// AuditEnabled is the stored audit toggle read by Config.AuditEnabled;
	// nil means "use default". The dispatcher's audit log does not consult
	// it.
	AuditEnabled *bool `yaml:"auditEnabled,omitempty"`
}

// DiscoveryConfig tunes the Discovery component (§4.C).
type DiscoveryConfig struct {
	// ExtraRoots are additional directories scanned for candidate packages,
	// beyond the workspace-derived roots.
	ExtraRoots []string `yaml:"extraRoots,omitempty"`
	// DefaultEnabled is the fallback isEnabled() verdict (§4.A) for packages
	// that are in neither the enabled nor disabled set.
	DefaultEnabled bool `yaml:"defaultEnabled"`
}

// IntegrationsConfig configures the crash-report notifier (SPEC_FULL.md
// §B.6). Field names and purpose are carried over unchanged from the
// teacher's own IntegrationsConfig, which already declared them for
// alerting but never wired a concrete client.
type IntegrationsConfig struct {
	SlackWebhook string `yaml:"slackWebhook,omitempty"`
	PagerDutyKey string `yaml:"pagerDutyKey,omitempty"`
}

func ptrBool(v bool) *bool { return &v }

// Default returns the built-in default profile.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:          "info",
			StartupTimeBudget: "250ms",
			AuditEnabled:      ptrBool(true),
		},
		Discovery: DiscoveryConfig{
			ExtraRoots:     []string{},
			DefaultEnabled: true,
		},
	}
}

// DefaultStore returns a Store containing only the default profile.
func DefaultStore() *Store {
	return &Store{
		ActiveProfile: "default",
		Profiles:      map[string]*Config{"default": Default()},
	}
}

// FilePath returns ~/.kb/config.yaml, or the KB_HOME_DIR override.
func FilePath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// HomeDir returns the kb host home directory (~/.kb by default).
func HomeDir() (string, error) {
	if custom := strings.TrimSpace(os.Getenv("KB_HOME_DIR")); custom != "" {
		return custom, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

// LoadStore reads the config store, defaulting when absent.
func LoadStore() (*Store, error) {
	path, err := FilePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultStore(), nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return DefaultStore(), nil
	}
	s := DefaultStore()
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.Profiles == nil {
		s.Profiles = map[string]*Config{"default": Default()}
	}
	if s.ActiveProfile == "" {
		s.ActiveProfile = "default"
	}
	return s, nil
}

// SaveStore writes the config store atomically.
func SaveStore(s *Store) error {
	path, err := FilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Current resolves the active profile, honoring a KB_PROFILE override when
// non-empty and present in the store.
func (s *Store) Current(profileOverride string) *Config {
	if s == nil || s.Profiles == nil {
		return Default()
	}
	name := s.ActiveProfile
	if profileOverride != "" {
		name = profileOverride
	}
	if cfg, ok := s.Profiles[name]; ok {
		return cfg
	}
	if cfg, ok := s.Profiles["default"]; ok {
		return cfg
	}
	return Default()
}

// Load loads the store and resolves the active profile in one step.
func Load(profileOverride string) (*Config, error) {
	s, err := LoadStore()
	if err != nil {
		return nil, err
	}
	return s.Current(profileOverride), nil
}

// AuditEnabled reports the stored audit toggle, defaulting to true when
// unset.
func (c *Config) AuditEnabled() bool {
	if c == nil || c.General.AuditEnabled == nil {
		return true
	}
	return *c.General.AuditEnabled
}
