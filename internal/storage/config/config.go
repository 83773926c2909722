// Package config reads and writes sml's YAML settings and per-profile JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Config holds global application settings
type Config struct {
	DefaultLinkMethod    domain.LinkMethod `yaml:"-"`
	LinkMethodStr        string            `yaml:"default_link_method"`
	DefaultGame          string            `yaml:"default_game,omitempty"`
	ProfilesDir          string            `yaml:"profiles_dir,omitempty"`
	StagingDir           string            `yaml:"staging_dir,omitempty"`
	CaseInsensitivePaths *bool             `yaml:"case_insensitive_paths,omitempty"`
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/sml
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "sml")
}

// DefaultDataDir returns $XDG_DATA_HOME/sml
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "sml")
}

// Load reads configuration from the given directory. A missing file yields
// defaults; relative profile and staging dirs are resolved against dataDir.
func Load(configDir, dataDir string) (*Config, error) {
	cfg := &Config{DefaultLinkMethod: domain.LinkCopy}

	configPath := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if cfg.LinkMethodStr != "" {
		cfg.DefaultLinkMethod = domain.ParseLinkMethod(cfg.LinkMethodStr)
	}
	cfg.ProfilesDir = resolveDir(cfg.ProfilesDir, dataDir, "profiles")
	cfg.StagingDir = resolveDir(cfg.StagingDir, dataDir, "staging")
	return cfg, nil
}

// FoldCase reports whether paths are compared case-insensitively (default true)
func (c *Config) FoldCase() bool {
	return c.CaseInsensitivePaths == nil || *c.CaseInsensitivePaths
}

// Save writes configuration to the given directory
func (c *Config) Save(configDir string) error {
	c.LinkMethodStr = c.DefaultLinkMethod.String()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, configFileName), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetDefaultGame updates default_game in config.yaml, keeping the other
// settings as written (unresolved)
func SetDefaultGame(configDir, gameID string) error {
	cfg := &Config{DefaultLinkMethod: domain.LinkCopy}
	data, err := os.ReadFile(filepath.Join(configDir, configFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if cfg.LinkMethodStr != "" {
		cfg.DefaultLinkMethod = domain.ParseLinkMethod(cfg.LinkMethodStr)
	}
	cfg.DefaultGame = gameID
	return cfg.Save(configDir)
}

func resolveDir(dir, base, fallback string) string {
	dir = ExpandHome(dir)
	switch {
	case dir == "":
		return filepath.Join(base, fallback)
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(base, dir)
	}
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
