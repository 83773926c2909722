package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
)

const profileFileName = "profile.json"

// ProfileStore keeps one directory per profile under a root directory.
// The directory name is the profile name; profile.json holds its settings.
type ProfileStore struct {
	dir string
}

// NewProfileStore creates a store rooted at dir
func NewProfileStore(dir string) *ProfileStore {
	return &ProfileStore{dir: dir}
}

// Root returns the directory holding every profile
func (s *ProfileStore) Root() string {
	return s.dir
}

// Dir returns the directory of a profile
func (s *ProfileStore) Dir(name string) string {
	return filepath.Join(s.dir, name)
}

// ValidateName rejects names that cannot be used as a single directory name
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid profile name %q", domain.ErrInvalidConfig, name)
	}
	return nil
}

// Exists reports whether a profile with this name is stored
func (s *ProfileStore) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(name), profileFileName))
	return err == nil
}

// Load reads a profile. Deployed is left false; the caller derives it.
func (s *ProfileStore) Load(name string) (*domain.Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(name), profileFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, name)
		}
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	profile := domain.NewProfile(name, "")
	if err := json.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", name, err)
	}
	profile.Name = name
	profile.ModList(true)
	profile.ModList(false)
	if profile.Plugins == nil {
		profile.Plugins = []domain.PluginRef{}
	}
	return profile, nil
}

// Save writes a profile, replacing any previous file atomically
func (s *ProfileStore) Save(profile *domain.Profile) error {
	if err := ValidateName(profile.Name); err != nil {
		return err
	}
	profile.ModList(true)
	profile.ModList(false)

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	dir := s.Dir(profile.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, profileFileName+".*")
	if err != nil {
		return fmt.Errorf("creating temp profile: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, profileFileName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing profile: %w", err)
	}
	return nil
}

// List returns the names of all stored profiles, sorted
func (s *ProfileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading profiles dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && s.Exists(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a profile together with its stored mods
func (s *ProfileStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !s.Exists(name) {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, name)
	}
	if err := os.RemoveAll(s.Dir(name)); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	return nil
}

// Rename moves a profile directory to a new name
func (s *ProfileStore) Rename(oldName, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	if !s.Exists(oldName) {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, oldName)
	}
	if s.Exists(newName) {
		return fmt.Errorf("%w: %s", domain.ErrProfileExists, newName)
	}
	if err := os.Rename(s.Dir(oldName), s.Dir(newName)); err != nil {
		return fmt.Errorf("renaming profile: %w", err)
	}
	return nil
}
