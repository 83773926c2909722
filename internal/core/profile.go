package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/logging"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/config"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/modstore"

	"github.com/rs/zerolog"
)

// GameLookup resolves a game ID to its effective configuration
type GameLookup interface {
	Game(id string) (*domain.Game, error)
}

// ProfileManager handles profile CRUD and the edits of a profile's mod and plugin lists
type ProfileManager struct {
	profiles *config.ProfileStore
	store    *modstore.Store
	deployer *Deployer
	games    GameLookup
	logger   zerolog.Logger
}

// NewProfileManager creates a new profile manager
func NewProfileManager(profiles *config.ProfileStore, store *modstore.Store, deployer *Deployer, games GameLookup, logger zerolog.Logger) *ProfileManager {
	return &ProfileManager{
		profiles: profiles,
		store:    store,
		deployer: deployer,
		games:    games,
		logger:   logging.Component(logger, "profiles"),
	}
}

// Create creates and saves an empty profile for a game
func (pm *ProfileManager) Create(name, gameID string) (*domain.Profile, error) {
	if err := config.ValidateName(name); err != nil {
		return nil, err
	}
	if pm.profiles.Exists(name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileExists, name)
	}
	if _, err := pm.games.Game(gameID); err != nil {
		return nil, err
	}

	profile := domain.NewProfile(name, gameID)
	if err := pm.profiles.Save(profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	pm.logger.Info().Str("profile", name).Str("game", gameID).Msg("Profile created")
	return profile, nil
}

// Load reads a profile and derives whether it is the one currently deployed
func (pm *ProfileManager) Load(name string) (*domain.Profile, error) {
	profile, err := pm.profiles.Load(name)
	if err != nil {
		return nil, err
	}
	if game, err := pm.games.Game(profile.GameID); err == nil {
		profile.Deployed = pm.deployer.IsDeployed(profile, game)
	}
	return profile, nil
}

// Save writes a profile
func (pm *ProfileManager) Save(profile *domain.Profile) error {
	return pm.profiles.Save(profile)
}

// List loads every stored profile, optionally only those of one game
func (pm *ProfileManager) List(gameID string) ([]*domain.Profile, error) {
	names, err := pm.profiles.List()
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	profiles := make([]*domain.Profile, 0, len(names))
	for _, name := range names {
		profile, err := pm.Load(name)
		if err != nil {
			pm.logger.Warn().Err(err).Str("profile", name).Msg("Skipping unreadable profile")
			continue
		}
		if gameID != "" && profile.GameID != gameID {
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// Delete removes a profile and its stored mods. A deployed profile must be undeployed first.
func (pm *ProfileManager) Delete(name string) error {
	if err := pm.ensureNotDeployed(name); err != nil {
		return err
	}
	return pm.profiles.Delete(name)
}

// Rename renames a profile. A deployed profile must be undeployed first.
func (pm *ProfileManager) Rename(oldName, newName string) error {
	if err := pm.ensureNotDeployed(oldName); err != nil {
		return err
	}
	return pm.profiles.Rename(oldName, newName)
}

// Copy duplicates a profile, including its stored mods, under a new name
func (pm *ProfileManager) Copy(srcName, dstName string) (*domain.Profile, error) {
	if err := config.ValidateName(dstName); err != nil {
		return nil, err
	}
	if !pm.profiles.Exists(srcName) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, srcName)
	}
	if _, err := os.Stat(pm.profiles.Dir(dstName)); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileExists, dstName)
	}

	if err := os.CopyFS(pm.profiles.Dir(dstName), os.DirFS(pm.profiles.Dir(srcName))); err != nil {
		_ = os.RemoveAll(pm.profiles.Dir(dstName))
		return nil, fmt.Errorf("copying profile: %w", err)
	}
	return pm.Load(dstName)
}

func (pm *ProfileManager) ensureNotDeployed(name string) error {
	profile, err := pm.Load(name)
	if err != nil {
		return err
	}
	if profile.Deployed {
		return fmt.Errorf("profile %q is deployed; undeploy it first", name)
	}
	return nil
}

// SetModEnabled enables or disables a mod
func (pm *ProfileManager) SetModEnabled(profile *domain.Profile, root bool, mod string, enabled bool) error {
	list := profile.ModList(root)
	entry, ok := list.Get(mod)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrModNotFound, mod)
	}
	entry.Enabled = enabled
	list.Set(mod, entry)
	return pm.profiles.Save(profile)
}

// MoveMod moves a mod to a new position in its list
func (pm *ProfileManager) MoveMod(profile *domain.Profile, root bool, mod string, index int) error {
	if !profile.ModList(root).Move(mod, index) {
		return fmt.Errorf("%w: %s", domain.ErrModNotFound, mod)
	}
	return pm.profiles.Save(profile)
}

// RenameMod renames a mod in place, keeping its position and plugin ownership
func (pm *ProfileManager) RenameMod(profile *domain.Profile, root bool, oldName, newName string) error {
	list := profile.ModList(root)
	idx := list.IndexOf(oldName)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrModNotFound, oldName)
	}
	if list.Has(newName) {
		return fmt.Errorf("mod %s already exists", newName)
	}
	if err := pm.store.Rename(profile.Name, root, oldName, newName); err != nil {
		return err
	}

	entry, _ := list.Get(oldName)
	list.Delete(oldName)
	list.InsertAt(newName, entry, idx)
	for i := range profile.Plugins {
		if profile.Plugins[i].ModID == oldName {
			profile.Plugins[i].ModID = newName
		}
	}
	return pm.profiles.Save(profile)
}

// DeleteMod removes a mod, its stored files and the plugins it provides
func (pm *ProfileManager) DeleteMod(profile *domain.Profile, root bool, mod string) error {
	list := profile.ModList(root)
	if !list.Has(mod) {
		return fmt.Errorf("%w: %s", domain.ErrModNotFound, mod)
	}
	if err := pm.store.Delete(profile.Name, root, mod); err != nil {
		return err
	}
	list.Delete(mod)

	if !root {
		kept := profile.Plugins[:0]
		for _, ref := range profile.Plugins {
			if ref.ModID != mod {
				kept = append(kept, ref)
			}
		}
		profile.Plugins = kept
	}
	return pm.profiles.Save(profile)
}

// SetPluginEnabled enables or disables a plugin of the load order
func (pm *ProfileManager) SetPluginEnabled(profile *domain.Profile, plugin string, enabled bool) error {
	idx := profile.PluginIndex(plugin)
	if idx < 0 {
		return fmt.Errorf("plugin not found: %s", plugin)
	}
	profile.Plugins[idx].Enabled = enabled
	return pm.profiles.Save(profile)
}

// MovePlugin moves a plugin to a new load order position (clamped to the list)
func (pm *ProfileManager) MovePlugin(profile *domain.Profile, plugin string, index int) error {
	idx := profile.PluginIndex(plugin)
	if idx < 0 {
		return fmt.Errorf("plugin not found: %s", plugin)
	}
	ref := profile.Plugins[idx]
	rest := append(profile.Plugins[:idx:idx], profile.Plugins[idx+1:]...)
	index = max(0, min(index, len(rest)))

	out := make([]domain.PluginRef, 0, len(profile.Plugins))
	out = append(out, rest[:index]...)
	out = append(out, ref)
	out = append(out, rest[index:]...)
	profile.Plugins = out
	return pm.profiles.Save(profile)
}

// RestorePluginBackup replaces the load order with the one saved in a plugin list
// backup. Plugins missing from the backup keep their place after the restored ones.
func (pm *ProfileManager) RestorePluginBackup(profile *domain.Profile, backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("reading plugin list backup: %w", err)
	}
	restored := ParsePluginList(string(data))
	if len(restored) == 0 {
		return fmt.Errorf("plugin list backup %s lists no plugins", filepath.Base(backupPath))
	}

	seen := make(map[string]bool, len(restored))
	out := make([]domain.PluginRef, 0, len(profile.Plugins))
	for _, ref := range restored {
		key := strings.ToLower(ref.Plugin)
		if seen[key] {
			continue
		}
		seen[key] = true
		if idx := profile.PluginIndex(ref.Plugin); idx >= 0 {
			ref.ModID = profile.Plugins[idx].ModID
		}
		out = append(out, ref)
	}
	for _, ref := range profile.Plugins {
		if !seen[strings.ToLower(ref.Plugin)] {
			out = append(out, ref)
		}
	}
	profile.Plugins = out
	return pm.profiles.Save(profile)
}

// VerificationCheck is the outcome of checking one profile setting
type VerificationCheck struct {
	Field string // Profile field, or "mods/<name>", "rootMods/<name>", "plugins/<name>"
	Value string
	Error string // Empty when the check passed
}

// ProfileVerification collects the per-field checks of a profile
type ProfileVerification struct {
	Profile string
	Checks  []VerificationCheck
}

// OK reports whether every check passed
func (v *ProfileVerification) OK() bool {
	return len(v.Failures()) == 0
}

// Failures returns the checks that did not pass
func (v *ProfileVerification) Failures() []VerificationCheck {
	var out []VerificationCheck
	for _, c := range v.Checks {
		if c.Error != "" {
			out = append(out, c)
		}
	}
	return out
}

func (v *ProfileVerification) add(field, value, problem string) {
	v.Checks = append(v.Checks, VerificationCheck{Field: field, Value: value, Error: problem})
}

// VerifyProfile checks a profile's game, directories, mods and plugins.
// Mod problems are also stored in each ModEntry's VerificationError.
func (pm *ProfileManager) VerifyProfile(profile *domain.Profile) *ProfileVerification {
	v := &ProfileVerification{Profile: profile.Name}

	game, err := pm.games.Game(profile.GameID)
	if err != nil {
		v.add("gameId", profile.GameID, err.Error())
	} else {
		v.add("gameId", profile.GameID, "")
	}

	inst := profile.Installation(game)
	v.add("gameBaseDir", inst.BaseDir, checkDir(inst.BaseDir))
	v.add("gameModDir", inst.ModDir, checkDir(inst.ModDir))
	if inst.PluginListPath != "" {
		v.add("pluginListPath", inst.PluginListPath, checkDir(filepath.Dir(inst.PluginListPath)))
	} else if len(profile.Plugins) > 0 {
		v.add("pluginListPath", "", "not set")
	}
	if profile.ManageConfigFiles {
		v.add("configFilePath", inst.ConfigDir, checkDir(inst.ConfigDir))
	}

	for _, root := range []bool{true, false} {
		field := "mods/"
		if root {
			field = "rootMods/"
		}
		list := profile.ModList(root)
		for _, e := range list.Entries() {
			problem := ""
			if !pm.store.Exists(profile.Name, root, e.Key) {
				problem = "mod files are missing"
			}
			entry := e.Value
			entry.VerificationError = problem
			list.Set(e.Key, entry)
			v.add(field+e.Key, pm.store.ModPath(profile.Name, root, e.Key), problem)
		}
	}

	available := pm.availablePlugins(profile, inst.ModDir)
	for _, ref := range profile.Plugins {
		problem := ""
		if !available[strings.ToLower(ref.Plugin)] {
			problem = "plugin file not found"
		}
		v.add("plugins/"+ref.Plugin, ref.ModID, problem)
	}
	return v
}

// availablePlugins returns the lower-cased names of files that can back a plugin
// entry: top-level files of stored regular mods and of the game data directory
func (pm *ProfileManager) availablePlugins(profile *domain.Profile, modDir string) map[string]bool {
	out := make(map[string]bool)
	for _, name := range profile.ModList(false).Keys() {
		files, err := pm.store.ListFiles(profile.Name, false, name, false)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !strings.ContainsRune(f, filepath.Separator) {
				out[strings.ToLower(f)] = true
			}
		}
	}
	if modDir != "" {
		entries, err := os.ReadDir(modDir)
		if err == nil {
			for _, e := range entries {
				if !e.IsDir() {
					out[strings.ToLower(e.Name())] = true
				}
			}
		}
	}
	return out
}

// checkDir returns "" when dir is an existing directory, otherwise the problem
func checkDir(dir string) string {
	if dir == "" {
		return "not set"
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "directory does not exist"
	}
	if err != nil {
		return err.Error()
	}
	if !info.IsDir() {
		return "not a directory"
	}
	return ""
}
