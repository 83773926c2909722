package core_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"
	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticGames serves games from a map
type staticGames map[string]*domain.Game

func (g staticGames) Game(id string) (*domain.Game, error) {
	game, ok := g[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGameNotFound, id)
	}
	return game, nil
}

func newProfileManager(f *fixture) (*core.ProfileManager, *core.Deployer) {
	d := newDeployer(f)
	return core.NewProfileManager(f.profiles, f.store, d, staticGames{f.game.ID: f.game}, zerolog.Nop()), d
}

func TestProfileManager_Create(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)

	profile, err := pm.Create("survival", f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, "survival", profile.Name)
	assert.Equal(t, f.game.ID, profile.GameID)
	assert.Zero(t, profile.Mods.Len())
	assert.FileExists(t, filepath.Join(f.profiles.Dir("survival"), "profile.json"))

	_, err = pm.Create("survival", f.game.ID)
	assert.ErrorIs(t, err, domain.ErrProfileExists)

	_, err = pm.Create("other", "morrowind")
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	_, err = pm.Create("../escape", f.game.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestProfileManager_List(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)

	_, err := pm.Create("combat", f.game.ID)
	require.NoError(t, err)
	_, err = pm.Create("survival", f.game.ID)
	require.NoError(t, err)

	profiles, err := pm.List(f.game.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "combat", profiles[0].Name)
	assert.Equal(t, "survival", profiles[1].Name)

	profiles, err = pm.List("skyrim-se")
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestProfileManager_LoadDerivesDeployed(t *testing.T) {
	f := newFixture(t)
	pm, d := newProfileManager(f)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})

	loaded, err := pm.Load("default")
	require.NoError(t, err)
	assert.False(t, loaded.Deployed)

	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))
	loaded, err = pm.Load("default")
	require.NoError(t, err)
	assert.True(t, loaded.Deployed)

	_, err = pm.Load("missing")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestProfileManager_DeleteRefusesDeployedProfile(t *testing.T) {
	f := newFixture(t)
	pm, d := newProfileManager(f)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	assert.Error(t, pm.Delete("default"))
	assert.Error(t, pm.Rename("default", "renamed"))

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	require.NoError(t, pm.Delete("default"))
	assert.NoDirExists(t, f.profiles.Dir("default"))
}

func TestProfileManager_RenameAndCopy(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)
	p := f.profile(t, "original")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})

	require.NoError(t, pm.Rename("original", "renamed"))
	renamed, err := pm.Load("renamed")
	require.NoError(t, err)
	assert.True(t, renamed.Mods.Has("A"))
	assert.True(t, f.store.Exists("renamed", false, "A"))

	copied, err := pm.Copy("renamed", "copy")
	require.NoError(t, err)
	assert.Equal(t, "copy", copied.Name)
	assert.Equal(t, []string{"A"}, copied.Mods.Keys())
	assert.True(t, f.store.Exists("copy", false, "A"))

	_, err = pm.Copy("renamed", "copy")
	assert.ErrorIs(t, err, domain.ErrProfileExists)
	_, err = pm.Copy("missing", "other")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestProfileManager_ModListEdits(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})
	f.addMod(t, p, false, "B", true, map[string]string{"b.esp": "b"})
	f.addMod(t, p, false, "C", true, map[string]string{"c.esp": "c"})
	p.Plugins = []domain.PluginRef{
		{Plugin: "a.esp", Enabled: true, ModID: "A"},
		{Plugin: "b.esp", Enabled: true, ModID: "B"},
	}

	require.NoError(t, pm.SetModEnabled(p, false, "B", false))
	entry, _ := p.Mods.Get("B")
	assert.False(t, entry.Enabled)

	require.NoError(t, pm.MoveMod(p, false, "C", 0))
	assert.Equal(t, []string{"C", "A", "B"}, p.Mods.Keys())

	require.NoError(t, pm.RenameMod(p, false, "A", "Alpha"))
	assert.Equal(t, []string{"C", "Alpha", "B"}, p.Mods.Keys())
	assert.Equal(t, "Alpha", p.Plugins[0].ModID)
	assert.True(t, f.store.Exists(p.Name, false, "Alpha"))

	require.NoError(t, pm.DeleteMod(p, false, "B"))
	assert.Equal(t, []string{"C", "Alpha"}, p.Mods.Keys())
	assert.Equal(t, []domain.PluginRef{{Plugin: "a.esp", Enabled: true, ModID: "Alpha"}}, p.Plugins)
	assert.False(t, f.store.Exists(p.Name, false, "B"))

	saved, err := f.profiles.Load(p.Name)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "Alpha"}, saved.Mods.Keys())

	assert.ErrorIs(t, pm.SetModEnabled(p, false, "missing", true), domain.ErrModNotFound)
	assert.ErrorIs(t, pm.MoveMod(p, false, "missing", 0), domain.ErrModNotFound)
	assert.ErrorIs(t, pm.DeleteMod(p, true, "C"), domain.ErrModNotFound)
	assert.Error(t, pm.RenameMod(p, false, "C", "Alpha"))
}

func TestProfileManager_PluginEdits(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)
	p := f.profile(t, "default")
	p.Plugins = []domain.PluginRef{
		{Plugin: "A.esm", Enabled: true},
		{Plugin: "B.esp", Enabled: true},
		{Plugin: "C.esp", Enabled: true},
	}

	require.NoError(t, pm.SetPluginEnabled(p, "b.esp", false))
	assert.False(t, p.Plugins[1].Enabled)

	require.NoError(t, pm.MovePlugin(p, "A.esm", 99))
	assert.Equal(t, "A.esm", p.Plugins[2].Plugin)
	require.NoError(t, pm.MovePlugin(p, "C.esp", -5))
	assert.Equal(t, []string{"C.esp", "B.esp", "A.esm"}, pluginNames(p))

	assert.Error(t, pm.SetPluginEnabled(p, "missing.esp", true))
	assert.Error(t, pm.MovePlugin(p, "missing.esp", 0))
}

func TestProfileManager_RestorePluginBackup(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)
	p := f.profile(t, "default")
	p.Plugins = []domain.PluginRef{
		{Plugin: "A.esp", Enabled: true, ModID: "ModA"},
		{Plugin: "B.esp", Enabled: false, ModID: "ModB"},
		{Plugin: "C.esp", Enabled: true, ModID: "ModC"},
	}

	backup := filepath.Join(t.TempDir(), "plugins.txt.sml_bak.1")
	require.NoError(t, os.WriteFile(backup, []byte("# old header\n*B.esp\nA.esp\n*Gone.esp\n"), 0644))

	require.NoError(t, pm.RestorePluginBackup(p, backup))
	assert.Equal(t, []domain.PluginRef{
		{Plugin: "B.esp", Enabled: true, ModID: "ModB"},
		{Plugin: "A.esp", Enabled: false, ModID: "ModA"},
		{Plugin: "Gone.esp", Enabled: true},
		{Plugin: "C.esp", Enabled: true, ModID: "ModC"},
	}, p.Plugins)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0644))
	assert.Error(t, pm.RestorePluginBackup(p, empty))
	assert.Error(t, pm.RestorePluginBackup(p, filepath.Join(t.TempDir(), "missing")))
}

func TestProfileManager_VerifyProfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.game.PluginListPath), 0755))
	pm, _ := newProfileManager(f)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})
	f.addMod(t, p, true, "Loader", true, map[string]string{"loader.exe": "x"})
	writeFiles(t, f.game.ModPath, map[string]string{"Starfield.esm": "base"})
	p.Plugins = []domain.PluginRef{
		{Plugin: "Starfield.esm", Enabled: true},
		{Plugin: "A.ESP", Enabled: true, ModID: "A"},
	}

	v := pm.VerifyProfile(p)
	assert.True(t, v.OK(), "unexpected failures: %v", v.Failures())
	assert.Equal(t, "default", v.Profile)
}

func TestProfileManager_VerifyProfile_ReportsProblems(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})
	p.Mods.Set("Ghost", domain.ModEntry{Enabled: true})
	p.Plugins = []domain.PluginRef{{Plugin: "missing.esp", Enabled: true}}
	p.ModDir = filepath.Join(f.root, "nowhere")
	p.ManageConfigFiles = true
	p.ConfigDir = filepath.Join(f.root, "missing-config")

	v := pm.VerifyProfile(p)
	require.False(t, v.OK())

	failed := make(map[string]string)
	for _, c := range v.Failures() {
		failed[c.Field] = c.Error
	}
	assert.Equal(t, "directory does not exist", failed["gameModDir"])
	assert.Equal(t, "directory does not exist", failed["configFilePath"])
	assert.Equal(t, "directory does not exist", failed["pluginListPath"])
	assert.Equal(t, "mod files are missing", failed["mods/Ghost"])
	assert.Equal(t, "plugin file not found", failed["plugins/missing.esp"])
	assert.NotContains(t, failed, "mods/A")
	assert.NotContains(t, failed, "gameId")
	assert.NotContains(t, failed, "gameBaseDir")

	ghost, _ := p.Mods.Get("Ghost")
	assert.Equal(t, "mod files are missing", ghost.VerificationError)
	a, _ := p.Mods.Get("A")
	assert.Empty(t, a.VerificationError)
}

func TestProfileManager_VerifyProfile_UnknownGame(t *testing.T) {
	f := newFixture(t)
	pm, _ := newProfileManager(f)
	p := domain.NewProfile("orphan", "morrowind")

	v := pm.VerifyProfile(p)
	failed := make(map[string]string)
	for _, c := range v.Failures() {
		failed[c.Field] = c.Error
	}
	assert.Contains(t, failed["gameId"], "game not found")
	assert.Equal(t, "not set", failed["gameBaseDir"])
	assert.Equal(t, "not set", failed["gameModDir"])
}

func pluginNames(p *domain.Profile) []string {
	names := make([]string, len(p.Plugins))
	for i, ref := range p.Plugins {
		names[i] = ref.Plugin
	}
	return names
}
