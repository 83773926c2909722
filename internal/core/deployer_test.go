package core_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"
	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/pathutil"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/db"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeployer(f *fixture, opts ...core.DeployerOption) *core.Deployer {
	return core.NewDeployer(f.store, zerolog.Nop(), opts...)
}

func TestDeployer_Deploy_ModWithPlugin(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "ModA", true, map[string]string{"x.esp": "plugin"})
	p.Plugins = []domain.PluginRef{{Plugin: "x.esp", Enabled: true, ModID: "ModA"}}

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{DeployPlugins: true}))

	manifest, err := core.ManifestFiles(f.game.ModPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.esp"}, manifest)

	lines := strings.Split(strings.TrimSpace(readFile(t, f.game.PluginListPath)), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[0], `"default"`)
	assert.Contains(t, lines, "*x.esp")
	assert.True(t, p.Deployed)
	assert.True(t, d.IsDeployed(p, f.game))
}

func TestDeployer_Deploy_EarlierModWins(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"readme.txt": "from A", "a.txt": "a"})
	f.addMod(t, p, false, "B", true, map[string]string{"readme.txt": "from B", "b.txt": "b"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	assert.Equal(t, "from A", readFile(t, filepath.Join(f.game.ModPath, "readme.txt")))
	manifest, err := core.ManifestFiles(f.game.ModPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "readme.txt"}, manifest)

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	assert.NoFileExists(t, filepath.Join(f.game.ModPath, "readme.txt"))
	assert.False(t, p.Deployed)
}

func TestDeployer_Deploy_SkipsDisabledMods(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "On", true, map[string]string{"on.esp": "1"})
	f.addMod(t, p, false, "Off", false, map[string]string{"off.esp": "2"})

	require.NoError(t, newDeployer(f).Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	assert.FileExists(t, filepath.Join(f.game.ModPath, "on.esp"))
	assert.NoFileExists(t, filepath.Join(f.game.ModPath, "off.esp"))
}

func TestDeployer_RoundTripKeepsUntrackedFiles(t *testing.T) {
	f := newFixture(t)
	writeFiles(t, f.game.ModPath, map[string]string{
		"keep.txt":          "user file",
		"Starfield.esm":     "base game",
		"textures/base.dds": "base texture",
	})
	before := listFiles(t, f.game.ModPath)

	p := f.profile(t, "default")
	f.addMod(t, p, false, "Pack", true, map[string]string{
		"keep.txt":             "mod version",
		"meshes/armor/a.nif":   "mesh",
		"textures/armor/a.dds": "texture",
		"interface/menu.swf":   "ui",
	})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	assert.Equal(t, "user file", readFile(t, filepath.Join(f.game.ModPath, "keep.txt")))
	manifest, err := core.ManifestFiles(f.game.ModPath)
	require.NoError(t, err)
	assert.NotContains(t, manifest, "keep.txt")

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	assert.Equal(t, before, listFiles(t, f.game.ModPath))
	assert.Equal(t, "user file", readFile(t, filepath.Join(f.game.ModPath, "keep.txt")))
	assert.NoDirExists(t, filepath.Join(f.game.ModPath, "meshes"))
	assert.NoDirExists(t, filepath.Join(f.game.ModPath, "textures", "armor"))
	assert.DirExists(t, filepath.Join(f.game.ModPath, "textures"))
}

func TestDeployer_Deploy_MergesIntoExistingDirectoryCase(t *testing.T) {
	f := newFixture(t)
	writeFiles(t, f.game.ModPath, map[string]string{"textures/base.dds": "base"})

	p := f.profile(t, "default")
	f.addMod(t, p, false, "Tex", true, map[string]string{"Textures/new.dds": "new"})

	require.NoError(t, newDeployer(f).Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	assert.FileExists(t, filepath.Join(f.game.ModPath, "textures", "new.dds"))
	assert.NoDirExists(t, filepath.Join(f.game.ModPath, "Textures"))
}

func TestDeployer_Deploy_NormalizePathCasing(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "Tex", true, map[string]string{"Textures/Armor/Foo.DDS": "tex"})

	d := newDeployer(f, core.WithCasePolicy(pathutil.Policy{}))
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{NormalizePathCasing: true}))

	manifest, err := core.ManifestFiles(f.game.ModPath)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("textures", "armor", "Foo.DDS")}, manifest)
}

func TestDeployer_Deploy_RootModsUseAbsolutePaths(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, true, "Loader", true, map[string]string{"sfse_loader.exe": "exe"})
	f.addMod(t, p, false, "Plugin", true, map[string]string{"p.esp": "esp"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	loader := filepath.Join(f.game.InstallPath, "sfse_loader.exe")
	assert.FileExists(t, loader)
	manifest, err := core.ManifestFiles(f.game.ModPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{loader, "p.esp"}, manifest)

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	assert.NoFileExists(t, loader)
	assert.DirExists(t, f.game.InstallPath)
	assert.DirExists(t, f.game.ModPath)
}

func TestDeployer_Deploy_ReplacesOtherProfile(t *testing.T) {
	f := newFixture(t)
	first := f.profile(t, "first")
	f.addMod(t, first, false, "X", true, map[string]string{"x.esp": "x"})
	second := f.profile(t, "second")
	f.addMod(t, second, false, "Y", true, map[string]string{"y.esp": "y"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), first, f.game, core.DeployOptions{}))
	require.NoError(t, d.Deploy(context.Background(), second, f.game, core.DeployOptions{}))

	assert.NoFileExists(t, filepath.Join(f.game.ModPath, "x.esp"))
	assert.FileExists(t, filepath.Join(f.game.ModPath, "y.esp"))

	meta, err := core.ReadMarker(f.game.ModPath)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "second", meta.Profile)
	assert.False(t, d.IsDeployed(first, f.game))
	assert.True(t, d.IsDeployed(second, f.game))
}

func TestDeployer_Deploy_Redeploy(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	manifest, err := core.ManifestFiles(f.game.ModPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.esp"}, manifest)
}

func TestDeployer_Deploy_NothingToDeployWritesNoMarker(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	assert.NoFileExists(t, core.MarkerPath(f.game.ModPath))
	assert.False(t, p.Deployed)
}

func TestDeployer_Deploy_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	// A plain file where the failing mod needs a directory
	writeFiles(t, f.game.ModPath, map[string]string{"meshes": "not a dir"})

	p := f.profile(t, "default")
	f.addMod(t, p, false, "Good", true, map[string]string{"good.esp": "ok", "textures/good.dds": "ok"})
	f.addMod(t, p, false, "Bad", true, map[string]string{"meshes/bad.nif": "x"})

	var events []core.DeployEventKind
	sink := core.EventSinkFunc(func(e core.DeployEvent) { events = append(events, e.Kind) })

	d := newDeployer(f, core.WithEventSink(sink))
	err := d.Deploy(context.Background(), p, f.game, core.DeployOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad")

	assert.Equal(t, []string{"meshes"}, listFiles(t, f.game.ModPath))
	assert.NoFileExists(t, core.MarkerPath(f.game.ModPath))
	assert.False(t, p.Deployed)
	assert.Contains(t, events, core.EventDeployFailed)
	assert.NotContains(t, events, core.EventDeployFinished)
}

func TestDeployer_Deploy_RollsBackWhenCanceled(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a", "textures/a.dds": "a"})
	f.addMod(t, p, false, "B", true, map[string]string{"b.esp": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := core.EventSinkFunc(func(e core.DeployEvent) {
		if e.Kind == core.EventModDeployed && e.Mod == "A" {
			cancel()
		}
	})

	err := newDeployer(f, core.WithEventSink(sink)).Deploy(ctx, p, f.game, core.DeployOptions{})
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, listFiles(t, f.game.ModPath))
	assert.NoFileExists(t, core.MarkerPath(f.game.ModPath))
	assert.NoDirExists(t, filepath.Join(f.game.ModPath, "textures"))
	assert.False(t, p.Deployed)
}

func TestDeployer_Deploy_Events(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})
	f.addMod(t, p, false, "B", true, map[string]string{"b.esp": "b"})
	p.Plugins = []domain.PluginRef{{Plugin: "a.esp", Enabled: true}}

	var events []core.DeployEvent
	d := newDeployer(f, core.WithEventSink(core.EventSinkFunc(func(e core.DeployEvent) { events = append(events, e) })))
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{DeployPlugins: true}))

	kinds := make([]core.DeployEventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []core.DeployEventKind{
		core.EventDeployStarted,
		core.EventPluginListWritten,
		core.EventModDeployed,
		core.EventModDeployed,
		core.EventDeployFinished,
	}, kinds)
	assert.Equal(t, "A", events[2].Mod)
	assert.Equal(t, "B", events[3].Mod)
	assert.Equal(t, 2, events[4].Files)
}

func TestDeployer_Deploy_LegacyPluginList(t *testing.T) {
	f := newFixture(t)
	f.game.PluginListType = domain.PluginListLegacy
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a", "b.esp": "b"})
	p.Plugins = []domain.PluginRef{{Plugin: "a.esp", Enabled: true}, {Plugin: "b.esp", Enabled: false}}

	require.NoError(t, newDeployer(f).Deploy(context.Background(), p, f.game, core.DeployOptions{DeployPlugins: true}))

	content := readFile(t, f.game.PluginListPath)
	assert.Contains(t, content, "\na.esp\n")
	assert.NotContains(t, content, "b.esp")
	assert.NotContains(t, content, "*")
}

func TestDeployer_Deploy_PluginListPathMissing(t *testing.T) {
	f := newFixture(t)
	f.game.PluginListPath = ""
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})
	p.Plugins = []domain.PluginRef{{Plugin: "a.esp", Enabled: true}}

	err := newDeployer(f).Deploy(context.Background(), p, f.game, core.DeployOptions{DeployPlugins: true})
	require.ErrorIs(t, err, domain.ErrPluginListPath)
	assert.Contains(t, err.Error(), `"default"`)
	assert.NoFileExists(t, filepath.Join(f.game.ModPath, "a.esp"))
	assert.NoFileExists(t, core.MarkerPath(f.game.ModPath))
}

func TestDeployer_Deploy_BacksUpPluginList(t *testing.T) {
	f := newFixture(t)
	writeFiles(t, filepath.Dir(f.game.PluginListPath), map[string]string{"plugins.txt": "*old.esp\n"})
	p := f.profile(t, "default")
	p.Plugins = []domain.PluginRef{{Plugin: "new.esp", Enabled: true}}

	require.NoError(t, newDeployer(f).Deploy(context.Background(), p, f.game, core.DeployOptions{DeployPlugins: true}))

	backups, err := core.PluginListBackups(f.game.PluginListPath)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "*old.esp\n", readFile(t, backups[0]))
	assert.Contains(t, readFile(t, f.game.PluginListPath), "*new.esp")
}

func TestDeployer_Deploy_ManagedConfigFiles(t *testing.T) {
	f := newFixture(t)
	original := filepath.Join(f.game.ConfigPath, "StarfieldCustom.ini")
	require.NoError(t, os.WriteFile(original, []byte("user settings"), 0644))

	p := f.profile(t, "default")
	p.ManageConfigFiles = true
	writeFiles(t, f.store.ConfigDir(p.Name), map[string]string{"StarfieldCustom.ini": "profile settings"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	assert.Equal(t, "profile settings", readFile(t, original))
	manifest, err := core.ManifestFiles(f.game.ModPath)
	require.NoError(t, err)
	assert.Equal(t, []string{original}, manifest)

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	assert.Equal(t, "user settings", readFile(t, original))
	assert.Equal(t, []string{"StarfieldCustom.ini"}, listFiles(t, f.game.ConfigPath))
}

func TestDeployer_Deploy_Symlinks(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	method := domain.LinkSymlink
	p.LinkMode = &method
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	info, err := os.Lstat(filepath.Join(f.game.ModPath, "a.esp"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	assert.NoFileExists(t, filepath.Join(f.game.ModPath, "a.esp"))
	assert.FileExists(t, filepath.Join(f.store.ModPath(p.Name, false, "A"), "a.esp"))
}

func TestDeployer_Undeploy_UsesRecordedLinkMethod(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	method := domain.LinkSymlink
	p.LinkMode = &method
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a", "b.esp": "b"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	meta, err := core.ReadMarker(f.game.ModPath)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "symlink", meta.LinkMethod)

	// The user replaced one link with their own file, then switched the profile to copies
	replaced := filepath.Join(f.game.ModPath, "a.esp")
	require.NoError(t, os.Remove(replaced))
	require.NoError(t, os.WriteFile(replaced, []byte("user edit"), 0644))
	p.LinkMode = nil

	err = d.Undeploy(context.Background(), p, f.game)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a symlink")

	assert.Equal(t, "user edit", readFile(t, replaced))
	assert.NoFileExists(t, filepath.Join(f.game.ModPath, "b.esp"))
	assert.FileExists(t, core.MarkerPath(f.game.ModPath))
	assert.FileExists(t, filepath.Join(f.store.ModPath(p.Name, false, "A"), "a.esp"))
}

func TestDeployer_Ledger(t *testing.T) {
	f := newFixture(t)
	database, err := db.New(":memory:")
	require.NoError(t, err)
	defer database.Close()

	writeFiles(t, f.game.ModPath, map[string]string{"Starfield.esm": "base"})
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"readme.txt": "a"})
	f.addMod(t, p, false, "B", true, map[string]string{"readme.txt": "b", "Starfield.esm": "patched"})

	d := newDeployer(f, core.WithLedger(database))
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))

	owner, err := database.GetFileOwner(f.game.ID, p.Name, "readme.txt")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "A", owner.ModName)

	latest, err := database.LatestDeployment(f.game.ID, p.Name)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, db.StatusDeployed, latest.Status)
	assert.Equal(t, 1, latest.FileCount)

	conflicts, err := database.ListConflicts(latest.ID)
	require.NoError(t, err)
	assert.Equal(t, []db.Conflict{
		{Path: "Starfield.esm", Winner: "", Loser: "B"},
		{Path: "readme.txt", Winner: "A", Loser: "B"},
	}, conflicts)

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	files, err := database.ListDeployedFiles(f.game.ID, p.Name)
	require.NoError(t, err)
	assert.Empty(t, files)

	latest, err = database.LatestDeployment(f.game.ID, p.Name)
	require.NoError(t, err)
	assert.Equal(t, db.StatusUndeployed, latest.Status)
}

func TestDeployer_Undeploy_NothingDeployed(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	assert.NoError(t, newDeployer(f).Undeploy(context.Background(), p, f.game))
}

func TestDeployer_Undeploy_ToleratesMissingFiles(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "default")
	f.addMod(t, p, false, "A", true, map[string]string{"a.esp": "a", "sub/b.txt": "b"})

	d := newDeployer(f)
	require.NoError(t, d.Deploy(context.Background(), p, f.game, core.DeployOptions{}))
	require.NoError(t, os.Remove(filepath.Join(f.game.ModPath, "a.esp")))

	require.NoError(t, d.Undeploy(context.Background(), p, f.game))
	assert.Empty(t, listFiles(t, f.game.ModPath))
}
