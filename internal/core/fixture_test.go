package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/config"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/modstore"

	"github.com/stretchr/testify/require"
)

// fixture is a game install plus a profile store, all below one temp dir
type fixture struct {
	root     string
	store    *modstore.Store
	profiles *config.ProfileStore
	game     *domain.Game
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	game := &domain.Game{
		ID:             "starfield",
		Name:           "Starfield",
		InstallPath:    filepath.Join(root, "game"),
		ModPath:        filepath.Join(root, "game", "Data"),
		PluginListPath: filepath.Join(root, "appdata", "Starfield", "plugins.txt"),
		ConfigPath:     filepath.Join(root, "mygames", "Starfield"),
		PluginFormats:  []string{".esm", ".esp", ".esl"},
		PluginListType: domain.PluginListAsterisk,
		DataDirNames:   []string{"Data"},
	}
	require.NoError(t, os.MkdirAll(game.ModPath, 0755))
	require.NoError(t, os.MkdirAll(game.ConfigPath, 0755))

	profilesDir := filepath.Join(root, "profiles")
	return &fixture{
		root:     root,
		store:    modstore.New(profilesDir),
		profiles: config.NewProfileStore(profilesDir),
		game:     game,
	}
}

// profile creates and saves an empty profile
func (f *fixture) profile(t *testing.T, name string) *domain.Profile {
	t.Helper()
	p := domain.NewProfile(name, f.game.ID)
	require.NoError(t, f.profiles.Save(p))
	return p
}

// addMod stores files for a mod and appends it to the profile's list
func (f *fixture) addMod(t *testing.T, p *domain.Profile, root bool, mod string, enabled bool, files map[string]string) {
	t.Helper()
	writeFiles(t, f.store.ModPath(p.Name, root, mod), files)
	p.ModList(root).Set(mod, domain.ModEntry{Enabled: enabled})
	require.NoError(t, f.profiles.Save(p))
}

// writeFiles creates files (slash-separated relative paths) below dir
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// listFiles returns the slash-separated files below dir, sorted
func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := modstore.WalkFiles(dir)
	require.NoError(t, err)
	for i, f := range files {
		files[i] = filepath.ToSlash(f)
	}
	return files
}
