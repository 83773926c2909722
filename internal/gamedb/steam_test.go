package gamedb

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libraryFolders = `"libraryfolders"
{
	"1"
	{
		"path"		"%s"
	}
	"0"
	{
		"path"		"%s"
		"apps"
		{
			"1716740"		"123"
		}
	}
}`

func TestParseVDF(t *testing.T) {
	root, err := parseVDF(`// comment
"AppState"
{
	"appid"		"1716740"
	"name"		"Starfield"
	"installdir"		"Starfield"
	"UserConfig" { "language" "english" }
	"escaped"	"a\"b\\c"
}`)
	require.NoError(t, err)

	state := root.node("appstate")
	require.NotNil(t, state)
	assert.Equal(t, "1716740", state.str("appid"))
	assert.Equal(t, "Starfield", state.str("installdir"))
	assert.Equal(t, "english", state.node("userconfig").str("language"))
	assert.Equal(t, `a"b\c`, state.str("escaped"))
	assert.Equal(t, "", state.str("missing"))
}

func TestParseVDF_Errors(t *testing.T) {
	for _, input := range []string{`"a" { "b" "c"`, `"a" "unterminated`, `}`, `"lonely"`} {
		_, err := parseVDF(input)
		assert.Error(t, err, input)
	}
}

func TestLibraryPaths(t *testing.T) {
	root := t.TempDir()
	lib0 := filepath.Join(root, "lib0")
	lib1 := filepath.Join(root, "lib1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "steamapps"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "steamapps", "libraryfolders.vdf"),
		[]byte(fmt.Sprintf(libraryFolders, lib1, lib0)), 0644))

	assert.Equal(t, []string{lib0, lib1}, libraryPaths(root))

	single := t.TempDir()
	assert.Equal(t, []string{single}, libraryPaths(single))
}

func TestDetect(t *testing.T) {
	root := t.TempDir()
	steamapps := filepath.Join(root, "steamapps")
	install := filepath.Join(steamapps, "common", "Starfield")
	prefix := filepath.Join(steamapps, "compatdata", "1716740", protonUserDir)
	require.NoError(t, os.MkdirAll(install, 0755))
	require.NoError(t, os.MkdirAll(prefix, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(steamapps, "appmanifest_1716740.acf"),
		[]byte(`"AppState" { "appid" "1716740" "installdir" "Starfield" }`), 0644))
	// Manifest for a game whose install dir is gone
	require.NoError(t, os.WriteFile(filepath.Join(steamapps, "appmanifest_489830.acf"),
		[]byte(`"AppState" { "appid" "489830" "installdir" "Skyrim Special Edition" }`), 0644))

	db, err := Load("")
	require.NoError(t, err)

	games := db.Detect([]string{root})
	require.Len(t, games, 1)
	g := games[0]
	assert.Equal(t, "starfield", g.ID)
	assert.Equal(t, install, g.InstallPath)
	assert.Equal(t, filepath.Join(install, "Data"), g.ModPath)
	assert.Equal(t, filepath.Join(prefix, "AppData", "Local", "Starfield", "plugins.txt"), g.PluginListPath)
	assert.Equal(t, filepath.Join(prefix, "Documents", "My Games", "Starfield"), g.ConfigPath)
}
