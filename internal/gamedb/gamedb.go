// Package gamedb knows the static facts about supported games: plugin
// formats, plugin list layout and where Steam installs them.
package gamedb

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed data/games.yaml
var defaultGamesFS embed.FS

const (
	defaultGamesPath = "data/games.yaml"
	overrideFileName = "gamedb.yaml"
)

// Entry describes a supported game
type Entry struct {
	ID              string                `yaml:"-"`
	Name            string                `yaml:"name"`
	SteamAppID      string                `yaml:"steam_app_id"`
	ModPath         string                `yaml:"mod_path"` // Data dir relative to the install dir
	PluginFormats   []string              `yaml:"plugin_formats"`
	PluginListType  domain.PluginListType `yaml:"plugin_list_type"`
	PluginListPath  string                `yaml:"plugin_list_path"` // Relative to the Windows user profile
	ConfigPath      string                `yaml:"config_path"`      // Relative to the Windows user profile
	DataDirNames    []string              `yaml:"data_dir_names"`
	CaseInsensitive bool                  `yaml:"case_insensitive"`
}

// DB is the set of known games keyed by ID
type DB map[string]Entry

// Load returns the embedded game list merged with configDir/gamedb.yaml.
// Entries in the override file replace embedded entries with the same ID.
func Load(configDir string) (DB, error) {
	data, err := defaultGamesFS.ReadFile(defaultGamesPath)
	if err != nil {
		return nil, fmt.Errorf("reading embedded game database: %w", err)
	}
	db, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded game database: %w", err)
	}

	if configDir == "" {
		return db, nil
	}
	overridePath := filepath.Join(configDir, overrideFileName)
	overrideData, err := os.ReadFile(overridePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return db, nil
		}
		return nil, fmt.Errorf("reading %s: %w", overridePath, err)
	}
	override, err := parse(overrideData)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", overridePath, err)
	}
	for id, e := range override {
		db[id] = e
	}
	return db, nil
}

func parse(data []byte) (DB, error) {
	var raw map[string]Entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	db := make(DB, len(raw))
	for id, e := range raw {
		e.ID = id
		if e.PluginListType == "" {
			e.PluginListType = domain.PluginListAsterisk
		}
		db[id] = e
	}
	return db, nil
}

// Lookup returns the entry for a game ID
func (db DB) Lookup(id string) (Entry, error) {
	e, ok := db[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", domain.ErrGameNotFound, id)
	}
	return e, nil
}

// IDs returns every game ID in sorted order
func (db DB) IDs() []string {
	ids := make([]string, 0, len(db))
	for id := range db {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsPlugin reports whether file has one of the game's plugin extensions
func (e Entry) IsPlugin(file string) bool {
	ext := filepath.Ext(file)
	for _, f := range e.PluginFormats {
		if strings.EqualFold(ext, f) {
			return true
		}
	}
	return false
}

// Apply fills the fields of g that the user left empty from the entry
func (e Entry) Apply(g *domain.Game) {
	if g.Name == "" {
		g.Name = e.Name
	}
	if len(g.PluginFormats) == 0 {
		g.PluginFormats = append([]string(nil), e.PluginFormats...)
	}
	if g.PluginListType == "" {
		g.PluginListType = e.PluginListType
	}
	if len(g.DataDirNames) == 0 {
		g.DataDirNames = append([]string(nil), e.DataDirNames...)
	}
	if e.CaseInsensitive {
		g.CaseInsensitive = true
	}
	if g.ModPath == "" && g.InstallPath != "" && e.ModPath != "" {
		g.ModPath = filepath.Join(g.InstallPath, e.ModPath)
	}
}
