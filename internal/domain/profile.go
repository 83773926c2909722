package domain

import "github.com/DonovanMods/stellar-mod-loader/internal/orderedmap"

// ModEntry is the per-mod state stored in a profile's mod list
type ModEntry struct {
	Enabled           bool   `json:"enabled"`
	VerificationError string `json:"-"` // Set by profile verification, never persisted
}

// ModList is an ordered list of mods keyed by mod name. Earlier entries win file conflicts.
type ModList = orderedmap.Map[string, ModEntry]

// PluginRef is an entry of a profile's plugin load order
type PluginRef struct {
	Plugin  string `json:"plugin"`
	Enabled bool   `json:"enabled"`
	ModID   string `json:"modId,omitempty"` // Name of the mod that provides the plugin
}

// Profile represents a named set of mods and plugins for a game
type Profile struct {
	Name              string      `json:"-"` // Derived from the profile directory name
	GameID            string      `json:"gameId"`
	RootMods          *ModList    `json:"rootMods"`
	Mods              *ModList    `json:"mods"`
	Plugins           []PluginRef `json:"plugins"`
	BaseDir           string      `json:"gameBaseDir,omitempty"`    // Overrides Game.InstallPath
	ModDir            string      `json:"gameModDir,omitempty"`     // Overrides Game.ModPath
	PluginListPath    string      `json:"pluginListPath,omitempty"` // Overrides Game.PluginListPath
	ConfigDir         string      `json:"configFilePath,omitempty"` // Overrides Game.ConfigPath
	LinkMode          *LinkMethod `json:"linkMode,omitempty"`       // Overrides Game.LinkMethod
	ManageConfigFiles bool        `json:"manageConfigFiles"`
	Deployed          bool        `json:"-"` // Derived at load time from the deployment marker
}

// NewProfile creates an empty profile for a game
func NewProfile(name, gameID string) *Profile {
	return &Profile{
		Name:     name,
		GameID:   gameID,
		RootMods: &ModList{},
		Mods:     &ModList{},
		Plugins:  []PluginRef{},
	}
}

// ModList returns the root or regular mod list, creating it when missing
func (p *Profile) ModList(root bool) *ModList {
	if root {
		if p.RootMods == nil {
			p.RootMods = &ModList{}
		}
		return p.RootMods
	}
	if p.Mods == nil {
		p.Mods = &ModList{}
	}
	return p.Mods
}

// PluginIndex returns the position of a plugin (case-insensitive) or -1
func (p *Profile) PluginIndex(plugin string) int {
	for i, ref := range p.Plugins {
		if equalFold(ref.Plugin, plugin) {
			return i
		}
	}
	return -1
}

// Installation resolves the effective game directories for this profile
func (p *Profile) Installation(game *Game) Installation {
	inst := Installation{}
	if game != nil {
		inst = Installation{
			BaseDir:        game.InstallPath,
			ModDir:         game.ModPath,
			PluginListPath: game.PluginListPath,
			ConfigDir:      game.ConfigPath,
			LinkMethod:     game.LinkMethod,
		}
	}
	if p.BaseDir != "" {
		inst.BaseDir = p.BaseDir
	}
	if p.ModDir != "" {
		inst.ModDir = p.ModDir
	}
	if p.PluginListPath != "" {
		inst.PluginListPath = p.PluginListPath
	}
	if p.ConfigDir != "" {
		inst.ConfigDir = p.ConfigDir
	}
	if p.LinkMode != nil {
		inst.LinkMethod = *p.LinkMode
	}
	return inst
}

// Installation is the set of resolved target directories a profile deploys into
type Installation struct {
	BaseDir        string
	ModDir         string
	PluginListPath string
	ConfigDir      string
	LinkMethod     LinkMethod
}
