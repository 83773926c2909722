package domain

// LinkMethod determines how mod files are materialized in game directories
type LinkMethod int

const (
	LinkCopy     LinkMethod = iota // Default: copy (maximum compatibility)
	LinkHardlink                   // Hardlink (space efficient, transparent to games)
	LinkSymlink                    // Symlink (space efficient)
)

func (m LinkMethod) String() string {
	switch m {
	case LinkCopy:
		return "copy"
	case LinkHardlink:
		return "hardlink"
	case LinkSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// ParseLinkMethod converts a string to LinkMethod
func ParseLinkMethod(s string) LinkMethod {
	switch s {
	case "hardlink":
		return LinkHardlink
	case "symlink":
		return LinkSymlink
	default:
		return LinkCopy
	}
}

// PluginListType selects how the plugin load order file is serialized
type PluginListType string

const (
	// PluginListAsterisk lists every plugin, prefixing enabled ones with '*'
	PluginListAsterisk PluginListType = "asterisk"
	// PluginListLegacy lists only enabled plugins without a prefix
	PluginListLegacy PluginListType = "legacy"
)

// Game describes a game installation that profiles deploy into
type Game struct {
	ID              string         // Unique slug, e.g., "starfield"
	Name            string         // Display name
	InstallPath     string         // Game base directory (root mods deploy here)
	ModPath         string         // Data directory (regular mods deploy here)
	PluginListPath  string         // Load order file, e.g. .../Starfield/plugins.txt
	ConfigPath      string         // Directory holding the game's ini files
	Version         string         // Installed version, empty when unknown
	PluginFormats   []string       // Plugin file extensions, e.g. ".esp", ".esm"
	PluginListType  PluginListType // Plugin list serialization
	DataDirNames    []string       // Conventional data-folder names inside mod archives
	CaseInsensitive bool           // Compare paths case-insensitively
	LinkMethod      LinkMethod     // Default link method for this game
	LinkMethodSet   bool           // True if LinkMethod was set in games.yaml
	Hooks           GameHooks      // Optional: scripts run around deploy/undeploy
}

// MarshalText encodes the link method by name
func (m LinkMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a link method name; unknown names fall back to copy
func (m *LinkMethod) UnmarshalText(text []byte) error {
	*m = ParseLinkMethod(string(text))
	return nil
}
