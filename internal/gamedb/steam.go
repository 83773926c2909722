package gamedb

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
)

// protonUserDir is the Windows user profile inside a Proton prefix
const protonUserDir = "pfx/drive_c/users/steamuser"

// SteamRoots returns the Steam installations found on this machine, STEAM_ROOT first
func SteamRoots() []string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		os.Getenv("STEAM_ROOT"),
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
	}

	var roots []string
	seen := map[string]bool{}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil || seen[resolved] {
			continue
		}
		if info, err := os.Stat(resolved); err != nil || !info.IsDir() {
			continue
		}
		seen[resolved] = true
		roots = append(roots, resolved)
	}
	return roots
}

// libraryPaths lists the Steam libraries of a root from libraryfolders.vdf.
// A root without the file is its own single library.
func libraryPaths(steamRoot string) []string {
	data, err := os.ReadFile(filepath.Join(steamRoot, "steamapps", "libraryfolders.vdf"))
	if err != nil {
		return []string{steamRoot}
	}
	root, err := parseVDF(string(data))
	if err != nil {
		return []string{steamRoot}
	}

	folders := root.node("libraryfolders")
	var keys []int
	for k := range folders {
		if n, err := strconv.Atoi(k); err == nil {
			keys = append(keys, n)
		}
	}
	sort.Ints(keys)

	var paths []string
	for _, k := range keys {
		if p := folders.node(strconv.Itoa(k)).str("path"); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return []string{steamRoot}
	}
	return paths
}

// appManifest holds the fields of an appmanifest_<id>.acf file sml needs
type appManifest struct {
	AppID      string
	InstallDir string
}

func readAppManifest(path string) (appManifest, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return appManifest{}, false
	}
	root, err := parseVDF(string(data))
	if err != nil {
		return appManifest{}, false
	}
	state := root.node("AppState")
	m := appManifest{AppID: state.str("appid"), InstallDir: state.str("installdir")}
	return m, m.AppID != "" && m.InstallDir != ""
}

// Detect scans the given Steam roots for installed games of the database and
// returns them as ready-to-configure games. Plugin list and config paths
// point into the game's Proton prefix when one exists.
func (db DB) Detect(steamRoots []string) []domain.Game {
	byAppID := make(map[string]Entry, len(db))
	for _, e := range db {
		if e.SteamAppID != "" {
			byAppID[e.SteamAppID] = e
		}
	}

	var found []domain.Game
	seen := map[string]bool{}
	for _, root := range steamRoots {
		for _, lib := range libraryPaths(root) {
			steamapps := filepath.Join(lib, "steamapps")
			for _, e := range db.IDs() {
				entry := db[e]
				if entry.SteamAppID == "" || seen[entry.ID] {
					continue
				}
				m, ok := readAppManifest(filepath.Join(steamapps, "appmanifest_"+entry.SteamAppID+".acf"))
				if !ok || byAppID[m.AppID].ID != entry.ID {
					continue
				}
				installPath := filepath.Join(steamapps, "common", m.InstallDir)
				if info, err := os.Stat(installPath); err != nil || !info.IsDir() {
					continue
				}

				game := domain.Game{ID: entry.ID, InstallPath: installPath}
				userDir := filepath.Join(steamapps, "compatdata", entry.SteamAppID, protonUserDir)
				if info, err := os.Stat(userDir); err == nil && info.IsDir() {
					if entry.PluginListPath != "" {
						game.PluginListPath = filepath.Join(userDir, filepath.FromSlash(entry.PluginListPath))
					}
					if entry.ConfigPath != "" {
						game.ConfigPath = filepath.Join(userDir, filepath.FromSlash(entry.ConfigPath))
					}
				}
				entry.Apply(&game)
				seen[entry.ID] = true
				found = append(found, game)
			}
		}
	}
	return found
}
