package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"gopkg.in/yaml.v3"
)

const gamesFileName = "games.yaml"

// GameConfig is the YAML representation of a configured game
type GameConfig struct {
	Name           string           `yaml:"name,omitempty"`
	InstallPath    string           `yaml:"install_path"`
	ModPath        string           `yaml:"mod_path,omitempty"`
	PluginListPath string           `yaml:"plugin_list_path,omitempty"`
	ConfigPath     string           `yaml:"config_path,omitempty"`
	Version        string           `yaml:"version,omitempty"`
	LinkMethod     string           `yaml:"link_method,omitempty"`
	Hooks          domain.GameHooks `yaml:"hooks,omitempty"`
}

// GamesFile is the top-level games.yaml structure
type GamesFile struct {
	Games map[string]GameConfig `yaml:"games"`
}

// LoadGames reads all game configurations from the config directory
func LoadGames(configDir string) (map[string]*domain.Game, error) {
	gamesPath := filepath.Join(configDir, gamesFileName)
	data, err := os.ReadFile(gamesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*domain.Game), nil
		}
		return nil, fmt.Errorf("reading games.yaml: %w", err)
	}

	var gamesFile GamesFile
	if err := yaml.Unmarshal(data, &gamesFile); err != nil {
		return nil, fmt.Errorf("parsing games.yaml: %w", err)
	}

	games := make(map[string]*domain.Game, len(gamesFile.Games))
	for id, cfg := range gamesFile.Games {
		games[id] = &domain.Game{
			ID:             id,
			Name:           cfg.Name,
			InstallPath:    ExpandHome(cfg.InstallPath),
			ModPath:        ExpandHome(cfg.ModPath),
			PluginListPath: ExpandHome(cfg.PluginListPath),
			ConfigPath:     ExpandHome(cfg.ConfigPath),
			Version:        cfg.Version,
			LinkMethod:     domain.ParseLinkMethod(cfg.LinkMethod),
			LinkMethodSet:  cfg.LinkMethod != "",
			Hooks: domain.GameHooks{
				Deploy:   expandHooks(cfg.Hooks.Deploy),
				Undeploy: expandHooks(cfg.Hooks.Undeploy),
			},
		}
	}

	return games, nil
}

func expandHooks(h domain.HookConfig) domain.HookConfig {
	return domain.HookConfig{BeforeAll: ExpandHome(h.BeforeAll), AfterAll: ExpandHome(h.AfterAll)}
}

// SortedGameIDs returns the IDs of games in sorted order
func SortedGameIDs(games map[string]*domain.Game) []string {
	ids := make([]string, 0, len(games))
	for id := range games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SaveGame adds or updates a game in games.yaml
func SaveGame(configDir string, game *domain.Game) error {
	games, err := LoadGames(configDir)
	if err != nil {
		return err
	}

	games[game.ID] = game

	return saveGames(configDir, games)
}

func saveGames(configDir string, games map[string]*domain.Game) error {
	gamesFile := GamesFile{Games: make(map[string]GameConfig, len(games))}

	for id, game := range games {
		linkMethod := ""
		if game.LinkMethodSet {
			linkMethod = game.LinkMethod.String()
		}
		gamesFile.Games[id] = GameConfig{
			Name:           game.Name,
			InstallPath:    game.InstallPath,
			ModPath:        game.ModPath,
			PluginListPath: game.PluginListPath,
			ConfigPath:     game.ConfigPath,
			Version:        game.Version,
			LinkMethod:     linkMethod,
			Hooks:          game.Hooks,
		}
	}

	data, err := yaml.Marshal(&gamesFile)
	if err != nil {
		return fmt.Errorf("marshaling games: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, gamesFileName), data, 0644); err != nil {
		return fmt.Errorf("writing games.yaml: %w", err)
	}

	return nil
}

// DeleteGame removes a game from games.yaml
func DeleteGame(configDir string, gameID string) error {
	games, err := LoadGames(configDir)
	if err != nil {
		return err
	}

	if _, exists := games[gameID]; !exists {
		return domain.ErrGameNotFound
	}

	delete(games, gameID)
	return saveGames(configDir, games)
}
