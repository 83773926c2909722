package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/config"

	"github.com/spf13/cobra"
)

var (
	gameAddPath       string
	gameAddModPath    string
	gameAddPluginList string
	gameAddConfigPath string
	gameAddLink       string
	gameAddName       string
	gameDetectYes     bool
)

type gameJSON struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	InstallPath    string   `json:"install_path"`
	ModPath        string   `json:"mod_path"`
	PluginListPath string   `json:"plugin_list_path,omitempty"`
	ConfigPath     string   `json:"config_path,omitempty"`
	LinkMethod     string   `json:"link_method"`
	Default        bool     `json:"default,omitempty"`
	PluginFormats  []string `json:"plugin_formats,omitempty"`
	PluginListType string   `json:"plugin_list_type,omitempty"`
}

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Game management commands",
	Long:  `Commands for managing game configurations in games.yaml.`,
}

var gameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured games",
	Args:  cobra.NoArgs,
	RunE:  runGameList,
}

var gameShowCmd = &cobra.Command{
	Use:   "show <game-id>",
	Short: "Show a game's effective configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runGameShow,
}

var gameAddCmd = &cobra.Command{
	Use:   "add <game-id>",
	Short: "Add or update a game",
	Long: `Add a game to games.yaml, or update an existing entry.

Settings left out are filled in from the built-in game database when the ID
is a known game (mod directory, plugin formats, plugin list type).

Examples:
  sml game add starfield --path ~/.steam/steam/steamapps/common/Starfield \
    --plugin-list ~/.steam/steam/steamapps/compatdata/1716740/pfx/drive_c/users/steamuser/AppData/Local/Starfield/plugins.txt
  sml game add fallout4 --path /games/Fallout4 --link hardlink`,
	Args: cobra.ExactArgs(1),
	RunE: runGameAdd,
}

var gameDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect Steam games and add them to config",
	Long: `Scan Steam libraries for known games and optionally add them to games.yaml.

Prompts for which games to add (e.g. 1,2 or all or none) unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: runGameDetect,
}

var gameRemoveCmd = &cobra.Command{
	Use:   "remove <game-id>",
	Short: "Remove a game from config",
	Long: `Remove a game from games.yaml. Its profiles and stored mods are kept.

A game whose profile is still deployed cannot be removed; undeploy it first.`,
	Args: cobra.ExactArgs(1),
	RunE: runGameRemove,
}

var gameClearDefaultCmd = &cobra.Command{
	Use:   "clear-default",
	Short: "Clear the default game setting",
	Long:  `Remove the default game setting, requiring --game for commands that need one.`,
	Args:  cobra.NoArgs,
	RunE:  runGameClearDefault,
}

var gameSetDefaultCmd = &cobra.Command{
	Use:   "set-default <game-id>",
	Short: "Set the default game",
	Long: `Set the default game so you don't have to specify --game for every command.

Example:
  sml game set-default starfield`,
	Args: cobra.ExactArgs(1),
	RunE: runGameSetDefault,
}

func init() {
	gameAddCmd.Flags().StringVar(&gameAddPath, "path", "", "game install directory (required)")
	gameAddCmd.Flags().StringVar(&gameAddModPath, "mod-path", "", "data directory (default: from the game database)")
	gameAddCmd.Flags().StringVar(&gameAddPluginList, "plugin-list", "", "plugins.txt location")
	gameAddCmd.Flags().StringVar(&gameAddConfigPath, "config-path", "", "directory of the game's ini files")
	gameAddCmd.Flags().StringVar(&gameAddLink, "link", "", "link method: symlink, hardlink, or copy (default: default_link_method)")
	gameAddCmd.Flags().StringVar(&gameAddName, "name", "", "display name")
	gameDetectCmd.Flags().BoolVarP(&gameDetectYes, "yes", "y", false, "add every detected game without prompting")

	gameCmd.AddCommand(gameListCmd)
	gameCmd.AddCommand(gameShowCmd)
	gameCmd.AddCommand(gameAddCmd)
	gameCmd.AddCommand(gameDetectCmd)
	gameCmd.AddCommand(gameRemoveCmd)
	gameCmd.AddCommand(gameSetDefaultCmd)
	gameCmd.AddCommand(gameClearDefaultCmd)
	rootCmd.AddCommand(gameCmd)
}

func toGameJSON(g *domain.Game) gameJSON {
	return gameJSON{
		ID:             g.ID,
		Name:           g.Name,
		InstallPath:    g.InstallPath,
		ModPath:        g.ModPath,
		PluginListPath: g.PluginListPath,
		ConfigPath:     g.ConfigPath,
		LinkMethod:     g.LinkMethod.String(),
		PluginFormats:  g.PluginFormats,
		PluginListType: string(g.PluginListType),
	}
}

func runGameList(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	games := service.ListGames()
	defaultGame := service.Config().DefaultGame
	out := cmd.OutOrStdout()
	if jsonOutput {
		list := make([]gameJSON, 0, len(games))
		for _, g := range games {
			gj := toGameJSON(g)
			gj.Default = g.ID == defaultGame
			list = append(list, gj)
		}
		return writeJSON(out, list)
	}

	if len(games) == 0 {
		fmt.Fprintln(out, "No games configured.")
		fmt.Fprintln(out, "\nUse 'sml game detect' or 'sml game add' to add a game.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLINK\tPATH\tDEFAULT")
	fmt.Fprintln(w, "--\t----\t----\t----\t-------")
	for _, g := range games {
		mark := ""
		if g.ID == defaultGame {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, g.LinkMethod, truncate(g.InstallPath, 60), mark)
	}
	return w.Flush()
}

func runGameShow(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	game, err := service.Game(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, toGameJSON(game))
	}

	fmt.Fprintf(out, "%s %s (%s)\n", heading("Game:"), game.Name, game.ID)
	fmt.Fprintf(out, "  Install Path:   %s\n", game.InstallPath)
	fmt.Fprintf(out, "  Mod Path:       %s\n", game.ModPath)
	fmt.Fprintf(out, "  Plugin List:    %s\n", game.PluginListPath)
	fmt.Fprintf(out, "  Config Path:    %s\n", game.ConfigPath)
	fmt.Fprintf(out, "  Link Method:    %s\n", game.LinkMethod)
	fmt.Fprintf(out, "  Plugin Formats: %s\n", strings.Join(game.PluginFormats, ", "))
	if !game.Hooks.IsEmpty() {
		fmt.Fprintln(out, "  Hooks:")
		for _, h := range []struct{ name, script string }{
			{"deploy.before_all", game.Hooks.Deploy.BeforeAll},
			{"deploy.after_all", game.Hooks.Deploy.AfterAll},
			{"undeploy.before_all", game.Hooks.Undeploy.BeforeAll},
			{"undeploy.after_all", game.Hooks.Undeploy.AfterAll},
		} {
			if h.script != "" {
				fmt.Fprintf(out, "    %s: %s\n", h.name, h.script)
			}
		}
	}
	return nil
}

func runGameAdd(cmd *cobra.Command, args []string) error {
	if gameAddPath == "" {
		return fmt.Errorf("--path is required")
	}

	game := &domain.Game{
		ID:             args[0],
		Name:           gameAddName,
		InstallPath:    config.ExpandHome(gameAddPath),
		ModPath:        config.ExpandHome(gameAddModPath),
		PluginListPath: config.ExpandHome(gameAddPluginList),
		ConfigPath:     config.ExpandHome(gameAddConfigPath),
	}
	if gameAddLink != "" {
		switch gameAddLink {
		case "symlink", "hardlink", "copy":
		default:
			return fmt.Errorf("invalid link method: %s (use: symlink, hardlink, or copy)", gameAddLink)
		}
		game.LinkMethod = domain.ParseLinkMethod(gameAddLink)
		game.LinkMethodSet = true
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	if _, err := service.GameDB().Lookup(game.ID); err != nil {
		logger.Warn().Str("game", game.ID).Msg("Unknown game; plugin formats and data directory must be configured by hand")
	}
	if err := service.AddGame(game); err != nil {
		return fmt.Errorf("saving game: %w", err)
	}

	effective, err := service.Game(game.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Saved game: %s (%s)\n", colorGreen("✓"), effective.Name, effective.ID)
	return nil
}

func runGameDetect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	fmt.Fprintln(out, "Scanning Steam libraries...")
	games := service.DetectGames()
	if len(games) == 0 {
		fmt.Fprintln(out, "No new games found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d game(s):\n", len(games))
	for i, g := range games {
		name := g.ID
		if entry, err := service.GameDB().Lookup(g.ID); err == nil {
			name = entry.Name
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, name, g.ID)
		fmt.Fprintf(out, "      Path: %s\n", g.InstallPath)
	}

	indices := make([]int, 0, len(games))
	if gameDetectYes {
		for i := range games {
			indices = append(indices, i+1)
		}
	} else {
		fmt.Fprint(out, "Add games to config? [1,2/all/none]: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading input: %w", err)
		}
		indices, err = parseSelection(line, len(games))
		if err != nil {
			return err
		}
		if len(indices) == 0 {
			fmt.Fprintln(out, "No games added.")
			return ErrCancelled
		}
	}

	for _, n := range indices {
		g := games[n-1]
		if err := service.AddGame(&g); err != nil {
			return fmt.Errorf("saving game %s: %w", g.ID, err)
		}
		fmt.Fprintf(out, "%s Added: %s\n", colorGreen("✓"), g.ID)
	}
	return nil
}

// parseSelection reads "1,3", "all" or "none" for a list of n items
func parseSelection(line string, n int) ([]int, error) {
	line = strings.TrimSpace(strings.ToLower(line))
	if line == "" || line == "n" || line == "none" {
		return nil, nil
	}
	var indices []int
	if line == "all" || line == "a" {
		for i := 1; i <= n; i++ {
			indices = append(indices, i)
		}
		return indices, nil
	}
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		i, err := strconv.Atoi(part)
		if err != nil || i < 1 || i > n {
			return nil, fmt.Errorf("invalid selection: %q (use numbers 1-%d, all, or none)", part, n)
		}
		indices = append(indices, i)
	}
	return indices, nil
}

func runGameSetDefault(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	game, err := service.Game(args[0])
	if err != nil {
		return err
	}

	if err := config.SetDefaultGame(getServiceConfig().ConfigDir, game.ID); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Default game set to: %s (%s)\n", game.Name, game.ID)
	return nil
}

func runGameRemove(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	if err := service.RemoveGame(args[0]); err != nil {
		return fmt.Errorf("removing game: %w", err)
	}
	if service.Config().DefaultGame == args[0] {
		if err := config.SetDefaultGame(getServiceConfig().ConfigDir, ""); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed game: %s\n", colorGreen("✓"), args[0])
	return nil
}

func runGameClearDefault(cmd *cobra.Command, args []string) error {
	if err := config.SetDefaultGame(getServiceConfig().ConfigDir, ""); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Default game cleared.")
	return nil
}
