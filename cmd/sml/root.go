package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"
	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/logging"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ErrCancelled is returned when the user cancels an operation (e.g. prompt declined).
// When returned from a command, Execute exits with code 2.
var ErrCancelled = errors.New("cancelled")

var (
	version = "0.4.0"

	// Global flags
	configDir   string
	dataDir     string
	gameID      string
	profileName string
	verbosity   int
	logFile     string
	noHooks     bool
	jsonOutput  bool
	noColor     bool

	logger    = zerolog.Nop()
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sml",
	Short: "Stellar Mod Loader - profile based mod manager for Bethesda games",
	Long: `sml manages mod profiles for Starfield and other Bethesda games on Linux.

Mods are imported into a profile from archives or folders (FOMOD installers
included), then deployed into the game's data directory by copying or linking.
Undeploying removes exactly what a deploy wrote.

Use subcommands for operations. Run 'sml --help' for available commands.`,
	Version:           version,
	SilenceUsage:      true, // Runtime errors should not print usage
	SilenceErrors:     true, // We handle error output in Execute()
	PersistentPreRun:  setupLogger,
	PersistentPostRun: closeLogger,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default: $XDG_CONFIG_HOME/sml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default: $XDG_DATA_HOME/sml)")
	rootCmd.PersistentFlags().StringVarP(&gameID, "game", "g", "", "game ID to operate on")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile to operate on (default: default)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log more (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noHooks, "no-hooks", false, "disable all hooks")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format (list, show, status, conflicts, verify)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command. Exit codes: 0 = success, 1 = error, 2 = user cancelled.
// When --json is set and an error occurs, prints {"error":"..."} to stdout before exiting.
func Execute() {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			os.Exit(2)
		}
		if jsonOutput {
			fmt.Printf(`{"error":%q}`+"\n", err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "%s %v\n", colorRed("Error:"), err)
		}
		os.Exit(1)
	}
}

func setupLogger(cmd *cobra.Command, args []string) {
	logger, logCloser = logging.Setup(logging.Options{
		Verbosity: verbosity,
		LogFile:   logFile,
		NoColor:   !colorEnabled(),
		Console:   cmd.ErrOrStderr(),
	})
}

func closeLogger(cmd *cobra.Command, args []string) {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// getServiceConfig returns the service configuration with XDG defaults
func getServiceConfig() core.ServiceConfig {
	cfg := core.ServiceConfig{
		ConfigDir: configDir,
		DataDir:   dataDir,
		Logger:    logger,
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = config.DefaultConfigDir()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = config.DefaultDataDir()
	}
	return cfg
}

// initService creates and initializes the core service
func initService() (*core.Service, error) {
	return initServiceWithEvents(nil)
}

// initServiceWithEvents creates the core service with a sink for deploy progress
func initServiceWithEvents(sink core.EventSink) (*core.Service, error) {
	cfg := getServiceConfig()
	cfg.Sink = sink
	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	return core.NewService(cfg)
}

// requireGame ensures a game is specified, checking config for default if not provided
func requireGame(cmd *cobra.Command) error {
	if gameID != "" {
		return nil
	}

	svcCfg := getServiceConfig()
	cfg, err := config.Load(svcCfg.ConfigDir, svcCfg.DataDir)
	if err == nil && cfg.DefaultGame != "" {
		gameID = cfg.DefaultGame
		logger.Info().Str("game", gameID).Msg("Using default game")
		return nil
	}

	return fmt.Errorf("no game specified; use --game or -g flag, or set default_game in config.yaml")
}

// profileOrDefault returns the given profile name, or "default" if empty
func profileOrDefault(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// loadProfile loads the profile selected with --profile and its game
func loadProfile(svc *core.Service) (*domain.Profile, *domain.Game, error) {
	profile, game, err := svc.LoadProfile(profileOrDefault(profileName))
	if err != nil {
		return nil, nil, err
	}
	if gameID != "" && profile.GameID != gameID {
		return nil, nil, fmt.Errorf("profile %q belongs to game %s, not %s", profile.Name, profile.GameID, gameID)
	}
	return profile, game, nil
}

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}
