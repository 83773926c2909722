package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"
	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/spf13/cobra"
)

type profileJSON struct {
	Name              string          `json:"name"`
	GameID            string          `json:"game_id"`
	Deployed          bool            `json:"deployed"`
	BaseDir           string          `json:"game_base_dir,omitempty"`
	ModDir            string          `json:"game_mod_dir,omitempty"`
	PluginListPath    string          `json:"plugin_list_path,omitempty"`
	ConfigDir         string          `json:"config_dir,omitempty"`
	LinkMethod        string          `json:"link_method,omitempty"`
	ManageConfigFiles bool            `json:"manage_config_files"`
	RootMods          []modJSON       `json:"root_mods"`
	Mods              []modJSON       `json:"mods"`
	Plugins           []pluginRefJSON `json:"plugins"`
}

type modJSON struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

type pluginRefJSON struct {
	Plugin  string `json:"plugin"`
	Enabled bool   `json:"enabled"`
	Mod     string `json:"mod,omitempty"`
}

type verifyJSONOutput struct {
	Profile  string            `json:"profile"`
	OK       bool              `json:"ok"`
	Failures []verifyCheckJSON `json:"failures"`
}

type verifyCheckJSON struct {
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
	Error string `json:"error"`
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage mod profiles",
	Long: `Manage mod profiles for organizing different mod configurations.

A profile is an ordered list of mods and a plugin load order for one game.
Only one profile can be deployed into a game directory at a time.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Long: `List all profiles, or only those of the game given with --game.

Examples:
  sml profile list
  sml profile list --game starfield`,
	Args: cobra.NoArgs,
	RunE: runProfileList,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Long: `Create a new empty profile for the specified game.

Examples:
  sml profile create survival --game starfield`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileCreate,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Long: `Delete a profile together with the mod files stored in it.

A deployed profile must be undeployed first.

Examples:
  sml profile delete old-profile`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileDelete,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile",
	Long: `Show a profile's directories, mods and plugin load order.

Examples:
  sml profile show
  sml profile show survival --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfileShow,
}

var profileVerifyCmd = &cobra.Command{
	Use:   "verify [name]",
	Short: "Verify a profile",
	Long: `Check that a profile's game, directories, mods and plugins exist.

Exits with an error when any check fails.

Examples:
  sml profile verify
  sml profile verify survival --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfileVerify,
}

var profileRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a profile",
	Args:  cobra.ExactArgs(2),
	RunE:  runProfileRename,
}

var profileCopyCmd = &cobra.Command{
	Use:   "copy <source> <target>",
	Short: "Copy a profile and its mods",
	Args:  cobra.ExactArgs(2),
	RunE:  runProfileCopy,
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileVerifyCmd)
	profileCmd.AddCommand(profileRenameCmd)
	profileCmd.AddCommand(profileCopyCmd)

	rootCmd.AddCommand(profileCmd)
}

// nameArgOrFlag picks the profile from a positional argument, falling back to --profile
func nameArgOrFlag(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return profileOrDefault(profileName)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profiles, err := service.Profiles().List(gameID)
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		list := make([]profileJSON, 0, len(profiles))
		for _, p := range profiles {
			list = append(list, toProfileJSON(p, nil))
		}
		return writeJSON(out, list)
	}

	if len(profiles) == 0 {
		fmt.Fprintln(out, "No profiles found.")
		fmt.Fprintln(out, "\nUse 'sml profile create <name> --game <game>' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGAME\tMODS\tROOT MODS\tPLUGINS\tDEPLOYED")
	fmt.Fprintln(w, "----\t----\t----\t---------\t-------\t--------")
	for _, p := range profiles {
		deployed := ""
		if p.Deployed {
			deployed = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", p.Name, p.GameID, p.ModList(false).Len(), p.ModList(true).Len(), len(p.Plugins), deployed)
	}
	return w.Flush()
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	if err := requireGame(cmd); err != nil {
		return err
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, err := service.Profiles().Create(args[0], gameID)
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Created profile: %s (%s)\n", colorGreen("✓"), profile.Name, profile.GameID)
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	if err := service.Profiles().Delete(args[0]); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted profile: %s\n", colorGreen("✓"), args[0])
	return nil
}

func runProfileRename(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	if err := service.Profiles().Rename(args[0], args[1]); err != nil {
		return fmt.Errorf("renaming profile: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed profile %s to %s\n", colorGreen("✓"), args[0], args[1])
	return nil
}

func runProfileCopy(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, err := service.Profiles().Copy(args[0], args[1])
	if err != nil {
		return fmt.Errorf("copying profile: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Copied profile %s to %s (%d mods)\n", colorGreen("✓"), args[0], profile.Name, profile.ModList(false).Len()+profile.ModList(true).Len())
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, game, err := service.LoadProfile(nameArgOrFlag(args))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, toProfileJSON(profile, game))
	}

	inst := profile.Installation(game)
	fmt.Fprintf(out, "%s %s\n", heading("Profile:"), profile.Name)
	fmt.Fprintf(out, "  Game:        %s (%s)\n", game.Name, game.ID)
	fmt.Fprintf(out, "  Deployed:    %v\n", profile.Deployed)
	fmt.Fprintf(out, "  Base Dir:    %s\n", inst.BaseDir)
	fmt.Fprintf(out, "  Mod Dir:     %s\n", inst.ModDir)
	fmt.Fprintf(out, "  Plugin List: %s\n", inst.PluginListPath)
	fmt.Fprintf(out, "  Link Method: %s\n", inst.LinkMethod)
	if profile.ManageConfigFiles {
		fmt.Fprintf(out, "  Config Dir:  %s (managed)\n", inst.ConfigDir)
	}

	printModList(out, "Root Mods", profile.ModList(true))
	printModList(out, "Mods", profile.ModList(false))

	fmt.Fprintf(out, "\n%s\n", heading("Plugins:"))
	if len(profile.Plugins) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for i, ref := range profile.Plugins {
		fmt.Fprintf(out, "  %3d. %s %s\n", i, ref.Plugin, enabledMark(ref.Enabled))
	}
	return nil
}

func runProfileVerify(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, err := service.Profiles().Load(nameArgOrFlag(args))
	if err != nil {
		return err
	}
	result := service.VerifyProfile(profile)

	out := cmd.OutOrStdout()
	if jsonOutput {
		output := verifyJSONOutput{Profile: result.Profile, OK: result.OK(), Failures: []verifyCheckJSON{}}
		for _, c := range result.Failures() {
			output.Failures = append(output.Failures, verifyCheckJSON{Field: c.Field, Value: c.Value, Error: c.Error})
		}
		if err := writeJSON(out, output); err != nil {
			return err
		}
	} else {
		printVerification(cmd, result)
	}

	if !result.OK() {
		return fmt.Errorf("profile %s has %d problem(s)", result.Profile, len(result.Failures()))
	}
	return nil
}

func printVerification(cmd *cobra.Command, result *core.ProfileVerification) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verifying profile %s...\n\n", result.Profile)
	for _, c := range result.Checks {
		if c.Error == "" {
			fmt.Fprintf(out, "  %s %s\n", colorGreen("✓"), c.Field)
			continue
		}
		fmt.Fprintf(out, "  %s %s: %s", colorRed("✗"), c.Field, c.Error)
		if c.Value != "" {
			fmt.Fprintf(out, " %s", colorMuted("("+c.Value+")"))
		}
		fmt.Fprintln(out)
	}
	if result.OK() {
		fmt.Fprintf(out, "\n%s\n", colorGreen("All checks passed."))
	}
}

func printModList(out io.Writer, title string, list *domain.ModList) {
	fmt.Fprintf(out, "\n%s\n", heading(title+":"))
	if list.Len() == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	for i, e := range list.Entries() {
		fmt.Fprintf(out, "  %3d. %s %s\n", i, e.Key, enabledMark(e.Value.Enabled))
	}
}

func toProfileJSON(p *domain.Profile, game *domain.Game) profileJSON {
	out := profileJSON{
		Name:              p.Name,
		GameID:            p.GameID,
		Deployed:          p.Deployed,
		ManageConfigFiles: p.ManageConfigFiles,
		RootMods:          toModsJSON(p.ModList(true)),
		Mods:              toModsJSON(p.ModList(false)),
		Plugins:           make([]pluginRefJSON, 0, len(p.Plugins)),
	}
	if game != nil {
		inst := p.Installation(game)
		out.BaseDir = inst.BaseDir
		out.ModDir = inst.ModDir
		out.PluginListPath = inst.PluginListPath
		out.ConfigDir = inst.ConfigDir
		out.LinkMethod = inst.LinkMethod.String()
	}
	for _, ref := range p.Plugins {
		out.Plugins = append(out.Plugins, pluginRefJSON{Plugin: ref.Plugin, Enabled: ref.Enabled, Mod: ref.ModID})
	}
	return out
}

func toModsJSON(list *domain.ModList) []modJSON {
	out := make([]modJSON, 0, list.Len())
	for _, e := range list.Entries() {
		out = append(out, modJSON{Name: e.Key, Enabled: e.Value.Enabled, Error: e.Value.VerificationError})
	}
	return out
}
