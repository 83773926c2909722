package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type pluginListJSON struct {
	Profile string          `json:"profile"`
	Plugins []pluginRefJSON `json:"plugins"`
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage the plugin load order of a profile",
	Long: `List and arrange the plugins (.esm, .esp, .esl) of a profile.

The load order is written to the game's plugins.txt by 'sml deploy --plugins'.
Each write keeps a backup of the previous file.`,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the plugin load order",
	Args:  cobra.NoArgs,
	RunE:  runPluginList,
}

var pluginEnableCmd = &cobra.Command{
	Use:   "enable <plugin>",
	Short: "Enable a plugin",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runPluginSetEnabled(cmd, args[0], true) },
}

var pluginDisableCmd = &cobra.Command{
	Use:   "disable <plugin>",
	Short: "Disable a plugin",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runPluginSetEnabled(cmd, args[0], false) },
}

var pluginMoveCmd = &cobra.Command{
	Use:   "move <plugin> <index>",
	Short: "Move a plugin in the load order",
	Long: `Move a plugin to a new load order position. Out of range positions are clamped.

Examples:
  sml plugin move MyPatch.esp 0`,
	Args: cobra.ExactArgs(2),
	RunE: runPluginMove,
}

var pluginBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List plugins.txt backups, newest first",
	Args:  cobra.NoArgs,
	RunE:  runPluginBackups,
}

var pluginRestoreCmd = &cobra.Command{
	Use:   "restore-backup <number|path>",
	Short: "Restore the load order from a plugins.txt backup",
	Long: `Replace the profile's load order with the one saved in a plugins.txt backup.

Pass the number shown by 'sml plugin backups' (1 is the newest) or a path.

Examples:
  sml plugin restore-backup 1`,
	Args: cobra.ExactArgs(1),
	RunE: runPluginRestore,
}

func init() {
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginEnableCmd)
	pluginCmd.AddCommand(pluginDisableCmd)
	pluginCmd.AddCommand(pluginMoveCmd)
	pluginCmd.AddCommand(pluginBackupsCmd)
	pluginCmd.AddCommand(pluginRestoreCmd)

	rootCmd.AddCommand(pluginCmd)
}

func runPluginList(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		output := pluginListJSON{Profile: profile.Name, Plugins: make([]pluginRefJSON, 0, len(profile.Plugins))}
		for _, ref := range profile.Plugins {
			output.Plugins = append(output.Plugins, pluginRefJSON{Plugin: ref.Plugin, Enabled: ref.Enabled, Mod: ref.ModID})
		}
		return writeJSON(out, output)
	}

	if len(profile.Plugins) == 0 {
		fmt.Fprintf(out, "No plugins in profile %s.\n", profile.Name)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPLUGIN\tSTATUS\tMOD")
	fmt.Fprintln(w, "-\t------\t------\t---")
	for i, ref := range profile.Plugins {
		mod := ref.ModID
		if mod == "" {
			mod = colorMuted("(game)")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, ref.Plugin, enabledMark(ref.Enabled), mod)
	}
	return w.Flush()
}

func runPluginSetEnabled(cmd *cobra.Command, plugin string, enabled bool) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	if err := service.Profiles().SetPluginEnabled(profile, plugin, enabled); err != nil {
		return err
	}

	state := "Disabled"
	if enabled {
		state = "Enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", colorGreen("✓"), state, plugin)
	return nil
}

func runPluginMove(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[1])
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	if err := service.Profiles().MovePlugin(profile, args[0], index); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Moved %s to position %d\n", colorGreen("✓"), args[0], profile.PluginIndex(args[0]))
	return nil
}

func runPluginBackups(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	backups, err := service.PluginListBackups(profile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if backups == nil {
			backups = []string{}
		}
		return writeJSON(out, backups)
	}
	if len(backups) == 0 {
		fmt.Fprintln(out, "No plugin list backups.")
		return nil
	}
	for i, b := range backups {
		fmt.Fprintf(out, "%d. %s\n", i+1, b)
	}
	return nil
}

func runPluginRestore(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}

	path := args[0]
	if n, err := strconv.Atoi(path); err == nil {
		backups, err := service.PluginListBackups(profile)
		if err != nil {
			return err
		}
		if n < 1 || n > len(backups) {
			return fmt.Errorf("no backup number %d; %d backup(s) available", n, len(backups))
		}
		path = backups[n-1]
	}

	if err := service.RestorePluginBackup(profile, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Restored load order from %s (%d plugins)\n", colorGreen("✓"), filepath.Base(path), len(profile.Plugins))
	return nil
}
