package main

import (
	"context"
	"fmt"
	"io"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"

	"github.com/spf13/cobra"
)

var (
	deployPlugins       bool
	deployNormalizeCase bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a profile into the game directory",
	Long: `Deploy the enabled mods of a profile into the game directories.

Any profile deployed into the same directory is undeployed first. Mods earlier
in the list win conflicts, and files already present that sml did not write
are never overwritten. A failed deploy is rolled back.

Use --plugins to also write the profile's load order to plugins.txt.
Use --normalize-case to lower-case the directory names of deployed files.

Examples:
  sml deploy
  sml deploy --profile survival --plugins`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

var undeployCmd = &cobra.Command{
	Use:   "undeploy",
	Short: "Remove a deployed profile from the game directory",
	Long: `Remove every file the last deploy wrote, restore backed up config
files and delete directories left empty.

Examples:
  sml undeploy
  sml undeploy --profile survival`,
	Args: cobra.NoArgs,
	RunE: runUndeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployPlugins, "plugins", false, "write the plugin load order to plugins.txt")
	deployCmd.Flags().BoolVar(&deployNormalizeCase, "normalize-case", false, "lower-case directory names of deployed mod files")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(undeployCmd)
}

// progressSink prints deploy events as they happen
func progressSink(out io.Writer) core.EventSink {
	return core.EventSinkFunc(func(e core.DeployEvent) {
		switch e.Kind {
		case core.EventPluginListWritten:
			fmt.Fprintf(out, "  %s plugins.txt\n", colorGreen("✓"))
		case core.EventModDeployed:
			fmt.Fprintf(out, "  %s %s\n", colorGreen("✓"), e.Mod)
		case core.EventDeployFailed:
			fmt.Fprintf(out, "  %s %v\n", colorRed("✗"), e.Err)
		}
	})
}

func runDeploy(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	service, err := initServiceWithEvents(progressSink(out))
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, game, err := loadProfile(service)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Deploying %s to %s using %s...\n", profile.Name, game.Name, profile.Installation(game).LinkMethod)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	opts := core.DeployOptions{DeployPlugins: deployPlugins, NormalizePathCasing: deployNormalizeCase}
	if err := service.Deploy(ctx, profile, opts, noHooks); err != nil {
		return fmt.Errorf("deploying %s: %w", profile.Name, err)
	}

	st, err := service.Status(profile)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s Deployed %s (%d files)\n", colorGreen("✓"), profile.Name, st.Files)

	conflicts, err := service.Conflicts(profile)
	if err == nil && len(conflicts) > 0 {
		fmt.Fprintf(out, "%s %d file conflict(s); see 'sml conflicts'\n", colorYellow("Note:"), len(conflicts))
	}
	return nil
}

func runUndeploy(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}

	st, err := service.Status(profile)
	if err != nil {
		return err
	}
	if st.DeployedProfile == "" {
		fmt.Fprintln(out, "Nothing is deployed.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := service.Undeploy(ctx, profile, noHooks); err != nil {
		return fmt.Errorf("undeploying %s: %w", st.DeployedProfile, err)
	}

	fmt.Fprintf(out, "%s Undeployed %s (%d files removed)\n", colorGreen("✓"), st.DeployedProfile, st.Files)
	return nil
}
