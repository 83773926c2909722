package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"
	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/fomod"

	"github.com/spf13/cobra"
)

var (
	modRoot      bool
	modName      string
	modOptions   []string
	modMerge     string
	modManual    bool
	modNormalize bool
)

type modListJSON struct {
	Profile string        `json:"profile"`
	Root    bool          `json:"root"`
	Mods    []modSizeJSON `json:"mods"`
}

type modSizeJSON struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Size    int64  `json:"size"`
}

var modCmd = &cobra.Command{
	Use:   "mod",
	Short: "Manage the mods of a profile",
	Long: `Add, import and arrange the mods of a profile.

Regular mods deploy into the game's data directory; root mods (--root) deploy
into the game's base directory. Mods earlier in the list win file conflicts.`,
}

var modAddCmd = &cobra.Command{
	Use:   "add <archive>",
	Short: "Add a mod from an archive",
	Long: `Extract an archive (.zip, .7z, .rar, .tar.gz, .tar.xz) and add it to the profile.

Archives with a FOMOD installer use the installer's default choices unless
options are given with --option "Step/Group=Plugin[,Plugin]" (repeatable).
Use --manual to ignore the installer and install every file as-is.

Examples:
  sml mod add ~/Downloads/SkyUI-1234-5-2-1700000000.zip
  sml mod add Armor.7z --option "Main/Body Type=Athletic"
  sml mod add Loader.zip --root
  sml mod add Patch.zip --name "Big Mod" --merge add`,
	Args: cobra.ExactArgs(1),
	RunE: runModAdd,
}

var modImportCmd = &cobra.Command{
	Use:   "import <folder>",
	Short: "Import a mod from a folder",
	Long: `Import an unpacked mod folder into the profile. The folder is left untouched.

Takes the same installer and merge flags as 'sml mod add'.

Examples:
  sml mod import ~/mods/BetterHUD`,
	Args: cobra.ExactArgs(1),
	RunE: runModImport,
}

var modListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the mods of a profile",
	Args:  cobra.NoArgs,
	RunE:  runModList,
}

var modEnableCmd = &cobra.Command{
	Use:   "enable <mod>",
	Short: "Enable a mod",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runModSetEnabled(cmd, args[0], true) },
}

var modDisableCmd = &cobra.Command{
	Use:   "disable <mod>",
	Short: "Disable a mod",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runModSetEnabled(cmd, args[0], false) },
}

var modMoveCmd = &cobra.Command{
	Use:   "move <mod> <index>",
	Short: "Move a mod to a new position",
	Long: `Move a mod to a new position in its list. Index 0 is the top, which wins conflicts.

Examples:
  sml mod move "Big Mod" 0`,
	Args: cobra.ExactArgs(2),
	RunE: runModMove,
}

var modRemoveCmd = &cobra.Command{
	Use:   "remove <mod>",
	Short: "Remove a mod and its stored files",
	Args:  cobra.ExactArgs(1),
	RunE:  runModRemove,
}

var modRenameCmd = &cobra.Command{
	Use:   "rename <mod> <new-name>",
	Short: "Rename a mod",
	Args:  cobra.ExactArgs(2),
	RunE:  runModRename,
}

var modFilesCmd = &cobra.Command{
	Use:   "files <mod>",
	Short: "List the stored files of a mod",
	Args:  cobra.ExactArgs(1),
	RunE:  runModFiles,
}

func init() {
	for _, c := range []*cobra.Command{modAddCmd, modImportCmd} {
		c.Flags().StringVar(&modName, "name", "", "mod name (default: derived from the archive or folder name)")
		c.Flags().StringArrayVar(&modOptions, "option", nil, `installer choice "Step/Group=Plugin[,Plugin]" (repeatable)`)
		c.Flags().StringVar(&modMerge, "merge", "", "when the mod exists: replace, overwrite or add (default: replace)")
		c.Flags().BoolVar(&modManual, "manual", false, "ignore the FOMOD installer and install every file")
	}
	for _, c := range []*cobra.Command{modAddCmd, modImportCmd, modListCmd, modEnableCmd, modDisableCmd, modMoveCmd, modRemoveCmd, modRenameCmd, modFilesCmd} {
		c.Flags().BoolVar(&modRoot, "root", false, "operate on root mods (deployed into the game base directory)")
	}
	modFilesCmd.Flags().BoolVar(&modNormalize, "normalize", false, "lower-case directory names")

	modCmd.AddCommand(modAddCmd)
	modCmd.AddCommand(modImportCmd)
	modCmd.AddCommand(modListCmd)
	modCmd.AddCommand(modEnableCmd)
	modCmd.AddCommand(modDisableCmd)
	modCmd.AddCommand(modMoveCmd)
	modCmd.AddCommand(modRemoveCmd)
	modCmd.AddCommand(modRenameCmd)
	modCmd.AddCommand(modFilesCmd)

	rootCmd.AddCommand(modCmd)
}

// importSettings are the add/import flags, validated before any extraction
type importSettings struct {
	name     string
	options  []installerOption
	merge    domain.MergeStrategy
	hasMerge bool
	manual   bool
}

func readImportSettings() (importSettings, error) {
	s := importSettings{name: modName, manual: modManual}
	if s.name != "" && (strings.ContainsAny(s.name, `/\`) || s.name == "." || s.name == "..") {
		return s, fmt.Errorf("invalid mod name %q", s.name)
	}
	if modMerge != "" {
		switch strings.ToLower(modMerge) {
		case "replace", "overwrite", "add":
		default:
			return s, fmt.Errorf("invalid merge strategy: %s (use: replace, overwrite, or add)", modMerge)
		}
		s.merge = domain.ParseMergeStrategy(modMerge)
		s.hasMerge = true
	}
	if s.manual && len(modOptions) > 0 {
		return s, fmt.Errorf("--manual and --option cannot be combined")
	}
	opts, err := parseInstallerOptions(modOptions)
	if err != nil {
		return s, err
	}
	s.options = opts
	return s, nil
}

func runModAdd(cmd *cobra.Command, args []string) error {
	return runImport(cmd, func(ctx context.Context, svc *core.Service, p *domain.Profile) (*domain.ModImportRequest, error) {
		return svc.BeginModAdd(ctx, p, modRoot, args[0])
	})
}

func runModImport(cmd *cobra.Command, args []string) error {
	return runImport(cmd, func(ctx context.Context, svc *core.Service, p *domain.Profile) (*domain.ModImportRequest, error) {
		return svc.BeginModExternalImport(ctx, p, modRoot, args[0])
	})
}

type beginFunc func(ctx context.Context, svc *core.Service, p *domain.Profile) (*domain.ModImportRequest, error)

func runImport(cmd *cobra.Command, begin beginFunc) error {
	settings, err := readImportSettings()
	if err != nil {
		return err
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	req, err := begin(ctx, service, profile)
	if err != nil {
		return fmt.Errorf("preparing import: %w", err)
	}
	if settings.name != "" {
		req.ModName = settings.name
	}
	if settings.hasMerge {
		req.MergeStrategy = settings.merge
	}

	if err := applyInstaller(out, service, profile, req, settings); err != nil {
		req.Status = domain.ImportCanceled
		_, _ = service.CompleteModImport(ctx, profile, req)
		return err
	}

	result, err := service.CompleteModImport(ctx, profile, req)
	if err != nil {
		return fmt.Errorf("importing %s: %w", req.ModName, err)
	}

	kind := "mod"
	if result.Root {
		kind = "root mod"
	}
	fmt.Fprintf(out, "%s Added %s %s (%d files)\n", colorGreen("✓"), kind, result.ModName, result.Files)
	if len(result.Plugins) > 0 {
		fmt.Fprintf(out, "  Plugins: %s\n", strings.Join(result.Plugins, ", "))
	}
	if profile.Deployed {
		fmt.Fprintf(out, "%s profile %s is deployed; run 'sml deploy' to apply\n", colorYellow("Note:"), profile.Name)
	}
	return nil
}

// applyInstaller sets the request's file map from the installer options or the manual flag
func applyInstaller(out io.Writer, service *core.Service, profile *domain.Profile, req *domain.ModImportRequest, settings importSettings) error {
	hasConfig := req.Installer != nil && req.Installer.Config != nil

	switch {
	case settings.manual:
		req.Status = domain.ImportManualInstall
		service.ApplyPlacement(profile, req, nil)
		return nil
	case !hasConfig:
		if len(settings.options) > 0 {
			return fmt.Errorf("%s has no installer; --option cannot be used", req.ModName)
		}
		return nil
	}

	plan, err := selectInstallerOptions(func(choices fomod.Choices) *fomod.InstallPlan {
		return service.ApplyPlacement(profile, req, choices)
	}, settings.options)
	if err != nil {
		return err
	}
	if len(plan.Steps) > 0 {
		name := req.ModName
		if req.Installer.Info != nil && req.Installer.Info.Name != "" {
			name = req.Installer.Info.Name
		}
		fmt.Fprintf(out, "Installer: %s\n", name)
		printInstallPlan(out, plan)
	}
	return nil
}

func runModList(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	list := profile.ModList(modRoot)

	mods := make([]modSizeJSON, 0, list.Len())
	for i, e := range list.Entries() {
		size, err := service.ModSize(profile, modRoot, e.Key)
		if err != nil {
			size = -1
		}
		mods = append(mods, modSizeJSON{Index: i, Name: e.Key, Enabled: e.Value.Enabled, Size: size})
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, modListJSON{Profile: profile.Name, Root: modRoot, Mods: mods})
	}

	if len(mods) == 0 {
		fmt.Fprintf(out, "No mods in profile %s.\n", profile.Name)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSTATUS\tSIZE")
	fmt.Fprintln(w, "-\t----\t------\t----")
	for _, m := range mods {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.Index, truncate(m.Name, 50), enabledMark(m.Enabled), formatSize(m.Size))
	}
	return w.Flush()
}

func runModSetEnabled(cmd *cobra.Command, name string, enabled bool) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	if err := service.Profiles().SetModEnabled(profile, modRoot, name, enabled); err != nil {
		return err
	}

	state := "Disabled"
	if enabled {
		state = "Enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", colorGreen("✓"), state, name)
	return nil
}

func runModMove(cmd *cobra.Command, args []string) error {
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
	if err := service.Profiles().MoveMod(profile, modRoot, args[0], index); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Moved %s to position %d\n", colorGreen("✓"), args[0], profile.ModList(modRoot).IndexOf(args[0]))
	return nil
}

func runModRemove(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	if err := service.Profiles().DeleteMod(profile, modRoot, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", colorGreen("✓"), args[0])
	return nil
}

func runModRename(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	if err := service.Profiles().RenameMod(profile, modRoot, args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %s\n", colorGreen("✓"), args[0], args[1])
	return nil
}

func runModFiles(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, _, err := loadProfile(service)
	if err != nil {
		return err
	}
	files, err := service.ReadModFilePaths(profile, args[0], modRoot, modNormalize)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, files)
	}
	for _, f := range files {
		fmt.Fprintln(out, f)
	}
	return nil
}
