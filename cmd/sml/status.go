package main

import (
	"fmt"
	"time"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/db"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type statusJSONOutput struct {
	Profile         string          `json:"profile"`
	GameID          string          `json:"game_id"`
	ModDir          string          `json:"mod_dir"`
	Deployed        bool            `json:"deployed"`
	DeployedProfile string          `json:"deployed_profile,omitempty"`
	Files           int             `json:"files"`
	Mods            int             `json:"mods"`
	EnabledMods     int             `json:"enabled_mods"`
	LastDeployment  *deploymentJSON `json:"last_deployment,omitempty"`
}

type deploymentJSON struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Files      int        `json:"files"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the deployment status of a profile",
	Long: `Show which profile is deployed into the game directory, how many files
it wrote and the outcome of the profile's last deployment.

Examples:
  sml status
  sml status --profile survival --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer service.Close()

	profile, game, err := loadProfile(service)
	if err != nil {
		return err
	}
	st, err := service.Status(profile)
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	var total, enabled int
	for _, list := range []*domain.ModList{profile.ModList(true), profile.ModList(false)} {
		for _, e := range list.Values() {
			total++
			if e.Enabled {
				enabled++
			}
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		output := statusJSONOutput{
			Profile:         profile.Name,
			GameID:          game.ID,
			ModDir:          st.ModDir,
			Deployed:        st.Deployed(),
			DeployedProfile: st.DeployedProfile,
			Files:           st.Files,
			Mods:            total,
			EnabledMods:     enabled,
			LastDeployment:  toDeploymentJSON(st.Latest),
		}
		return writeJSON(out, output)
	}

	fmt.Fprintf(out, "%s %s\n", heading("Profile:"), profile.Name)
	fmt.Fprintf(out, "  Game:     %s (%s)\n", game.Name, game.ID)
	fmt.Fprintf(out, "  Mod Dir:  %s\n", st.ModDir)
	fmt.Fprintf(out, "  Mods:     %d (%d enabled)\n", total, enabled)

	switch {
	case st.Deployed():
		fmt.Fprintf(out, "  Deployed: %s (%d files)\n", colorGreen("yes"), st.Files)
	case st.DeployedProfile != "":
		fmt.Fprintf(out, "  Deployed: %s, %s is deployed (%d files)\n", colorYellow("no"), st.DeployedProfile, st.Files)
	default:
		fmt.Fprintf(out, "  Deployed: %s\n", colorMuted("no"))
	}

	if d := st.Latest; d != nil {
		status := string(d.Status)
		switch d.Status {
		case db.StatusDeployed:
			status = colorGreen(status)
		case db.StatusFailed:
			status = colorRed(status)
		}
		fmt.Fprintf(out, "  Last Run: %s %s\n", status, colorMuted(humanize.Time(d.StartedAt)))
		if d.Error != "" {
			fmt.Fprintf(out, "  Error:    %s\n", d.Error)
		}
	}
	return nil
}

func toDeploymentJSON(d *db.Deployment) *deploymentJSON {
	if d == nil {
		return nil
	}
	return &deploymentJSON{
		ID:         d.ID,
		Status:     string(d.Status),
		Files:      d.FileCount,
		Error:      d.Error,
		StartedAt:  d.StartedAt,
		FinishedAt: d.FinishedAt,
	}
}
