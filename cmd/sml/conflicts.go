package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/spf13/cobra"
)

type conflictsJSONOutput struct {
	GameID    string         `json:"game_id"`
	Profile   string         `json:"profile"`
	Conflicts []conflictJSON `json:"conflicts"`
}

type conflictJSON struct {
	Path   string `json:"path"`
	Winner string `json:"winner"` // Empty when the file was not written by sml
	Loser  string `json:"loser"`
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show the file conflicts of the last deployment",
	Long: `Display the files mods lost during the profile's last deployment.

A conflict occurs when a mod ships a path that an earlier mod already placed,
or that existed in the game directory before the deploy. The winner's file is
the one on disk; "(existing file)" means a file sml did not write.

Examples:
  sml conflicts
  sml conflicts --profile survival --json`,
	Args: cobra.NoArgs,
	RunE: runConflicts,
}

func init() {
	rootCmd.AddCommand(conflictsCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer func() { _ = svc.Close() }()

	profile, game, err := loadProfile(svc)
	if err != nil {
		return err
	}

	conflicts, err := svc.Conflicts(profile)
	if err != nil && !errors.Is(err, domain.ErrNotDeployed) {
		return fmt.Errorf("reading conflicts: %w", err)
	}
	neverDeployed := err != nil

	out := cmd.OutOrStdout()
	if jsonOutput {
		output := conflictsJSONOutput{GameID: game.ID, Profile: profile.Name, Conflicts: make([]conflictJSON, 0, len(conflicts))}
		for _, c := range conflicts {
			output.Conflicts = append(output.Conflicts, conflictJSON{Path: c.Path, Winner: c.Winner, Loser: c.Loser})
		}
		return writeJSON(out, output)
	}

	if neverDeployed {
		fmt.Fprintf(out, "Profile %s has not been deployed yet.\n", profile.Name)
		return nil
	}
	if len(conflicts) == 0 {
		fmt.Fprintln(out, "No conflicts.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tWINNER\tLOSER")
	fmt.Fprintln(w, "----\t------\t-----")
	for _, c := range conflicts {
		winner := c.Winner
		if winner == "" {
			winner = colorMuted("(existing file)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Path, winner, c.Loser)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d conflict(s)\n", len(conflicts))
	return nil
}
