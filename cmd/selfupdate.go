package cmd

import (
	"fmt"
	"os"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the repository self-update checks for releases.
const githubRepoSlug = "podlab-dev/podlab"

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update podlab to the latest release",
		Long: `Checks for the latest release of podlab on GitHub and, when the running
binary is older, downloads it and replaces the binary in place.`,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	version := rootCmd.Version
	if version == "" || version == "dev" {
		return fmt.Errorf("cannot self-update a development version, install a released build first")
	}

	ctx := cmdContext(cmd)

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(githubRepoSlug))
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s", githubRepoSlug)
	}

	if latest.LessOrEqual(version) {
		fmt.Printf("podlab %s is up to date\n", version)
		return nil
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not locate own executable: %w", err)
	}

	fmt.Printf("Updating podlab %s to %s...\n", version, latest.Version())
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, executable); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Printf("Updated to podlab %s\n", latest.Version())
	return nil
}
