package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"metawave/core/insights"
	"metawave/db"
	"metawave/repository"

	"github.com/spf13/cobra"
)

var (
	insightsHandle string
	insightsJSON   bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print library statistics for a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if insightsHandle == "" {
			return errors.New("--handle is required")
		}
		gdb, err := db.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()
		profile, err := repository.NewGormProfileRepository(gdb).GetByHandle(ctx, insightsHandle)
		if err != nil {
			return fmt.Errorf("profile %s: %w", insightsHandle, err)
		}
		tracks, err := repository.NewGormTrackRepository(gdb).ListByOwner(ctx, profile.ID)
		if err != nil {
			return fmt.Errorf("tracks of %s: %w", insightsHandle, err)
		}

		report := insights.Compute(tracks)
		if insightsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (@%s)\n\n", profile.Name, profile.Handle)
		insights.Print(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.Flags().StringVar(&insightsHandle, "handle", "", "profile handle")
	insightsCmd.Flags().BoolVar(&insightsJSON, "json", false, "print the raw report as JSON")
}
