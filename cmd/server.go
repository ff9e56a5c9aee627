package cmd

import (
	"metawave/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the MetaWave HTTP server",
	Long:  `Start the MetaWave HTTP API. Runs the database migration first and serves uploaded files under /static when the memory store is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
