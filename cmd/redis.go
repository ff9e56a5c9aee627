package cmd

import (
	"context"
	"fmt"
	"time"

	"metawave/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis connection",
	Long:  `Connect to the configured Redis server and run a write/read/delete round trip on a scratch key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "redis: %s:%s db=%d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := db.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer db.CloseRedis()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := db.CheckRedis(ctx, client); err != nil {
			return fmt.Errorf("redis round trip: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "redis ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
