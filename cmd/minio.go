package cmd

import (
	"errors"
	"fmt"

	"metawave/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioDelete    bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the MinIO bucket",
	Long:  `List, summarise, or delete objects in the configured MinIO bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			return fmt.Errorf("connect minio: %w", err)
		}

		if minioDelete {
			if minioPrefix == "" {
				return errors.New("--delete needs a --prefix")
			}
			n, err := store.DeletePrefix(cmd.Context(), minioPrefix)
			if err != nil {
				return fmt.Errorf("delete %s: %w", minioPrefix, err)
			}
			fmt.Fprintf(out, "deleted %d objects under %s\n", n, minioPrefix)
			return nil
		}

		objects, stats, err := store.List(cmd.Context(), minioPrefix, minioRecursive)
		if err != nil {
			return fmt.Errorf("list %s: %w", minioPrefix, err)
		}
		if minioStats {
			storage.PrintStats(out, cfg.MinioBucket, minioPrefix, stats)
			return nil
		}
		storage.PrintTree(out, objects)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "only objects under this prefix")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "print bucket statistics")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "descend into sub-prefixes")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "delete every object under --prefix")

	minioCmd.Example = `  # list top-level objects
  metawave minio

  # tree of one user's uploads
  metawave minio -r -p "tracks/0f1c.../"

  # size and type breakdown
  metawave minio -s -r

  # remove everything under a prefix
  metawave minio -d -p "covers/albums/1234/"`
}
