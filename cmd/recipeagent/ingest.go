package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recipeagent/ingest"
)

func newIngestCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Bulk load the recipe corpus into Elasticsearch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			state, err := newRecipeState(ctx, cfg.Search)
			if err != nil {
				return err
			}
			client, err := newElasticClient(cfg.Search)
			if err != nil {
				return err
			}

			stats, err := ingest.NewLoader(client, state, ingest.Config{
				Index:   cfg.Search.Index,
				Workers: workers,
				Timeout: cfg.Search.RequestTimeout,
			}).Load(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "read %d recipes, indexed %d, failed %d\n", stats.Read, stats.Indexed, stats.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 2, "concurrent bulk workers")
	return cmd
}
