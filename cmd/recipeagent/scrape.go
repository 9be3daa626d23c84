package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recipeagent/scraper"
	"recipeagent/tools/storage"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Walk the recipe site and build the JSONL corpus",
	}

	var indexURL string
	categories := &cobra.Command{
		Use:   "categories",
		Short: "Collect ingredient category links from the index page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := newScraper()
			if err != nil {
				return err
			}
			if indexURL == "" {
				indexURL = cfg.Scrape.IndexURL
			}
			links, err := s.DiscoverCategories(cmd.Context(), indexURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "found %d categories\n", len(links))
			return nil
		},
	}
	categories.Flags().StringVar(&indexURL, "index-url", "", "ingredient index page (defaults to SCRAPE_INDEX_URL)")

	links := &cobra.Command{
		Use:   "links",
		Short: "Collect recipe links from every category page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := newScraper()
			if err != nil {
				return err
			}
			found, err := s.DiscoverRecipes(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "found %d recipe links\n", len(found))
			return nil
		},
	}

	recipes := &cobra.Command{
		Use:   "recipes",
		Short: "Extract every linked recipe into the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := newScraper()
			if err != nil {
				return err
			}
			count, err := s.ScrapeRecipes(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "finished: %d recipes written to %s\n", count, cfg.Search.CorpusPath)
			return nil
		},
	}

	cmd.AddCommand(categories, links, recipes)
	return cmd
}

func newScraper() (*scraper.Scraper, appConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, appConfig{}, err
	}
	fetcher := scraper.NewCollyFetcher(cfg.Scrape.UserAgent, cfg.Scrape.Timeout)
	sink := storage.NewFileRecipeState(cfg.Search.CorpusPath)
	return scraper.New(fetcher, sink, scraper.Config{
		DataDir:     cfg.Scrape.DataDir,
		Parallelism: cfg.Scrape.Parallelism,
		Delay:       cfg.Scrape.Delay,
	}), cfg, nil
}
