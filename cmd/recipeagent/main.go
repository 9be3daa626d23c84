package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	debug   bool
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "recipeagent",
	Short: "Scrape, index and search recipes, and ask a tool-calling agent for meal ideas",
	Long: `recipeagent builds a recipe corpus and answers recipe requests with it.

  recipeagent scrape categories   Collect ingredient category links
  recipeagent scrape links        Collect recipe links from every category
  recipeagent scrape recipes      Extract recipes into the JSONL corpus
  recipeagent ingest              Bulk load the corpus into Elasticsearch
  recipeagent search chicken      Query the search backend directly
  recipeagent ask                 Ask the agent (REPL when no question is given)
  recipeagent chat --recipe X     Talk about one recipe with session history

Configuration comes from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		setupLogging(debug)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load when present")

	rootCmd.AddCommand(newScrapeCmd(), newIngestCmd(), newSearchCmd(), newAskCmd(), newChatCmd())
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
