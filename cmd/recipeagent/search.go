package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recipeagent"
	"recipeagent/tools"
)

func newSearchCmd() *cobra.Command {
	var (
		maxCalories int
		minProtein  int
		dump        bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run find_recipes directly, without a model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			input := map[string]any{tools.FieldQueryText: strings.Join(args, " ")}
			if maxCalories > 0 {
				input[tools.FieldMaxCalories] = maxCalories
			}
			if minProtein > 0 {
				input[tools.FieldMinProteinG] = minProtein
			}
			req, err := tools.ParseSearchRequest(input)
			if err != nil {
				return err
			}

			searcher, err := newSearcher(ctx, cfg.Search)
			if err != nil {
				return err
			}
			results, err := tools.NewFindRecipes(searcher).Search(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dump {
				recipeagent.Dump(out, req, results)
				return nil
			}
			if results.IsSentinel() {
				fmt.Fprintln(out, mutedStyle.Render(results.String()))
				return nil
			}
			for i, r := range results.Recipes {
				fmt.Fprintf(out, "%s %s\n", promptStyle.Render(fmt.Sprintf("%d.", i+1)), r.Title)
				var facts []string
				if cal := r.Calories(); cal != "" {
					facts = append(facts, "calories "+cal)
				}
				if p := r.ProteinContent(); p != "" {
					facts = append(facts, "protein "+p)
				}
				if r.SourceURL != "" {
					facts = append(facts, r.SourceURL)
				}
				if len(facts) > 0 {
					fmt.Fprintln(out, "   "+mutedStyle.Render(strings.Join(facts, " | ")))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxCalories, "cal", 0, "maximum calories per serving")
	cmd.Flags().IntVar(&minProtein, "protein", 0, "minimum protein in grams")
	cmd.Flags().BoolVar(&dump, "dump", false, "dump the request and raw results")
	return cmd
}
