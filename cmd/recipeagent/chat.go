package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recipeagent/assistant"
	"recipeagent/recipe"
	"recipeagent/session"
)

func newChatCmd() *cobra.Command {
	var (
		title     string
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask follow-up questions about one recipe from the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			rec, err := findRecipe(ctx, cfg, title)
			if err != nil {
				return err
			}
			llm, err := newLLMClient(ctx, cfg.Model, cfg.Agent)
			if err != nil {
				return err
			}

			store := session.NewMemoryStore(cfg.Session.TTL, cfg.Session.MaxMessages)
			sweeper, err := session.StartSweeper(store, cfg.Session.SweepSchedule)
			if err != nil {
				return err
			}
			defer sweeper.Stop()

			if sessionID == "" {
				sessionID = session.NewID()
			}
			a := assistant.NewForRecord(llm, store, rec)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("Chatting about %q (session %s). Type 'quit' or 'exit' to leave.", rec.Title, sessionID)))

			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, promptStyle.Render("You: "))
				if !sc.Scan() {
					fmt.Fprintln(out)
					return sc.Err()
				}
				question := strings.TrimSpace(sc.Text())
				switch strings.ToLower(question) {
				case "":
					continue
				case "quit", "exit":
					return nil
				}

				answer, err := a.Ask(ctx, sessionID, question)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
					continue
				}
				fmt.Fprintln(out, answerStyle.Render("Chef: ")+answer)
			}
		},
	}
	cmd.Flags().StringVar(&title, "recipe", "", "title (or part of it) of the recipe to discuss")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID to use (a new one is generated by default)")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

// findRecipe returns the first corpus record whose title contains the given text,
// preferring an exact case-insensitive match.
func findRecipe(ctx context.Context, cfg appConfig, title string) (recipe.Record, error) {
	state, err := newRecipeState(ctx, cfg.Search)
	if err != nil {
		return recipe.Record{}, err
	}
	data, err := state.Load(ctx)
	if err != nil {
		return recipe.Record{}, fmt.Errorf("failed to load recipe corpus: %w", err)
	}
	records, err := recipe.ReadJSONL(bytes.NewReader(data))
	if err != nil {
		return recipe.Record{}, err
	}

	want := strings.ToLower(strings.TrimSpace(title))
	var partial *recipe.Record
	for i := range records {
		got := strings.ToLower(records[i].Title)
		if got == want {
			return records[i], nil
		}
		if partial == nil && strings.Contains(got, want) {
			partial = &records[i]
		}
	}
	if partial != nil {
		return *partial, nil
	}
	return recipe.Record{}, fmt.Errorf("no recipe titled %q in the corpus", title)
}
