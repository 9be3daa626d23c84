package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"recipeagent"
	"recipeagent/coordinator"
	"recipeagent/slack"
	"recipeagent/tools"
)

type askOptions struct {
	slackWebhook  string
	slackChannel  string
	traceDir      string
	maxIterations int
}

func newAskCmd() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the recipe agent; starts a REPL when no question is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			otelShutdown, err := recipeagent.InitOtel(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
			}
			defer func() {
				if err := otelShutdown(context.Background()); err != nil {
					slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
				}
			}()

			searcher, err := newSearcher(ctx, cfg.Search)
			if err != nil {
				return err
			}
			registry, err := tools.NewRegistry(searcher)
			if err != nil {
				return err
			}
			llm, err := newLLMClient(ctx, cfg.Model, cfg.Agent)
			if err != nil {
				return err
			}

			if opts.maxIterations <= 0 {
				opts.maxIterations = cfg.Agent.MaxIterations
			}
			r := &asker{
				llm:      llm,
				registry: registry,
				modelID:  cfg.Model.ModelID,
				opts:     opts,
			}
			if opts.slackWebhook != "" {
				r.slack = slack.NewClient(opts.slackWebhook, nil)
			}

			if len(args) > 0 {
				return r.ask(ctx, cmd.OutOrStdout(), strings.Join(args, " "))
			}
			return r.repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.slackWebhook, "slack-webhook", "", "post every answer to this Slack incoming webhook")
	cmd.Flags().StringVar(&opts.slackChannel, "slack-channel", "#recipes", "Slack channel for posted answers")
	cmd.Flags().StringVar(&opts.traceDir, "trace-log", "", "directory for per-run coordination logs")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "agent loop budget (defaults to MAX_ITERATIONS)")
	return cmd
}

type asker struct {
	llm      recipeagent.LLMClient
	registry *tools.Registry
	slack    recipeagent.SlackClient
	modelID  string
	opts     askOptions
}

func (a *asker) repl(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, mutedStyle.Render("Ask for recipes. Type 'quit' or 'exit' to leave."))
	sc := bufio.NewScanner(in)
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

		if err := a.ask(ctx, out, question); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
		}
	}
}

func (a *asker) ask(ctx context.Context, out io.Writer, question string) error {
	logger, flush, err := a.coordinationLogger()
	if err != nil {
		return err
	}
	defer func() {
		if err := flush(); err != nil {
			slog.Error("SETUP: Failed to flush coordination log", "error", err)
		}
	}()

	result, err := coordinator.NewCoordinator(a.llm, a.registry, a.opts.maxIterations, logger, nil, nil).Run(ctx, question)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, answerStyle.Render("Agent: ")+result.Answer)
	if result.State == coordinator.StateBudgetExhausted {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("(stopped after %d iterations)", result.Iterations)))
	}

	if a.slack != nil {
		if err := a.slack.PostMessage(ctx, a.opts.slackChannel, result.Answer); err != nil {
			slog.Error("RESULT: Failed to post result to Slack", "error", err)
		}
	}
	return nil
}

func (a *asker) coordinationLogger() (recipeagent.CoordinationLogger, func() error, error) {
	if a.opts.traceDir == "" {
		return recipeagent.NewNoOpCoordinationLogger(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(a.opts.traceDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	path := recipeagent.NewCoordinationLogFilePath(filepath.Clean(a.opts.traceDir), a.modelID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := recipeagent.NewFileCoordinationLogger(f)
	return logger, func() error { return errors.Join(logger.Flush(), f.Close()) }, nil
}
