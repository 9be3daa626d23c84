// Package assistant answers follow-up questions about one chosen recipe, keeping each
// session's conversation so later questions can refer back to earlier answers.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"recipeagent"
	"recipeagent/recipe"
	"recipeagent/session"
)

const systemTemplate = "You are a chef. Answer based ONLY on this recipe:\n\n%s"

var ErrEmptyQuestion = errors.New("question is empty")

type Assistant struct {
	llm        recipeagent.LLMClient
	store      session.Store
	recipeText string
}

func New(llm recipeagent.LLMClient, store session.Store, recipeText string) *Assistant {
	return &Assistant{llm: llm, store: store, recipeText: recipeText}
}

// NewForRecord grounds the assistant on a corpus record.
func NewForRecord(llm recipeagent.LLMClient, store session.Store, rec recipe.Record) *Assistant {
	return New(llm, store, rec.Text())
}

// SystemPrompt returns the instruction that pins answers to the recipe.
func (a *Assistant) SystemPrompt() string {
	return fmt.Sprintf(systemTemplate, a.recipeText)
}

// Ask sends the question with the session's history. The exchange is recorded only when
// the model answers, so a failed call leaves the history untouched.
func (a *Assistant) Ask(ctx context.Context, sessionID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	history, err := a.store.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load session history: %w", err)
	}

	msgs := make([]recipeagent.Message, 0, len(history)+2)
	msgs = append(msgs, recipeagent.Message{Role: recipeagent.RoleSystem, Content: a.SystemPrompt()})
	msgs = append(msgs, history...)
	msgs = append(msgs, recipeagent.Message{Role: recipeagent.RoleUser, Content: question})

	slog.Info("ASSISTANT: Asking about recipe", "session_id", sessionID, "history_len", len(history))
	res, err := a.llm.Invoke(ctx, recipeagent.Prompt{Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("failed to invoke LLM: %w", err)
	}

	answer := strings.TrimSpace(res.Content)
	if err := a.store.Append(ctx, sessionID,
		recipeagent.Message{Role: recipeagent.RoleUser, Content: question},
		recipeagent.Message{Role: recipeagent.RoleAssistant, Content: answer},
	); err != nil {
		return "", fmt.Errorf("failed to record session history: %w", err)
	}
	return answer, nil
}
