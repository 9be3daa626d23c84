package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeagent/coordinator/mock"
	"recipeagent/recipe"
	"recipeagent/tools"
	"recipeagent/tools/search"
)

type stubSearcher struct {
	results search.Results
	err     error
}

func (s stubSearcher) Search(ctx context.Context, query string, maxCalories *int) (search.Results, error) {
	return s.results, s.err
}

type recordingSlack struct {
	channel  string
	messages []string
}

func (r *recordingSlack) PostMessage(ctx context.Context, channel, message string) error {
	r.channel = channel
	r.messages = append(r.messages, message)
	return nil
}

func newTestAsker(t *testing.T, s search.Searcher) *asker {
	t.Helper()
	registry, err := tools.NewRegistry(s)
	require.NoError(t, err)
	return &asker{
		llm:      mock.NewLLMClient(true),
		registry: registry,
		modelID:  "mock",
		opts:     askOptions{maxIterations: 5, slackChannel: "#recipes"},
	}
}

func TestAsker_REPL(t *testing.T) {
	a := newTestAsker(t, stubSearcher{results: search.Results{Recipes: []recipe.Record{{Title: "Corn Salsa"}}}})
	posted := &recordingSlack{}
	a.slack = posted

	in := strings.NewReader("corn salsa please\n\nexit\nnever asked\n")
	var out bytes.Buffer

	require.NoError(t, a.repl(context.Background(), in, &out))
	assert.Contains(t, out.String(), "Corn Salsa")
	assert.NotContains(t, out.String(), "never asked")
	require.Len(t, posted.messages, 1)
	assert.Equal(t, "#recipes", posted.channel)
}

func TestAsker_REPLContinuesAfterError(t *testing.T) {
	a := newTestAsker(t, stubSearcher{err: errors.New("connection refused")})

	in := strings.NewReader("chicken\nchicken again\nquit\n")
	var out bytes.Buffer

	require.NoError(t, a.repl(context.Background(), in, &out))
	assert.Equal(t, 2, strings.Count(out.String(), "connection refused"))
}

func TestAsker_TraceLog(t *testing.T) {
	a := newTestAsker(t, stubSearcher{results: search.NoResults()})
	a.opts.traceDir = t.TempDir()

	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), &out, "tofu"))

	entries, err := os.ReadDir(a.opts.traceDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".mock.json"))

	data, err := os.ReadFile(filepath.Join(a.opts.traceDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "coordination_session")
}
