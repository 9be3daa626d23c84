package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeagent"
	"recipeagent/coordinator/mock"
	"recipeagent/tools"
	"recipeagent/tools/search"
	"recipeagent/tools/storage"
)

const corpus = `{"title":"Grilled Chicken","ingredients":["chicken breast"],"steps":["Grill."],"nutrition":{"calories":"320 kcal","proteinContent":"35 g"}}
{"title":"Chicken Pie","ingredients":["chicken","pastry"],"steps":["Bake."],"nutrition":{"calories":"900 kcal","proteinContent":"28 g"}}
`

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	registry, err := tools.NewRegistry(search.NewLocal(storage.NewTestRecipeState([]byte(corpus)), 3))
	require.NoError(t, err)
	return &handler{
		llm:           mock.NewLLMClient(true),
		registry:      registry,
		maxIterations: 5,
		logger:        recipeagent.NewNoOpCoordinationLogger(),
	}
}

func TestHandler(t *testing.T) {
	res, err := newTestHandler(t).handle(context.Background(), Params{Question: "chicken under 500 calories"})
	require.NoError(t, err)

	assert.Equal(t, "done", res.State)
	assert.Equal(t, 2, res.Iterations)
	assert.Contains(t, res.Answer, "Grilled Chicken")
	assert.NotContains(t, res.Answer, "Chicken Pie")
}

func TestHandler_EmptyQuestion(t *testing.T) {
	_, err := newTestHandler(t).handle(context.Background(), Params{Question: "  "})
	require.Error(t, err)
}
