package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeagent/recipe"
	"recipeagent/tools/search"
)

type searchCall struct {
	query       string
	maxCalories *int
}

type mockSearcher struct {
	results search.Results
	err     error
	calls   []searchCall
}

func (m *mockSearcher) Search(ctx context.Context, query string, maxCalories *int) (search.Results, error) {
	m.calls = append(m.calls, searchCall{query: query, maxCalories: maxCalories})
	if m.err != nil {
		return search.Results{}, m.err
	}
	return m.results, nil
}

func proteinRecipe(title, protein string) recipe.Record {
	return recipe.Record{Title: title, Nutrition: map[string]any{"proteinContent": protein}}
}

func TestFindRecipes_Run(t *testing.T) {
	candidates := search.Results{Recipes: []recipe.Record{
		proteinRecipe("Chicken Bowl", "32g"),
		proteinRecipe("Corn Cakes", "18g"),
		proteinRecipe("Mystery Stew", "N/A"),
	}}

	tests := []struct {
		name            string
		input           map[string]any
		results         search.Results
		expectedQuery   string
		expectedMaxCal  *int
		expectedTitles  []string
		expectedMessage string
	}{
		{
			name:           "protein threshold filters results",
			input:          map[string]any{"query_text": "chicken", "max_calories": 500.0, "min_protein_g": 25.0},
			results:        candidates,
			expectedQuery:  "chicken",
			expectedMaxCal: intPtr(500),
			expectedTitles: []string{"Chicken Bowl"},
		},
		{
			name:           "no threshold returns every hit",
			input:          map[string]any{"query_text": "corn", "min_protein_g": "none"},
			results:        candidates,
			expectedQuery:  "corn",
			expectedTitles: []string{"Chicken Bowl", "Corn Cakes", "Mystery Stew"},
		},
		{
			name:            "no protein match message",
			input:           map[string]any{"query_text": "corn", "min_protein_g": 90},
			results:         candidates,
			expectedQuery:   "corn",
			expectedMessage: search.NoProteinMatchMessage,
		},
		{
			name:            "no results message is passed through",
			input:           map[string]any{"query_text": "tofu", "min_protein_g": 20},
			results:         search.NoResults(),
			expectedQuery:   "tofu",
			expectedMessage: search.NoResultsMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &mockSearcher{results: tt.results}
			out, err := NewFindRecipes(searcher).Run(context.Background(), tt.input)
			require.NoError(t, err)

			require.Len(t, searcher.calls, 1)
			assert.Equal(t, tt.expectedQuery, searcher.calls[0].query)
			assert.Equal(t, tt.expectedMaxCal, searcher.calls[0].maxCalories)

			if tt.expectedMessage != "" {
				assert.Equal(t, tt.expectedMessage, out)
				return
			}

			var recipes []recipe.Record
			require.NoError(t, json.Unmarshal([]byte(out), &recipes))
			var titles []string
			for _, r := range recipes {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.expectedTitles, titles)
		})
	}
}

func TestFindRecipes_RunErrors(t *testing.T) {
	t.Run("validation error does not reach the searcher", func(t *testing.T) {
		searcher := &mockSearcher{}
		_, err := NewFindRecipes(searcher).Run(context.Background(), map[string]any{"max_calories": "lots"})

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Empty(t, searcher.calls)
	})

	t.Run("search failure is wrapped", func(t *testing.T) {
		boom := errors.New("connection refused")
		_, err := NewFindRecipes(&mockSearcher{err: boom}).Run(context.Background(), map[string]any{"query_text": "corn"})
		require.ErrorIs(t, err, boom)

		var verr *ValidationError
		assert.False(t, errors.As(err, &verr))
	})
}

func TestFindRecipes_InputSchema(t *testing.T) {
	schema := NewFindRecipes(&mockSearcher{}).InputSchema()
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"query_text"}, schema.Required)
	for _, field := range []string{FieldQueryText, FieldMaxCalories, FieldMinProteinG, FieldAvailableIngredients} {
		require.Contains(t, schema.Properties, field)
		assert.NotEmpty(t, schema.Properties[field].Description)
	}
	assert.Equal(t, "integer", schema.Properties[FieldMaxCalories].Type)
}
