package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeagent"
	"recipeagent/coordinator"
	"recipeagent/recipe"
	"recipeagent/tools"
	"recipeagent/tools/search"
)

func intPtr(n int) *int { return &n }
func floatPtr(f float64) *float64 { return &f }

func TestExtractSearchArgs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected tools.SearchRequest
	}{
		{
			name: "light high protein with pantry amount",
			text: "I want a light, high protein chicken meal, I have 200g corn",
			expected: tools.SearchRequest{
				QueryText:            "chicken",
				MaxCalories:          intPtr(500),
				MinProteinG:          intPtr(25),
				AvailableIngredients: []tools.Ingredient{{Name: "corn", QuantityG: floatPtr(200)}},
			},
		},
		{
			name: "explicit calorie ceiling",
			text: "Give me a corn taco under 450 calories",
			expected: tools.SearchRequest{
				QueryText:   "corn taco",
				MaxCalories: intPtr(450),
			},
		},
		{
			name: "leg day and hungry",
			text: "Leg day today and I'm hungry, something with beef",
			expected: tools.SearchRequest{
				QueryText:   "beef",
				MaxCalories: intPtr(1000),
				MinProteinG: intPtr(30),
			},
		},
		{
			name: "pantry without amounts",
			text: "What can I make? I have broccoli and rice",
			expected: tools.SearchRequest{
				QueryText:            "broccoli rice",
				AvailableIngredients: []tools.Ingredient{{Name: "broccoli"}, {Name: "rice"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tools.ParseSearchRequest(ExtractSearchArgs(tt.text))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req)
		})
	}
}

type capturingSearcher struct {
	results     search.Results
	queries     []string
	maxCalories []*int
}

func (c *capturingSearcher) Search(ctx context.Context, query string, maxCalories *int) (search.Results, error) {
	c.queries = append(c.queries, query)
	c.maxCalories = append(c.maxCalories, maxCalories)
	return c.results, nil
}

func TestLLMClient_EndToEnd(t *testing.T) {
	for _, native := range []bool{false, true} {
		searcher := &capturingSearcher{results: search.Results{Recipes: []recipe.Record{
			{Title: "Grilled Chicken and Corn", Nutrition: map[string]any{"calories": "430 kcal", "proteinContent": "36 g"}},
			{Title: "Chicken Noodle Soup", Nutrition: map[string]any{"calories": "250 kcal", "proteinContent": "14 g"}},
		}}}
		registry, err := tools.NewRegistry(searcher)
		require.NoError(t, err)

		c := coordinator.NewCoordinator(NewLLMClient(native), registry, 5, nil, nil, nil)
		result, err := c.Run(context.Background(), "I want a light, high protein chicken meal, I have 200g corn")
		require.NoError(t, err)

		assert.Equal(t, coordinator.StateDone, result.State)
		assert.Equal(t, 2, result.Iterations)
		assert.Equal(t, []string{"chicken"}, searcher.queries)
		assert.Equal(t, []*int{intPtr(500)}, searcher.maxCalories)
		assert.Contains(t, result.Answer, "Grilled Chicken and Corn (430 kcal, 36 g protein)")
		assert.NotContains(t, result.Answer, "Chicken Noodle Soup")

		require.Len(t, result.Calls, 1)
		if native {
			assert.Equal(t, "call-1-0", result.Calls[0].Call.ID)
		} else {
			assert.Equal(t, coordinator.FallbackCallID, result.Calls[0].Call.ID)
		}
	}
}

func TestLLMClient_Summaries(t *testing.T) {
	client := NewLLMClient(false)

	tests := []struct {
		name       string
		toolResult string
		contains   string
	}{
		{"no results", search.NoResultsMessage, "couldn't find anything"},
		{"no protein match", search.NoProteinMatchMessage, "couldn't find anything"},
		{"validation error", "Error: invalid find_recipes arguments: query_text is required", "couldn't search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := client.Invoke(context.Background(), recipeagent.Prompt{Messages: []recipeagent.Message{
				{Role: recipeagent.RoleUser, Content: "chicken"},
				{Role: recipeagent.RoleTool, Content: tt.toolResult},
			}})
			require.NoError(t, err)
			assert.Contains(t, res.Content, tt.contains)
			assert.Empty(t, res.ToolCalls)
		})
	}
}
