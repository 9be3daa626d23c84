package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"recipeagent/tools/search"
)

const FindRecipesName = "find_recipes"

// FindRecipes searches the recipe corpus and applies the protein post-filter.
type FindRecipes struct{ searcher search.Searcher }

func NewFindRecipes(searcher search.Searcher) *FindRecipes {
	return &FindRecipes{searcher: searcher}
}

func (t *FindRecipes) Name() string  { return FindRecipesName }
func (t *FindRecipes) Title() string { return "Find Recipes" }
func (t *FindRecipes) Description() string {
	return "Search the recipe database using parameters extracted from the user's request. " +
		"Always call this tool when the user wants recipe suggestions."
}

func (t *FindRecipes) InputSchema() *jsonschema.Schema {
	minBound := 1.0
	minQty := 0.0
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			FieldQueryText: {
				Type: "string",
				Description: "Keywords for the recipe database search. ONLY include ingredient names or dish names, " +
					"e.g. 'chicken', 'corn salsa', 'banana muffins'. Leave out descriptors such as 'high protein', " +
					"'healthy', 'light' or 'recipe'.",
			},
			FieldMaxCalories: {
				Type:    "integer",
				Minimum: &minBound,
				Description: "Upper calorie limit per serving. Extract from mentions like 'under 500 calories'. " +
					"'light' or 'healthy' means 500, 'hungry' or 'big meal' means 1000. Omit when no limit is implied.",
			},
			FieldMinProteinG: {
				Type:    "integer",
				Minimum: &minBound,
				Description: "Minimum protein in grams. 'post workout', 'strength training' or 'leg day' means 30, " +
					"'high protein' means 25. Omit when protein is not relevant.",
			},
			FieldAvailableIngredients: {
				Type: "array",
				Description: "Ingredients the user already has, as a list of objects, " +
					`e.g. [{"name": "corn", "quantity_g": 200}].`,
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"name": {Type: "string", Description: "The food item name, e.g. 'carrot'."},
						"quantity_g": {
							Type:        "number",
							Minimum:     &minQty,
							Description: "Weight in grams. Only set when the user stated an amount; never guess.",
						},
					},
					Required: []string{"name"},
				},
			},
		},
		Required: []string{FieldQueryText},
	}
}

// Run validates the arguments, searches and filters. A *ValidationError is returned for
// bad arguments so callers can tell it apart from a search failure.
func (t *FindRecipes) Run(ctx context.Context, input map[string]any) (string, error) {
	req, err := ParseSearchRequest(input)
	if err != nil {
		return "", err
	}

	results, err := t.Search(ctx, req)
	if err != nil {
		return "", err
	}
	return results.String(), nil
}

// Search runs an already validated request.
func (t *FindRecipes) Search(ctx context.Context, req SearchRequest) (search.Results, error) {
	slog.Info("TOOL: Recipe search triggered",
		"query", req.QueryText,
		"max_calories", optional(req.MaxCalories),
		"min_protein_g", optional(req.MinProteinG),
		"available_ingredients", len(req.AvailableIngredients),
	)

	results, err := t.searcher.Search(ctx, req.QueryText, req.MaxCalories)
	if err != nil {
		return search.Results{}, fmt.Errorf("recipe search failed: %w", err)
	}
	return search.FilterByProtein(results, req.MinProteinG), nil
}

func optional(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
