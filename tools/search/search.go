// Package search queries the indexed recipe corpus and post-filters the hits on
// constraints the index cannot express.
package search

import (
	"context"
	"encoding/json"

	"recipeagent/recipe"
)

const (
	NoResultsMessage      = "No recipes found matching those criteria."
	NoProteinMatchMessage = "No recipes matched the protein requirement."

	DefaultIndex = "recipes"
	DefaultSize  = 3

	tracerName = "recipe-search"
)

// Searcher runs a full-text recipe query, optionally capped at maxCalories per serving.
type Searcher interface {
	Search(ctx context.Context, query string, maxCalories *int) (Results, error)
}

// Results is either a list of recipes or a sentinel message explaining why there are none.
// Raw, when set, holds each recipe's document exactly as stored, index-aligned with
// Recipes; it is what the tool hands back so fields Record does not model are kept.
// A zero Results is not produced by any searcher.
type Results struct {
	Recipes  []recipe.Record
	Raw      []json.RawMessage
	Sentinel string
}

func NoResults() Results      { return Results{Sentinel: NoResultsMessage} }
func NoProteinMatch() Results { return Results{Sentinel: NoProteinMatchMessage} }

// IsSentinel reports whether r carries a message instead of recipes.
func (r Results) IsSentinel() bool { return r.Sentinel != "" }

// String renders the recipes as a JSON array, or the sentinel text.
func (r Results) String() string {
	if r.IsSentinel() {
		return r.Sentinel
	}

	docs := make([]json.RawMessage, 0, len(r.Recipes))
	for i, rec := range r.Recipes {
		if i < len(r.Raw) && len(r.Raw[i]) > 0 {
			docs = append(docs, r.Raw[i])
			continue
		}
		if rec.Nutrition == nil {
			rec.Nutrition = map[string]any{}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return NoResultsMessage
		}
		docs = append(docs, data)
	}

	data, err := json.Marshal(docs)
	if err != nil {
		return NoResultsMessage
	}
	return string(data)
}
