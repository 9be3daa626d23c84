package search

import (
	"encoding/json"

	"recipeagent/recipe"
)

// FilterByProtein keeps recipes whose protein content is at least minProteinG grams.
// A nil threshold leaves results untouched. Protein values that do not parse count as
// zero. When every candidate is dropped the no-protein-match sentinel is returned.
func FilterByProtein(results Results, minProteinG *int) Results {
	if minProteinG == nil || results.IsSentinel() {
		return results
	}

	filtered := make([]recipe.Record, 0, len(results.Recipes))
	var raw []json.RawMessage
	for i, rec := range results.Recipes {
		protein, _ := recipe.ParseAmount(rec.ProteinContent())
		if protein < float64(*minProteinG) {
			continue
		}
		filtered = append(filtered, rec)
		if i < len(results.Raw) {
			raw = append(raw, results.Raw[i])
		}
	}

	if len(filtered) == 0 {
		if len(results.Recipes) == 0 {
			return NoResults()
		}
		return NoProteinMatch()
	}
	return Results{Recipes: filtered, Raw: raw}
}
