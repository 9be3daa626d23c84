package scraper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"recipeagent/recipe"
)

const recipeType = "Recipe"

// ExtractRecipeJSONLD returns the first schema.org Recipe object embedded in the page's
// JSON-LD blocks. Objects are looked for at the top level, inside a top-level list and
// inside @graph. Blocks that are not valid JSON are skipped.
func ExtractRecipeJSONLD(html string) (map[string]any, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}

	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if obj, ok := findRecipe(data); ok {
			found = obj
			return false
		}
		return true
	})
	return found, found != nil
}

func findRecipe(data any) (map[string]any, bool) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok && isRecipe(obj) {
				return obj, true
			}
		}
	case map[string]any:
		if isRecipe(v) {
			return v, true
		}
		if graph, ok := v["@graph"].([]any); ok {
			return findRecipe(graph)
		}
	}
	return nil, false
}

func isRecipe(obj map[string]any) bool {
	switch t := obj["@type"].(type) {
	case string:
		return t == recipeType
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == recipeType {
				return true
			}
		}
	}
	return false
}

// ParseRecipe maps a schema.org Recipe object onto a corpus record.
func ParseRecipe(data map[string]any, sourceURL string) recipe.Record {
	rec := recipe.Record{
		Title:       strings.TrimSpace(stringValue(data["name"])),
		Ingredients: stringList(data["recipeIngredient"]),
		Steps:       instructionSteps(data["recipeInstructions"]),
		Nutrition:   map[string]any{},
		TotalTime:   stringValue(data["totalTime"]),
		Servings:    yieldValue(data["recipeYield"]),
		SourceURL:   sourceURL,
	}
	if rec.Ingredients == nil {
		rec.Ingredients = []string{}
	}
	if rec.Steps == nil {
		rec.Steps = []string{}
	}

	if nutrition, ok := data["nutrition"].(map[string]any); ok {
		for k, v := range nutrition {
			if k == "@type" {
				continue
			}
			rec.Nutrition[k] = v
		}
	}
	return rec
}

// instructionSteps flattens recipeInstructions, which may be a single string, a list of
// strings, HowToStep objects, or HowToSection objects wrapping further steps.
func instructionSteps(v any) []string {
	var steps []string
	switch val := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(val); s != "" {
			steps = append(steps, s)
		}
	case []any:
		for _, item := range val {
			steps = append(steps, instructionSteps(item)...)
		}
	case map[string]any:
		if list, ok := val["itemListElement"]; ok {
			return instructionSteps(list)
		}
		if s := strings.TrimSpace(stringValue(val["text"])); s != "" {
			steps = append(steps, s)
		}
	default:
		if s := strings.TrimSpace(fmt.Sprint(val)); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// yieldValue renders recipeYield as text; lists yield their first non-empty entry.
func yieldValue(v any) string {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if s := stringValue(item); s != "" {
				return s
			}
		}
		return ""
	}
	return stringValue(v)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
