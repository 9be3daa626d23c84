package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recipeagent/recipe"
	"recipeagent/tools/storage"
)

const (
	fieldTitle       = "title"
	fieldIngredients = "ingredients"
	fieldSteps       = "steps"
	fieldCalories    = "calories"
)

// localFields mirrors the Elasticsearch multi_match fields: title^2, ingredients, steps.
var localFields = []struct {
	name  string
	boost float64
}{
	{fieldTitle, 2},
	{fieldIngredients, 1},
	{fieldSteps, 1},
}

// Local is a Searcher over the JSONL corpus, indexed in memory with bleve on first use.
// It is meant for offline use (Lambda with an S3 corpus, demos, tests) where no
// Elasticsearch node is available.
type Local struct {
	state storage.RecipeState
	size  int

	mu      sync.Mutex
	index   bleve.Index
	mapping *mapping.IndexMappingImpl
	records []recipe.Record
	raw     []json.RawMessage

	tracer trace.Tracer
}

func NewLocal(state storage.RecipeState, size int) *Local {
	if size <= 0 {
		size = DefaultSize
	}
	return &Local{state: state, size: size, tracer: otel.Tracer(tracerName)}
}

func (l *Local) load(ctx context.Context) (bleve.Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.index != nil {
		return l.index, nil
	}

	data, err := l.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe corpus: %w", err)
	}
	records, raw, err := recipe.ReadRawJSONL(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipe corpus: %w", err)
	}

	im := bleve.NewIndexMapping()
	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create local index: %w", err)
	}

	batch := index.NewBatch()
	for i, rec := range records {
		doc := map[string]any{
			fieldTitle:       rec.Title,
			fieldIngredients: rec.Ingredients,
			fieldSteps:       rec.Steps,
		}
		if cal, ok := recipe.ParseAmount(rec.Calories()); ok {
			doc[fieldCalories] = cal
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			return nil, fmt.Errorf("failed to index recipe %d: %w", i+1, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to build local index: %w", err)
	}

	slog.Info("SEARCH: Indexed local corpus", "recipes", len(records))
	l.index = index
	l.mapping = im
	l.records = records
	l.raw = raw
	return index, nil
}

// Search runs the same query shape as the Elasticsearch backend: every query term is
// matched with AUTO fuzziness against title (boosted twice), ingredients and steps, and
// records above maxCalories or without a calories value are excluded.
func (l *Local) Search(ctx context.Context, q string, maxCalories *int) (Results, error) {
	ctx, span := l.tracer.Start(ctx, "search.local", trace.WithAttributes(attribute.String("search.query", q)))
	defer span.End()

	index, err := l.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "corpus load failed")
		return Results{}, err
	}

	terms := l.terms(q)
	if len(terms) == 0 {
		return NoResults(), nil
	}

	req := bleve.NewSearchRequestOptions(buildLocalQuery(terms, maxCalories), l.size, 0, false)
	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "local search failed")
		return Results{}, fmt.Errorf("local search failed: %w", err)
	}

	span.SetAttributes(attribute.Int("search.hits", len(res.Hits)))
	if len(res.Hits) == 0 {
		return NoResults(), nil
	}

	out := Results{
		Recipes: make([]recipe.Record, 0, len(res.Hits)),
		Raw:     make([]json.RawMessage, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(l.records) {
			return Results{}, fmt.Errorf("local index returned unknown document %q", hit.ID)
		}
		out.Recipes = append(out.Recipes, l.records[i])
		out.Raw = append(out.Raw, l.raw[i])
	}
	return out, nil
}

// terms analyzes the query with the analyzer the documents were indexed with, so case,
// punctuation and stop words are treated alike on both sides.
func (l *Local) terms(q string) []string {
	var raw []string
	if a := l.mapping.AnalyzerNamed(l.mapping.DefaultAnalyzer); a != nil {
		for _, tok := range a.Analyze([]byte(q)) {
			raw = append(raw, string(tok.Term))
		}
	} else {
		raw = strings.Fields(strings.ToLower(q))
	}

	seen := make(map[string]bool, len(raw))
	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		if t != "" && !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms
}

func buildLocalQuery(terms []string, maxCalories *int) query.Query {
	should := make([]query.Query, 0, len(terms)*len(localFields))
	for _, f := range localFields {
		for _, term := range terms {
			should = append(should, termQuery(term, f.name, f.boost))
		}
	}
	text := bleve.NewDisjunctionQuery(should...)
	if maxCalories == nil {
		return text
	}

	ceiling := float64(*maxCalories)
	inclusive := true
	calories := bleve.NewNumericRangeInclusiveQuery(nil, &ceiling, nil, &inclusive)
	calories.SetField(fieldCalories)
	return bleve.NewConjunctionQuery(text, calories)
}

func termQuery(term, field string, boost float64) query.Query {
	if n := autoFuzziness(term); n > 0 {
		q := bleve.NewFuzzyQuery(term)
		q.SetField(field)
		q.SetFuzziness(n)
		q.SetBoost(boost)
		return q
	}
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	q.SetBoost(boost)
	return q
}

// autoFuzziness follows Elasticsearch's AUTO setting: exact up to two characters, one
// edit up to five, two edits beyond.
func autoFuzziness(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}
