package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recipeagent/recipe"
)

// ElasticConfig configures the Elasticsearch connection.
type ElasticConfig struct {
	URL            string
	Index          string
	Size           int
	RequestTimeout time.Duration
	// Transport overrides the HTTP transport; tests point it at an httptest server.
	Transport http.RoundTripper
}

// NewElasticClient builds a client for a single Elasticsearch node.
func NewElasticClient(cfg ElasticConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

// Elastic is a Searcher backed by an Elasticsearch index.
type Elastic struct {
	client  *elasticsearch.Client
	index   string
	size    int
	timeout time.Duration
	tracer  trace.Tracer
}

func NewElastic(client *elasticsearch.Client, cfg ElasticConfig) *Elastic {
	e := &Elastic{
		client:  client,
		index:   cfg.Index,
		size:    cfg.Size,
		timeout: cfg.RequestTimeout,
		tracer:  otel.Tracer(tracerName),
	}
	if e.index == "" {
		e.index = DefaultIndex
	}
	if e.size <= 0 {
		e.size = DefaultSize
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}
	return e
}

// BuildQuery returns the bool query for a search: a fuzzy multi_match over title
// (boosted), ingredients and steps, plus a calories ceiling when one is given.
func BuildQuery(query string, maxCalories *int) map[string]any {
	boolQuery := map[string]any{
		"must": []any{
			map[string]any{
				"multi_match": map[string]any{
					"query":     query,
					"fields":    []string{"title^2", "ingredients", "steps"},
					"fuzziness": "AUTO",
				},
			},
		},
	}
	if maxCalories != nil {
		boolQuery["filter"] = []any{
			map[string]any{
				"range": map[string]any{
					"nutrition.calories": map[string]any{"lte": *maxCalories},
				},
			},
		}
	}
	return map[string]any{"bool": boolQuery}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *Elastic) Search(ctx context.Context, query string, maxCalories *int) (Results, error) {
	ctx, span := e.tracer.Start(ctx, "search.elastic",
		trace.WithAttributes(
			attribute.String("search.index", e.index),
			attribute.String("search.query", query),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(map[string]any{"query": BuildQuery(query, maxCalories)}); err != nil {
		return Results{}, fmt.Errorf("failed to encode search body: %w", err)
	}

	if maxCalories != nil {
		slog.Debug("SEARCH: Querying elasticsearch", "index", e.index, "query", query, "max_calories", *maxCalories)
	} else {
		slog.Debug("SEARCH: Querying elasticsearch", "index", e.index, "query", query)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&body),
		e.client.Search.WithSize(e.size),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search request failed")
		return Results{}, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		err := fmt.Errorf("elasticsearch search returned %s: %s", res.Status(), bytes.TrimSpace(raw))
		span.RecordError(err)
		span.SetStatus(codes.Error, "search returned error status")
		return Results{}, err
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		err = fmt.Errorf("failed to decode search response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "search response undecodable")
		return Results{}, err
	}

	span.SetAttributes(attribute.Int("search.hits", len(decoded.Hits.Hits)))
	if len(decoded.Hits.Hits) == 0 {
		return NoResults(), nil
	}

	recipes := make([]recipe.Record, 0, len(decoded.Hits.Hits))
	raw := make([]json.RawMessage, 0, len(decoded.Hits.Hits))
	for i, hit := range decoded.Hits.Hits {
		var rec recipe.Record
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			err = fmt.Errorf("failed to decode hit %d: %w", i, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "search hit undecodable")
			return Results{}, err
		}
		recipes = append(recipes, rec)
		raw = append(raw, hit.Source)
	}
	return Results{Recipes: recipes, Raw: raw}, nil
}
