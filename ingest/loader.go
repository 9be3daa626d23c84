// Package ingest bulk-loads the scraped recipe corpus into Elasticsearch.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"recipeagent/recipe"
	"recipeagent/tools/search"
	"recipeagent/tools/storage"
)

type Config struct {
	Index      string
	Workers    int
	FlushBytes int
	Timeout    time.Duration
}

// Stats summarises one load.
type Stats struct {
	Read    int    `json:"read"`
	Indexed uint64 `json:"indexed"`
	Failed  uint64 `json:"failed"`
}

type Loader struct {
	client *elasticsearch.Client
	state  storage.RecipeState
	cfg    Config
}

func NewLoader(client *elasticsearch.Client, state storage.RecipeState, cfg Config) *Loader {
	if cfg.Index == "" {
		cfg.Index = search.DefaultIndex
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.FlushBytes <= 0 {
		cfg.FlushBytes = 1 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Loader{client: client, state: state, cfg: cfg}
}

// Load reads the corpus and indexes every record. Records the cluster rejects are counted
// in Stats.Failed and do not fail the load.
func (l *Loader) Load(ctx context.Context) (Stats, error) {
	var stats Stats

	if err := l.ping(ctx); err != nil {
		return stats, err
	}

	data, err := l.state.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load recipe corpus: %w", err)
	}
	records, raws, err := recipe.ReadRawJSONL(bytes.NewReader(data))
	if err != nil {
		return stats, fmt.Errorf("failed to parse recipe corpus: %w", err)
	}
	stats.Read = len(records)
	slog.Info("INGEST: Sending recipes to Elasticsearch", "count", len(records), "index", l.cfg.Index)

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        l.client,
		Index:         l.cfg.Index,
		NumWorkers:    l.cfg.Workers,
		FlushBytes:    l.cfg.FlushBytes,
		FlushInterval: 5 * time.Second,
		Timeout:       l.cfg.Timeout,
		OnError: func(ctx context.Context, err error) {
			slog.Error("INGEST: Bulk indexer error", "error", err)
		},
	})
	if err != nil {
		return stats, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	var failed atomic.Uint64
	var addErr error
	for i, rec := range records {
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(raws[i]),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				if err != nil {
					slog.Warn("INGEST: Record failed", "title", rec.Title, "error", err)
					return
				}
				slog.Warn("INGEST: Record rejected", "title", rec.Title, "status", res.Status,
					"type", res.Error.Type, "reason", res.Error.Reason)
			},
		})
		if err != nil {
			addErr = fmt.Errorf("failed to queue record %d: %w", i+1, err)
			break
		}
	}

	closeErr := bi.Close(ctx)
	biStats := bi.Stats()
	stats.Indexed = biStats.NumIndexed
	stats.Failed = failed.Load()

	if err := errors.Join(addErr, closeErr); err != nil {
		return stats, err
	}

	slog.Info("INGEST: Finished", "read", stats.Read, "indexed", stats.Indexed, "failed", stats.Failed)
	return stats, nil
}

func (l *Loader) ping(ctx context.Context) error {
	res, err := l.client.Ping(l.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("cannot connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("cannot connect to elasticsearch: %s", res.Status())
	}
	return nil
}
