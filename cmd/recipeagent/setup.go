package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/joeshaw/envdecode"

	"recipeagent"
	"recipeagent/coordinator/bedrock"
	"recipeagent/coordinator/mock"
	"recipeagent/coordinator/ollama"
	"recipeagent/coordinator/openai"
	"recipeagent/tools/search"
	"recipeagent/tools/storage"
)

type appConfig struct {
	Model   recipeagent.ModelConfig
	Agent   recipeagent.AgentConfig
	Search  recipeagent.SearchConfig
	Scrape  recipeagent.ScrapeConfig
	Session recipeagent.SessionConfig
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	for _, target := range []any{&cfg.Model, &cfg.Agent, &cfg.Search, &cfg.Scrape, &cfg.Session} {
		if err := envdecode.Decode(target); err != nil {
			return appConfig{}, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	return cfg, nil
}

// newRecipeState reads the corpus from S3 when a bucket and key are configured and from
// the local file otherwise.
func newRecipeState(ctx context.Context, cfg recipeagent.SearchConfig) (storage.RecipeState, error) {
	if cfg.S3Bucket == "" || cfg.S3Key == "" {
		return storage.NewFileRecipeState(cfg.CorpusPath), nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	slog.Info("SETUP: Reading recipe corpus from S3", "bucket", cfg.S3Bucket, "key", cfg.S3Key)
	return storage.NewS3RecipeState(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Key), nil
}

func newElasticClient(cfg recipeagent.SearchConfig) (*elasticsearch.Client, error) {
	return search.NewElasticClient(elasticConfig(cfg))
}

func elasticConfig(cfg recipeagent.SearchConfig) search.ElasticConfig {
	return search.ElasticConfig{
		URL:            cfg.ElasticsearchURL,
		Index:          cfg.Index,
		Size:           cfg.Size,
		RequestTimeout: cfg.RequestTimeout,
	}
}

func newSearcher(ctx context.Context, cfg recipeagent.SearchConfig) (search.Searcher, error) {
	switch strings.ToLower(cfg.Backend) {
	case "elasticsearch", "elastic", "es":
		client, err := newElasticClient(cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("SETUP: Using Elasticsearch search backend", "url", cfg.ElasticsearchURL, "index", cfg.Index)
		return search.NewElastic(client, elasticConfig(cfg)), nil
	case "local":
		state, err := newRecipeState(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("SETUP: Using local search backend", "corpus", cfg.CorpusPath)
		return search.NewLocal(state, cfg.Size), nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}

func newLLMClient(ctx context.Context, model recipeagent.ModelConfig, agent recipeagent.AgentConfig) (recipeagent.LLMClient, error) {
	switch strings.ToLower(model.Provider) {
	case "ollama":
		return ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: agent.BaseOllamaEndpoint,
			ModelID:      model.ModelID,
			Temperature:  model.Temperature,
			TopP:         model.TopP,
			MaxTokens:    model.MaxTokens,
			HTTPClient:   &http.Client{Timeout: 5 * time.Minute},
		})
	case "openai":
		return openai.NewClient(openai.ClientOpts{
			APIKey:      agent.OpenAIAPIKey,
			BaseURL:     agent.OpenAIBaseURL,
			ModelID:     model.ModelID,
			Temperature: model.Temperature,
			TopP:        model.TopP,
			MaxTokens:   model.MaxTokens,
		})
	case "bedrock":
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:     model.ModelID,
			MaxTokens:   model.MaxTokens,
			Temperature: model.Temperature,
			TopP:        model.TopP,
		}), nil
	case "mock":
		return mock.NewLLMClient(true), nil
	case "mock-text":
		return mock.NewLLMClient(false), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", model.Provider)
	}
}
