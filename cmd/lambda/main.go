package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"recipeagent"
	"recipeagent/coordinator"
	"recipeagent/coordinator/bedrock"
	"recipeagent/tools"
	"recipeagent/tools/search"
	"recipeagent/tools/storage"
)

type Params struct {
	Question string `json:"question"`
}

type Results struct {
	Answer     string `json:"answer"`
	State      string `json:"state"`
	Iterations int    `json:"iterations"`
}

type handler struct {
	llm           recipeagent.LLMClient
	registry      recipeagent.ToolProvider
	maxIterations int
	logger        recipeagent.CoordinationLogger
}

func (h *handler) handle(ctx context.Context, params Params) (Results, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return Results{}, fmt.Errorf("question is required")
	}

	result, err := coordinator.NewCoordinator(h.llm, h.registry, h.maxIterations, h.logger, nil, nil).Run(ctx, question)
	if err != nil {
		slog.Error("RESULT: Error handling question", "error", err)
		return Results{}, err
	}

	return Results{
		Answer:     result.Answer,
		State:      result.State.String(),
		Iterations: result.Iterations,
	}, nil
}

func main() {
	ctx := context.Background()

	var modelConfig recipeagent.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}
	var agentConfig recipeagent.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}
	var searchConfig recipeagent.SearchConfig
	if err := envdecode.Decode(&searchConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		log.Fatalf("SETUP: Failed to load AWS config: %s", err)
	}

	searcher, err := newSearcher(awsCfg, searchConfig)
	if err != nil {
		log.Fatalf("SETUP: Failed to create searcher: %s", err)
	}
	registry, err := tools.NewRegistry(searcher)
	if err != nil {
		log.Fatalf("SETUP: Failed to create tool registry: %s", err)
	}

	llm := bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})

	otelShutdown, err := recipeagent.InitOtel(ctx)
	if err != nil {
		log.Fatalf("SETUP: Failed to initialize OpenTelemetry: %s", err)
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	h := &handler{
		llm:           llm,
		registry:      registry,
		maxIterations: agentConfig.MaxIterations,
		logger:        recipeagent.NewStdoutCoordinationLogger(),
	}
	slog.Info("SETUP: Lambda handler ready", "model_id", modelConfig.ModelID, "search_backend", searchConfig.Backend)

	lambda.Start(h.handle)
}

// newSearcher uses Elasticsearch when configured and otherwise searches the corpus kept
// in S3, which must then be named by ARTIFACTS_S3_BUCKET and ARTIFACTS_RECIPES_S3_KEY.
func newSearcher(awsCfg aws.Config, cfg recipeagent.SearchConfig) (search.Searcher, error) {
	if strings.EqualFold(cfg.Backend, "elasticsearch") {
		ecfg := search.ElasticConfig{
			URL:            cfg.ElasticsearchURL,
			Index:          cfg.Index,
			Size:           cfg.Size,
			RequestTimeout: cfg.RequestTimeout,
		}
		client, err := search.NewElasticClient(ecfg)
		if err != nil {
			return nil, err
		}
		return search.NewElastic(client, ecfg), nil
	}

	if cfg.S3Bucket == "" || cfg.S3Key == "" {
		return nil, fmt.Errorf("missing S3 config: ARTIFACTS_S3_BUCKET and ARTIFACTS_RECIPES_S3_KEY must be set")
	}
	state := storage.NewS3RecipeState(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Key)
	return search.NewLocal(state, cfg.Size), nil
}
