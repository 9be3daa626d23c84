package recipeagent

import "time"

type ModelConfig struct {
	Provider    string  `env:"MODEL_PROVIDER,default=ollama"`
	ModelID     string  `env:"MODEL_ID,default=llama3.1"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	MaxIterations      int    `env:"MAX_ITERATIONS,default=5"`
	BaseOllamaEndpoint string `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL,default=https://api.openai.com/v1"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
}

type SearchConfig struct {
	Backend          string        `env:"SEARCH_BACKEND,default=elasticsearch"`
	ElasticsearchURL string        `env:"ELASTICSEARCH_URL,default=http://localhost:9200"`
	Index            string        `env:"SEARCH_INDEX,default=recipes"`
	Size             int           `env:"SEARCH_SIZE,default=3"`
	RequestTimeout   time.Duration `env:"SEARCH_REQUEST_TIMEOUT,default=30s"`
	CorpusPath       string        `env:"RECIPES_PATH,default=data/recipes.jsonl"`
	S3Bucket         string        `env:"ARTIFACTS_S3_BUCKET"`
	S3Key            string        `env:"ARTIFACTS_RECIPES_S3_KEY"`
}

type ScrapeConfig struct {
	IndexURL    string        `env:"SCRAPE_INDEX_URL,default=https://www.allrecipes.com/ingredients-a-z-6740416"`
	UserAgent   string        `env:"SCRAPE_USER_AGENT,default=Mozilla/5.0 (Windows NT 10.0; Win64; x64)"`
	Timeout     time.Duration `env:"SCRAPE_TIMEOUT,default=10s"`
	DataDir     string        `env:"SCRAPE_DATA_DIR,default=data"`
	Parallelism int           `env:"SCRAPE_PARALLELISM,default=4"`
	Delay       time.Duration `env:"SCRAPE_DELAY,default=250ms"`
}

type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL,default=30m"`
	MaxMessages   int           `env:"SESSION_MAX_MESSAGES,default=50"`
	SweepSchedule string        `env:"SESSION_SWEEP_SCHEDULE,default=@every 1m"`
}
