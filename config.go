package vidasync

import "time"

type OracleConfig struct {
	Provider       string  `env:"ORACLE_PROVIDER,default=bedrock"`
	ModelID        string  `env:"MODEL_ID"`
	MaxTokens      int32   `env:"MAX_TOKENS,default=1024"`
	Temperature    float32 `env:"TEMPERATURE,default=0.2"`
	TopP           float32 `env:"TOP_P,default=0.9"`
	OllamaEndpoint string  `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	OpenAIAPIKey   string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string  `env:"OPENAI_BASE_URL"`
}

type EngineConfig struct {
	BatchSize            int           `env:"ORACLE_BATCH_SIZE,default=5"`
	BatchTimeout         time.Duration `env:"ORACLE_BATCH_TIMEOUT,default=30s"`
	FallbackTimeout      time.Duration `env:"ORACLE_FALLBACK_TIMEOUT,default=30s"`
	MaxConcurrentBatches int           `env:"ORACLE_MAX_CONCURRENT_BATCHES,default=0"`
	SaveTimeout          time.Duration `env:"CACHE_SAVE_TIMEOUT,default=10s"`
}

type CacheConfig struct {
	Backend         string `env:"CACHE_BACKEND,default=memory"`
	FilePath        string `env:"CACHE_FILE_PATH,default=data/ingredient_cache.jsonl"`
	SQLitePath      string `env:"CACHE_SQLITE_PATH,default=data/ingredient_cache.db"`
	PostgresDSN     string `env:"CACHE_POSTGRES_DSN"`
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	S3Bucket        string `env:"CACHE_S3_BUCKET"`
	S3Prefix        string `env:"CACHE_S3_PREFIX,default=ingredient_cache/"`
}

type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR,default=:8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=15s"`
	SlackWebhookURL string        `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string        `env:"SLACK_CHANNEL,default=#nutrition"`
}
