// Package bootstrap builds the oracle and cache backends named by the environment configuration.
// It is shared by the server, lambda and cli commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"vidasync"
	"vidasync/cache/storage"
	"vidasync/oracle"
	"vidasync/oracle/bedrock"
	"vidasync/oracle/mock"
	"vidasync/oracle/ollama"
	"vidasync/oracle/openai"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	ProviderBedrock = "bedrock"
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderMock    = "mock"

	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendS3       = "s3"
)

// loadAWSConfig is swapped in tests so no credentials chain is consulted.
var loadAWSConfig = func(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
}

// NewEstimator returns the oracle selected by cfg.Provider.
func NewEstimator(ctx context.Context, cfg vidasync.OracleConfig) (oracle.Estimator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	slog.Info("SETUP: Creating oracle", "provider", provider, "model", cfg.ModelID)

	switch provider {
	case ProviderBedrock, "":
		awsCfg, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.Options{
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		}), nil

	case ProviderOllama:
		c, err := ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: cfg.OllamaEndpoint,
			ModelID:      cfg.ModelID,
			HTTPClient:   http.DefaultClient,
		})
		if err != nil {
			return nil, err
		}
		return c, nil

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, openai.Options{
			ModelID:     cfg.ModelID,
			MaxTokens:   int(cfg.MaxTokens),
			Temperature: cfg.Temperature,
		}), nil

	case ProviderMock:
		return mock.NewEstimator(), nil

	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// NewCacheStore returns the store selected by cfg.Backend and a func that releases it.
func NewCacheStore(ctx context.Context, cfg vidasync.CacheConfig) (storage.Store, func() error, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	slog.Info("SETUP: Creating cache store", "backend", backend)
	noop := func() error { return nil }

	switch backend {
	case BackendMemory, "":
		return storage.NewMemoryStore(), noop, nil

	case BackendFile:
		return storage.NewFileStore(cfg.FilePath), noop, nil

	case BackendSQLite:
		s, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("CACHE_POSTGRES_DSN is not set")
		}
		s, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case BackendSupabase:
		s, err := storage.NewPostgRESTStore(cfg.SupabaseURL, cfg.SupabaseAnonKey, http.DefaultClient)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, nil, fmt.Errorf("CACHE_S3_BUCKET is not set")
		}
		awsCfg, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Credentials reports which secrets are configured, without their values.
func Credentials(oc vidasync.OracleConfig, cc vidasync.CacheConfig) map[string]bool {
	return map[string]bool{
		"openai":   oc.OpenAIAPIKey != "",
		"supabase": cc.SupabaseURL != "" && cc.SupabaseAnonKey != "",
		"postgres": cc.PostgresDSN != "",
		"s3":       cc.S3Bucket != "",
	}
}
