package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joeshaw/envdecode"

	"vidasync"
	"vidasync/bootstrap"
	"vidasync/cache"
	"vidasync/nutrition"
)

type Params struct {
	Foods string `json:"foods"`
}

func main() {
	var engine *nutrition.Engine

	fn := func(ctx context.Context, params Params) (vidasync.AggregateResult, error) {
		if engine == nil {
			e, err := newEngine(ctx)
			if err != nil {
				slog.Error("SETUP: Failed to create engine", "error", err)
				return vidasync.AggregateResult{}, err
			}
			engine = e
		}

		res := engine.ComputeNutrition(ctx, params.Foods)
		// the execution environment may freeze once the handler returns
		engine.Flush()
		if err := vidasync.ForceFlushOtel(ctx); err != nil {
			slog.Error("SHUTDOWN: Failed to flush OpenTelemetry", "error", err)
		}
		return res, nil
	}

	lambda.Start(fn)
}

func newEngine(ctx context.Context) (*nutrition.Engine, error) {
	var (
		oracleConfig vidasync.OracleConfig
		engineConfig vidasync.EngineConfig
		cacheConfig  vidasync.CacheConfig
	)
	for _, cfg := range []any{&oracleConfig, &engineConfig, &cacheConfig} {
		if err := envdecode.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	// The providers live as long as the execution environment; each invocation force-flushes them
	// instead of shutting them down.
	if _, err := vidasync.InitOtel(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	estimator, err := bootstrap.NewEstimator(ctx, oracleConfig)
	if err != nil {
		return nil, err
	}
	store, _, err := bootstrap.NewCacheStore(ctx, cacheConfig)
	if err != nil {
		return nil, err
	}
	slog.Info("SETUP: Engine initialized", "provider", oracleConfig.Provider, "cache", cacheConfig.Backend)

	opts := nutrition.OptionsFromConfig(engineConfig)
	opts.Logger = vidasync.NewStdoutCalculationLogger()
	return nutrition.NewEngine(cache.NewRepository(store), estimator, opts), nil
}
