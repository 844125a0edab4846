package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vidasync"
	"vidasync/bootstrap"
	"vidasync/cache"
	"vidasync/nutrition"
	"vidasync/slack"
)

func main() {
	dump := flag.Bool("dump", false, "spew the full result to stderr")
	logCalc := flag.Bool("log", false, "write the batch log to ./logs")
	postSlack := flag.Bool("slack", false, "post the result to SLACK_WEBHOOK_URL")
	flag.Parse()

	foods := strings.Join(flag.Args(), " ")
	if foods == "" {
		foods = "2 ovos mexidos, 1 banana, 250ml de arroz"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("SETUP: Failed to load .env", "error", err)
	}

	var (
		oracleConfig vidasync.OracleConfig
		engineConfig vidasync.EngineConfig
		cacheConfig  vidasync.CacheConfig
		serverConfig vidasync.ServerConfig
	)
	for _, cfg := range []any{&oracleConfig, &engineConfig, &cacheConfig, &serverConfig} {
		if err := envdecode.Decode(cfg); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}
	}

	ctx := context.Background()

	otelShutdown, err := vidasync.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	estimator, err := bootstrap.NewEstimator(ctx, oracleConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create oracle", "error", err)
		return
	}
	store, closeStore, err := bootstrap.NewCacheStore(ctx, cacheConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create cache store", "error", err)
		return
	}
	defer closeStore() // nolint: errcheck

	opts := nutrition.OptionsFromConfig(engineConfig)
	if *logCalc {
		logger, cleanup, err := newCalculationLogger(oracleConfig.ModelID)
		if err != nil {
			slog.Error("SETUP: Failed to create calculation logger", "error", err)
			return
		}
		defer func() {
			if err := cleanup(); err != nil {
				slog.Error("Failed to flush calculation log", "error", err)
			}
		}()
		opts.Logger = logger
	}
	engine := nutrition.NewEngine(cache.NewRepository(store), estimator, opts)

	ctx, span := otel.Tracer(vidasync.TracerNameEngine).Start(ctx, "cli", trace.WithAttributes(
		attribute.String("oracle.provider", oracleConfig.Provider),
		attribute.String("cache.backend", cacheConfig.Backend),
	))
	res := engine.ComputeNutrition(ctx, foods)
	span.End()
	engine.Flush()

	if *dump {
		vidasync.Dump(os.Stderr, res)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		slog.Error("RESULT: Failed to encode result", "error", err)
		return
	}
	fmt.Println(string(out))

	if *postSlack {
		if serverConfig.SlackWebhookURL == "" {
			slog.Error("RESULT: SLACK_WEBHOOK_URL is not set")
			return
		}
		client := slack.NewClient(serverConfig.SlackWebhookURL, http.DefaultClient)
		if err := client.PostResult(ctx, serverConfig.SlackChannel, foods, res); err != nil {
			slog.Error("Failed to post result to Slack", "error", err)
		}
	}
}

func newCalculationLogger(modelID string) (vidasync.CalculationLogger, func() error, error) {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(vidasync.NewCalculationLogFilePath(modelID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := vidasync.NewFileCalculationLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
