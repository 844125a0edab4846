package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"vidasync"
	"vidasync/bootstrap"
	"vidasync/cache"
	"vidasync/httpapi"
	"vidasync/nutrition"
)

func main() {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := vidasync.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
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
	defer func() {
		if err := closeStore(); err != nil {
			slog.Error("SETUP: Failed to close cache store", "error", err)
		}
	}()

	opts := nutrition.OptionsFromConfig(engineConfig)
	opts.Logger = vidasync.NewStdoutCalculationLogger()
	engine := nutrition.NewEngine(cache.NewRepository(store), estimator, opts)

	router := httpapi.NewRouter(engine, httpapi.Info{
		OracleProvider: oracleConfig.Provider,
		OracleModel:    oracleConfig.ModelID,
		CacheBackend:   cacheConfig.Backend,
		Credentials:    bootstrap.Credentials(oracleConfig, cacheConfig),
	})

	srv := &http.Server{
		Addr:    serverConfig.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("SETUP: HTTP server listening", "addr", serverConfig.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("SHUTDOWN: Signal received")
	case err := <-errCh:
		slog.Error("SHUTDOWN: Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("SHUTDOWN: HTTP server shutdown failed", "error", err)
	}

	slog.Info("SHUTDOWN: Waiting for pending cache writes")
	engine.Flush()
}
