// Package nutrition turns free-text food lists into summed macros. It splits the text into
// ingredients, serves what it can from the ingredient cache, resolves the rest with batched
// oracle calls and reconciles both into one result.
package nutrition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidasync"
	"vidasync/ingredient"
	"vidasync/macros"
	"vidasync/oracle"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoFood is the structural error returned when the text holds no ingredient.
const ErrNoFood = "no food provided"

const (
	defaultBatchSize       = 5
	defaultBatchTimeout    = 30 * time.Second
	defaultFallbackTimeout = 30 * time.Second
	defaultSaveTimeout     = 10 * time.Second
)

type cacheRepository interface {
	LookupBatch(ctx context.Context, keys []vidasync.IngredientKey) map[vidasync.IngredientKey]vidasync.CacheEntry
	SaveBatch(ctx context.Context, entries []vidasync.CacheEntry) error
}

type Options struct {
	BatchSize       int
	BatchTimeout    time.Duration
	FallbackTimeout time.Duration
	SaveTimeout     time.Duration
	// MaxConcurrentBatches caps in-flight oracle batches per request; 0 means one goroutine per batch.
	MaxConcurrentBatches int

	Logger vidasync.CalculationLogger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// OptionsFromConfig maps the environment configuration onto engine options.
func OptionsFromConfig(cfg vidasync.EngineConfig) Options {
	return Options{
		BatchSize:            cfg.BatchSize,
		BatchTimeout:         cfg.BatchTimeout,
		FallbackTimeout:      cfg.FallbackTimeout,
		SaveTimeout:          cfg.SaveTimeout,
		MaxConcurrentBatches: cfg.MaxConcurrentBatches,
	}
}

type instruments struct {
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	batches       metric.Int64Counter
	batchFailures metric.Int64Counter
	fallbacks     metric.Int64Counter
	batchDuration metric.Float64Histogram
	rejected      metric.Int64Counter
}

// Engine computes nutrition for food lists. It is safe for concurrent use.
type Engine struct {
	cache  cacheRepository
	oracle oracle.Estimator
	opts   Options
	tracer trace.Tracer
	m      instruments

	// pending tracks background cache writes.
	pending sync.WaitGroup
}

func NewEngine(cache cacheRepository, estimator oracle.Estimator, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = defaultBatchTimeout
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = defaultFallbackTimeout
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	if opts.Logger == nil {
		opts.Logger = vidasync.NewNoOpCalculationLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(vidasync.TracerNameEngine)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(vidasync.TracerNameEngine)
	}

	meter := opts.Meter
	var m instruments
	m.cacheHits, _ = meter.Int64Counter("cache_hits_total",
		metric.WithDescription("Ingredients served from the cache"))
	m.cacheMisses, _ = meter.Int64Counter("cache_misses_total",
		metric.WithDescription("Ingredients sent to the oracle"))
	m.batches, _ = meter.Int64Counter("oracle_batches_total",
		metric.WithDescription("Oracle batches dispatched"))
	m.batchFailures, _ = meter.Int64Counter("oracle_batch_failures_total",
		metric.WithDescription("Oracle batches abandoned for the legacy fallback, by reason"))
	m.fallbacks, _ = meter.Int64Counter("oracle_fallbacks_total",
		metric.WithDescription("Per-phrase fallbacks, by outcome"))
	m.batchDuration, _ = meter.Float64Histogram("oracle_batch_duration_seconds",
		metric.WithDescription("Time spent waiting on one oracle batch"),
		metric.WithUnit("s"))
	m.rejected, _ = meter.Int64Counter("requests_rejected_total",
		metric.WithDescription("Calculations rejected, by reason"))

	return &Engine{
		cache:  cache,
		oracle: estimator,
		opts:   opts,
		tracer: opts.Tracer,
		m:      m,
	}
}

// ComputeNutrition is the single entry point of the engine. It never fails: cache and oracle
// faults degrade to best-effort values, and the only rejections are an empty list (Error set)
// and non-food items (InvalidItems set).
func (e *Engine) ComputeNutrition(ctx context.Context, foods string) vidasync.AggregateResult {
	ctx, span := e.tracer.Start(ctx, "Engine.ComputeNutrition")
	defer span.End()

	slog.Info("ENGINE: Computing nutrition", "foods", foods)

	phrases := ingredient.Index(ingredient.Split(foods))
	if len(phrases) == 0 {
		slog.Warn("ENGINE: No food provided")
		e.m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "empty_input")))
		span.SetStatus(codes.Error, ErrNoFood)
		return vidasync.AggregateResult{Error: ErrNoFood}
	}
	span.SetAttributes(attribute.Int("ingredients", len(phrases)))

	found := e.cache.LookupBatch(ctx, ingredient.Keys(phrases))

	var (
		hits   []hit
		misses []ingredient.Phrase
	)
	for _, p := range phrases {
		if row, ok := found[p.Key]; ok {
			slog.Info("ENGINE: Cache hit", "key", p.Key, "calories", row.Calories)
			hits = append(hits, hit{original: p.Original, entry: row})
			continue
		}
		slog.Info("ENGINE: Cache miss", "key", p.Key)
		misses = append(misses, p)
	}
	e.m.cacheHits.Add(ctx, int64(len(hits)))
	e.m.cacheMisses.Add(ctx, int64(len(misses)))
	span.SetAttributes(attribute.Int("cache.hits", len(hits)), attribute.Int("cache.misses", len(misses)))

	var fresh []vidasync.CacheEntry
	if len(misses) > 0 {
		fresh = e.resolveMisses(ctx, misses)
		e.saveInBackground(ctx, fresh)
	}

	valid, corrections, invalid := reconcile(hits, fresh)
	if len(invalid) > 0 {
		slog.Warn("ENGINE: Invalid items found; rejecting the whole list", "invalid", invalid)
		e.m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_food")))
		return vidasync.AggregateResult{InvalidItems: invalid}
	}

	items := make([]vidasync.Macros, len(valid))
	cached := 0
	for i, d := range valid {
		items[i] = d.Nutrition
		if d.Cached {
			cached++
		}
	}
	total := macros.Sum(items)

	slog.Info("ENGINE: Nutrition computed",
		"ingredients", len(valid),
		"corrections", len(corrections),
		"cached", cached,
		"calories", total.Calories,
	)

	return vidasync.AggregateResult{
		Nutrition:   &total,
		Ingredients: valid,
		Corrections: corrections,
	}
}

// Calculate returns only the summed macros, or zero macros when the list was rejected.
func (e *Engine) Calculate(ctx context.Context, foods string) vidasync.Macros {
	res := e.ComputeNutrition(ctx, foods)
	if res.Nutrition == nil {
		return macros.Zero
	}
	return *res.Nutrition
}

// Flush blocks until every background cache write has finished.
func (e *Engine) Flush() {
	e.pending.Wait()
}

// saveInBackground writes oracle classifications to the cache without holding up the response.
// Fallback and default entries are never cached.
func (e *Engine) saveInBackground(ctx context.Context, fresh []vidasync.CacheEntry) {
	var entries []vidasync.CacheEntry
	for _, f := range fresh {
		if f.Source == vidasync.SourceOracle {
			entries = append(entries, f)
		}
	}
	if len(entries) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	e.pending.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, e.opts.SaveTimeout)
		defer cancel()
		ctx, span := e.tracer.Start(ctx, "Engine.saveBatch")
		defer span.End()

		start := time.Now()
		err := e.cache.SaveBatch(ctx, entries)

		entry := vidasync.BatchLog{
			Timestamp:  start,
			Phrases:    originals(entries),
			Outcome:    vidasync.OutcomeSaved,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			slog.Error("ENGINE: Background cache write failed", "entries", len(entries), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "cache write failed")
			entry.Outcome = vidasync.OutcomeSaveFailed
			entry.Error = err.Error()
		}
		e.logBatch(entry)
	})
}

func (e *Engine) logBatch(entry vidasync.BatchLog) {
	if err := e.opts.Logger.LogBatch(entry); err != nil {
		slog.Warn("ENGINE: Failed to record batch log", "error", err)
	}
}

func originals(entries []vidasync.CacheEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.OriginalInput
	}
	return out
}
