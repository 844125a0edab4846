// Package cache maps ingredient keys to previously classified nutrition rows.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidasync"
	"vidasync/cache/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Repository wraps a storage.Store with the cache's read and write policy: reads never fail,
// writes are independent per entry.
type Repository struct {
	store storage.Store

	lookupFailures metric.Int64Counter
	writeFailures  metric.Int64Counter
	lookupDuration metric.Float64Histogram
}

func NewRepository(store storage.Store) *Repository {
	meter := otel.Meter(vidasync.TracerNameCache)

	lookupFailures, _ := meter.Int64Counter(
		"cache_lookup_failures_total",
		metric.WithDescription("Cache lookups that failed and were treated as a total miss"),
	)
	writeFailures, _ := meter.Int64Counter(
		"cache_write_failures_total",
		metric.WithDescription("Cache rows that could not be written"),
	)
	lookupDuration, _ := meter.Float64Histogram(
		"cache_lookup_duration_seconds",
		metric.WithDescription("Duration of batched cache lookups"),
		metric.WithUnit("s"),
	)

	return &Repository{
		store:          store,
		lookupFailures: lookupFailures,
		writeFailures:  writeFailures,
		lookupDuration: lookupDuration,
	}
}

// LookupBatch fetches every key in one round trip. A failing store yields an empty map, which
// the caller treats as all misses. When a key has several rows the oldest wins.
func (r *Repository) LookupBatch(ctx context.Context, keys []vidasync.IngredientKey) map[vidasync.IngredientKey]vidasync.CacheEntry {
	out := make(map[vidasync.IngredientKey]vidasync.CacheEntry, len(keys))
	if len(keys) == 0 {
		return out
	}

	ctx, span := otel.Tracer(vidasync.TracerNameCache).Start(ctx, "Repository.LookupBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("cache.keys", len(keys)))

	raw := make([]string, len(keys))
	for i, k := range keys {
		raw[i] = string(k)
	}

	start := time.Now()
	rows, err := r.store.Lookup(ctx, raw)
	r.lookupDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Error("CACHE: Lookup failed; treating every key as a miss", "keys", len(keys), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		r.lookupFailures.Add(ctx, 1)
		return out
	}

	for _, row := range rows {
		if _, seen := out[row.IngredientKey]; seen {
			continue
		}
		row.Source = vidasync.SourceCache
		out[row.IngredientKey] = row
	}

	slog.Info("CACHE: Lookup", "keys", len(keys), "rows", len(rows), "hits", len(out))
	span.SetAttributes(attribute.Int("cache.hits", len(out)))
	return out
}

// SaveBatch inserts each entry on its own; one failure does not stop the rest. The joined
// errors are for reporting only.
func (r *Repository) SaveBatch(ctx context.Context, entries []vidasync.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var errs []error
	for _, e := range entries {
		if err := r.store.Insert(ctx, e); err != nil {
			slog.Warn("CACHE: Failed to save ingredient", "key", e.IngredientKey, "error", err)
			r.writeFailures.Add(ctx, 1)
			errs = append(errs, fmt.Errorf("save %q: %w", e.IngredientKey, err))
		}
	}

	slog.Info("CACHE: Saved batch", "entries", len(entries), "failed", len(errs))
	return errors.Join(errs...)
}
