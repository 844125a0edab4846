package nutrition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidasync"
	"vidasync/ingredient"
	"vidasync/macros"
	"vidasync/oracle"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// resolveMisses classifies misses in batches of BatchSize, one goroutine per batch. The result
// has one entry per miss, in submission order, whatever order the batches finish in.
func (e *Engine) resolveMisses(ctx context.Context, misses []ingredient.Phrase) []vidasync.CacheEntry {
	batches := chunk(misses, e.opts.BatchSize)
	slog.Info("ENGINE: Resolving misses", "misses", len(misses), "batches", len(batches))

	results := make([][]vidasync.CacheEntry, len(batches))

	var g errgroup.Group
	if e.opts.MaxConcurrentBatches > 0 {
		g.SetLimit(e.opts.MaxConcurrentBatches)
	}
	for i, batch := range batches {
		g.Go(func() error {
			results[i] = e.resolveBatch(ctx, i+1, batch)
			return nil
		})
	}
	// resolveBatch never returns an error; Wait only joins.
	_ = g.Wait()

	out := make([]vidasync.CacheEntry, 0, len(misses))
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (e *Engine) resolveBatch(ctx context.Context, n int, batch []ingredient.Phrase) []vidasync.CacheEntry {
	ctx, span := e.tracer.Start(ctx, "Engine.resolveBatch", trace.WithAttributes(
		attribute.Int("batch", n),
		attribute.Int("phrases", len(batch)),
	))
	defer span.End()

	phrases := make([]string, len(batch))
	for i, p := range batch {
		phrases[i] = p.Original
	}

	e.m.batches.Add(ctx, 1)
	start := time.Now()
	classifications, err := within(ctx, e.opts.BatchTimeout, func(ctx context.Context) ([]oracle.Classification, error) {
		return e.oracle.Classify(ctx, phrases)
	})
	if err == nil && len(classifications) != len(batch) {
		err = &oracle.ParseError{Reason: fmt.Sprintf("got %d classifications for %d phrases", len(classifications), len(batch))}
	}
	elapsed := time.Since(start)
	e.m.batchDuration.Record(ctx, elapsed.Seconds())

	entry := vidasync.BatchLog{
		Batch:      n,
		Timestamp:  start,
		Phrases:    phrases,
		Outcome:    vidasync.OutcomeClassified,
		DurationMS: elapsed.Milliseconds(),
	}

	if err == nil {
		slog.Info("ENGINE: Batch classified", "batch", n, "phrases", len(batch), "duration_ms", elapsed.Milliseconds())
		e.logBatch(entry)

		out := make([]vidasync.CacheEntry, len(batch))
		for i, p := range batch {
			c := classifications[i]
			out[i] = vidasync.CacheEntry{
				IngredientKey:  p.Key,
				OriginalInput:  p.Original,
				CorrectedInput: c.CorrectedInput,
				Macros:         c.Macros,
				IsValidFood:    c.IsValidFood,
				Source:         vidasync.SourceOracle,
			}
		}
		return out
	}

	reason := failureReason(err)
	slog.Warn("ENGINE: Batch failed; falling back per phrase", "batch", n, "reason", reason, "error", err)
	e.m.batchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	entry.Outcome = vidasync.OutcomeFallback
	entry.Error = err.Error()
	e.logBatch(entry)

	// The batch deadline has passed; each fallback gets its own budget from the request context.
	out := make([]vidasync.CacheEntry, len(batch))
	var g errgroup.Group
	for i, p := range batch {
		g.Go(func() error {
			out[i] = e.fallback(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// fallback estimates one phrase with the legacy prompt, then settles for zero macros.
// Either way the phrase is treated as valid food.
func (e *Engine) fallback(ctx context.Context, p ingredient.Phrase) vidasync.CacheEntry {
	m, err := within(ctx, e.opts.FallbackTimeout, func(ctx context.Context) (vidasync.Macros, error) {
		return e.oracle.EstimateTotals(ctx, p.Original)
	})
	if err != nil {
		slog.Error("ENGINE: Legacy estimate failed; using zero macros", "phrase", p.Original, "error", err)
		e.m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "default")))
		return vidasync.CacheEntry{
			IngredientKey: p.Key,
			OriginalInput: p.Original,
			Macros:        macros.Zero,
			IsValidFood:   true,
			Source:        vidasync.SourceDefault,
		}
	}

	e.m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "legacy")))
	original := p.Original
	return vidasync.CacheEntry{
		IngredientKey:  p.Key,
		OriginalInput:  p.Original,
		CorrectedInput: &original,
		Macros:         m,
		IsValidFood:    true,
		Source:         vidasync.SourceFallback,
	}
}

// within runs fn under a timeout and returns as soon as the deadline passes, even if fn
// ignores its context. An abandoned fn finishes in the background and its result is dropped.
func within[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, oracle.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "oracle_error"
	}
}

// chunk splits s into contiguous slices of at most size elements.
func chunk[T any](s []T, size int) [][]T {
	var out [][]T
	for size < len(s) {
		out = append(out, s[:size:size])
		s = s[size:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}
