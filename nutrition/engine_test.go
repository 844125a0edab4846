package nutrition

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"vidasync"
	"vidasync/cache"
	"vidasync/cache/storage"
	"vidasync/macros"
	"vidasync/oracle"
	"vidasync/oracle/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEstimator delegates to the offline mock unless a test overrides a call.
type fakeEstimator struct {
	mu       sync.Mutex
	classify func(ctx context.Context, phrases []string) ([]oracle.Classification, error)
	totals   func(ctx context.Context, phrase string) (vidasync.Macros, error)

	classifyCalls [][]string
	totalsCalls   []string
}

func (f *fakeEstimator) Classify(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
	f.mu.Lock()
	f.classifyCalls = append(f.classifyCalls, phrases)
	fn := f.classify
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, phrases)
	}
	return mock.NewEstimator().Classify(ctx, phrases)
}

func (f *fakeEstimator) EstimateTotals(ctx context.Context, phrase string) (vidasync.Macros, error) {
	f.mu.Lock()
	f.totalsCalls = append(f.totalsCalls, phrase)
	fn := f.totals
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, phrase)
	}
	return mock.NewEstimator().EstimateTotals(ctx, phrase)
}

func (f *fakeEstimator) calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.classifyCalls...)
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []vidasync.BatchLog
}

func (l *recordingLogger) LogBatch(entry vidasync.BatchLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *recordingLogger) outcomes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		out = append(out, e.Outcome)
	}
	sort.Strings(out)
	return out
}

func newTestEngine(t *testing.T, store storage.Store, est oracle.Estimator, opts Options) *Engine {
	t.Helper()
	e := NewEngine(cache.NewRepository(store), est, opts)
	t.Cleanup(e.Flush)
	return e
}

func keysOf(rows []vidasync.CacheEntry) []string {
	var out []string
	for _, r := range rows {
		out = append(out, string(r.IngredientKey))
	}
	sort.Strings(out)
	return out
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(cache.NewRepository(storage.NewMemoryStore()), &fakeEstimator{}, Options{})

	assert.Equal(t, defaultBatchSize, e.opts.BatchSize)
	assert.Equal(t, defaultBatchTimeout, e.opts.BatchTimeout)
	assert.Equal(t, defaultFallbackTimeout, e.opts.FallbackTimeout)
	assert.Equal(t, defaultSaveTimeout, e.opts.SaveTimeout)
	assert.NotNil(t, e.opts.Logger)
	assert.NotNil(t, e.tracer)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(vidasync.EngineConfig{BatchSize: 3, BatchTimeout: time.Second, MaxConcurrentBatches: 2})
	assert.Equal(t, 3, opts.BatchSize)
	assert.Equal(t, time.Second, opts.BatchTimeout)
	assert.Equal(t, 2, opts.MaxConcurrentBatches)
}

func TestComputeNutrition_EndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	est := &fakeEstimator{}
	e := newTestEngine(t, store, est, Options{})

	res := e.ComputeNutrition(context.Background(), "2 ovos mexidos, 1 banana")

	assert.Empty(t, res.Error)
	assert.Nil(t, res.InvalidItems)
	assert.Nil(t, res.Corrections)
	require.Len(t, res.Ingredients, 2)
	assert.Equal(t, "2 ovos mexidos", res.Ingredients[0].Name)
	assert.False(t, res.Ingredients[0].Cached)
	assert.Equal(t, "1 banana", res.Ingredients[1].Name)

	require.NotNil(t, res.Nutrition)
	assert.Equal(t, vidasync.Macros{Calories: "230 kcal", Protein: "13g", Carbs: "24g", Fat: "10.3g"}, *res.Nutrition)
	assert.Len(t, est.calls(), 1, "two misses fit in one batch")

	e.Flush()
	assert.Equal(t, []string{"1 banana", "2 ovos mexidos"}, keysOf(store.Rows()))
}

func TestComputeNutrition_AllHitsSkipOracle(t *testing.T) {
	store := storage.NewMemoryStore()
	est := &fakeEstimator{}
	e := newTestEngine(t, store, est, Options{})

	first := e.ComputeNutrition(context.Background(), "2 ovos mexidos, 1 banana")
	e.Flush()
	require.Len(t, est.calls(), 1)

	second := e.ComputeNutrition(context.Background(), "2 Ovos  Mexidos + 1 BANANA")
	assert.Len(t, est.calls(), 1, "no oracle call when every ingredient is cached")
	assert.Equal(t, first.Nutrition, second.Nutrition)
	require.Len(t, second.Ingredients, 2)
	assert.True(t, second.Ingredients[0].Cached)
	assert.True(t, second.Ingredients[1].Cached)

	e.Flush()
	assert.Len(t, store.Rows(), 2, "hits are not written again")
}

func TestComputeNutrition_InvalidFoodRejectsAll(t *testing.T) {
	tests := []struct {
		name    string
		foods   string
		invalid []string
	}{
		{
			name:    "single non-food",
			foods:   "100g de cadeira",
			invalid: []string{"100g de cadeira"},
		},
		{
			name:    "one bad item among valid ones",
			foods:   "1 banana, 100g de cadeira, 2 ovos, 1 celular",
			invalid: []string{"100g de cadeira", "1 celular"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, storage.NewMemoryStore(), &fakeEstimator{}, Options{})

			res := e.ComputeNutrition(context.Background(), tt.foods)

			assert.True(t, res.Rejected())
			assert.Nil(t, res.Nutrition)
			assert.Nil(t, res.Ingredients)
			assert.Nil(t, res.Corrections)
			assert.Equal(t, tt.invalid, res.InvalidItems)
			assert.Empty(t, res.Error)
			assert.Equal(t, macros.Zero, e.Calculate(context.Background(), tt.foods))
		})
	}
}

func TestComputeNutrition_InvalidHitRejects(t *testing.T) {
	store := storage.NewMemoryStore(vidasync.CacheEntry{
		IngredientKey: "100g de cadeira",
		OriginalInput: "100g de cadeira",
		Macros:        macros.Zero,
		IsValidFood:   false,
	})
	est := &fakeEstimator{}
	e := newTestEngine(t, store, est, Options{})

	res := e.ComputeNutrition(context.Background(), "100G de Cadeira")

	assert.Equal(t, []string{"100G de Cadeira"}, res.InvalidItems, "reports the text of this request")
	assert.Empty(t, est.calls())
}

func TestComputeNutrition_NoFood(t *testing.T) {
	for _, foods := range []string{"", "   ", " , ,+ ", "\n\t"} {
		t.Run(foods, func(t *testing.T) {
			store := storage.NewMemoryStore()
			est := &fakeEstimator{}
			e := newTestEngine(t, store, est, Options{})

			res := e.ComputeNutrition(context.Background(), foods)

			assert.Equal(t, ErrNoFood, res.Error)
			assert.Nil(t, res.Nutrition)
			assert.Nil(t, res.InvalidItems)
			assert.Equal(t, 0, store.Lookups(), "no cache round trip")
			assert.Empty(t, est.calls(), "no oracle call")
		})
	}
}

func TestComputeNutrition_HitsBeforeFresh(t *testing.T) {
	store := storage.NewMemoryStore(vidasync.CacheEntry{
		IngredientKey: "1 banana",
		OriginalInput: "1 banana",
		Macros:        vidasync.Macros{Calories: "90 kcal", Protein: "1g", Carbs: "23g", Fat: "0.3g"},
		IsValidFood:   true,
	})
	est := &fakeEstimator{}
	e := newTestEngine(t, store, est, Options{})

	res := e.ComputeNutrition(context.Background(), "2 ovos, 1 banana, 1 maçã")

	require.Len(t, res.Ingredients, 3)
	assert.Equal(t, "1 banana", res.Ingredients[0].Name)
	assert.True(t, res.Ingredients[0].Cached)
	assert.Equal(t, "2 ovos", res.Ingredients[1].Name)
	assert.Equal(t, "1 maçã", res.Ingredients[2].Name)
	assert.Equal(t, [][]string{{"2 ovos", "1 maçã"}}, est.calls())
}

func TestComputeNutrition_DuplicatePhrases(t *testing.T) {
	est := &fakeEstimator{}
	e := newTestEngine(t, storage.NewMemoryStore(), est, Options{})

	res := e.ComputeNutrition(context.Background(), "2 ovos, 1 banana, 2  OVOS")

	require.Len(t, res.Ingredients, 2)
	assert.Equal(t, [][]string{{"2  OVOS", "1 banana"}}, est.calls(), "one entry per key at its first position, with the latest text")
}

func TestComputeNutrition_Corrections(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(t, store, &fakeEstimator{}, Options{})

	res := e.ComputeNutrition(context.Background(), "250ml de arroz, 1 banana")

	require.NotNil(t, res.Nutrition)
	assert.Equal(t, []vidasync.UnitCorrection{{Original: "250ml de arroz", Corrected: "250g de arroz"}}, res.Corrections)
	assert.Equal(t, "250g de arroz", res.Ingredients[0].Name)

	e.Flush()
	res = e.ComputeNutrition(context.Background(), "250ML de arroz")
	require.Len(t, res.Ingredients, 1)
	assert.True(t, res.Ingredients[0].Cached)
	assert.Equal(t, []vidasync.UnitCorrection{{Original: "250ML de arroz", Corrected: "250g de arroz"}}, res.Corrections)
}

func TestComputeNutrition_Batching(t *testing.T) {
	est := &fakeEstimator{}
	e := newTestEngine(t, storage.NewMemoryStore(), est, Options{BatchSize: 5})

	foods := "1 banana, 2 ovos, 1 maçã, 1 pão, 100g de arroz, 100g de feijão, 200ml de leite"
	res := e.ComputeNutrition(context.Background(), foods)

	calls := est.calls()
	require.Len(t, calls, 2)
	sizes := []int{len(calls[0]), len(calls[1])}
	sort.Ints(sizes)
	assert.Equal(t, []int{2, 5}, sizes)

	require.Len(t, res.Ingredients, 7)
	var names []string
	for _, d := range res.Ingredients {
		names = append(names, d.Name)
	}
	assert.Equal(t, strings.Split(foods, ", "), names, "submission order survives concurrent batches")
}

func TestComputeNutrition_BatchTimeoutIsIsolated(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	store := storage.NewMemoryStore()
	logger := &recordingLogger{}
	est := &fakeEstimator{
		classify: func(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
			if phrases[0] == "1 pão" {
				// ignores ctx on purpose: the engine must still move on
				<-release
			}
			return mock.NewEstimator().Classify(ctx, phrases)
		},
		totals: func(ctx context.Context, phrase string) (vidasync.Macros, error) {
			return vidasync.Macros{Calories: "10 kcal", Protein: "1g", Carbs: "1g", Fat: "1g"}, nil
		},
	}
	e := newTestEngine(t, store, est, Options{BatchSize: 2, BatchTimeout: 50 * time.Millisecond, Logger: logger})

	start := time.Now()
	res := e.ComputeNutrition(context.Background(), "2 ovos, 1 banana, 1 pão, 1 maçã")
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NotNil(t, res.Nutrition)
	require.Len(t, res.Ingredients, 4)
	assert.Equal(t, "140 kcal", res.Ingredients[0].Nutrition.Calories, "other batch unaffected")
	assert.Equal(t, "90 kcal", res.Ingredients[1].Nutrition.Calories)
	assert.Equal(t, "10 kcal", res.Ingredients[2].Nutrition.Calories, "timed out batch uses the legacy path")
	assert.Equal(t, "10 kcal", res.Ingredients[3].Nutrition.Calories)
	assert.Equal(t, "250 kcal", res.Nutrition.Calories)
	assert.Nil(t, res.Corrections)

	e.Flush()
	assert.Equal(t, []string{"1 banana", "2 ovos"}, keysOf(store.Rows()), "fallback entries are not cached")
	assert.Equal(t, []string{vidasync.OutcomeClassified, vidasync.OutcomeFallback, vidasync.OutcomeSaved}, logger.outcomes())
}

func TestComputeNutrition_OracleFailures(t *testing.T) {
	tests := []struct {
		name     string
		classify func(ctx context.Context, phrases []string) ([]oracle.Classification, error)
		totals   func(ctx context.Context, phrase string) (vidasync.Macros, error)
		calories string
	}{
		{
			name: "transport error then legacy estimate",
			classify: func(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
				return nil, errors.New("connection reset")
			},
			calories: "90 kcal",
		},
		{
			name: "malformed response then legacy estimate",
			classify: func(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
				return nil, &oracle.ParseError{Reason: "decode array"}
			},
			calories: "90 kcal",
		},
		{
			name: "short response then legacy estimate",
			classify: func(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
				return []oracle.Classification{}, nil
			},
			calories: "90 kcal",
		},
		{
			name: "both paths fail",
			classify: func(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
				return nil, errors.New("boom")
			},
			totals: func(ctx context.Context, phrase string) (vidasync.Macros, error) {
				return vidasync.Macros{}, errors.New("still down")
			},
			calories: "0 kcal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			est := &fakeEstimator{classify: tt.classify, totals: tt.totals}
			e := newTestEngine(t, store, est, Options{})

			res := e.ComputeNutrition(context.Background(), "1 banana")

			require.NotNil(t, res.Nutrition, "oracle faults never reject")
			assert.Equal(t, tt.calories, res.Nutrition.Calories)
			require.Len(t, res.Ingredients, 1)
			assert.Equal(t, "1 banana", res.Ingredients[0].Name)
			assert.Nil(t, res.Corrections)
			assert.Equal(t, []string{"1 banana"}, est.totalsCalls)

			e.Flush()
			assert.Empty(t, store.Rows())
		})
	}
}

func TestComputeNutrition_FallbackTimeout(t *testing.T) {
	est := &fakeEstimator{
		classify: func(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		totals: func(ctx context.Context, phrase string) (vidasync.Macros, error) {
			<-ctx.Done()
			return vidasync.Macros{}, ctx.Err()
		},
	}
	e := newTestEngine(t, storage.NewMemoryStore(), est, Options{BatchTimeout: 20 * time.Millisecond, FallbackTimeout: 20 * time.Millisecond})

	res := e.ComputeNutrition(context.Background(), "1 banana, 2 ovos")

	require.NotNil(t, res.Nutrition)
	assert.Equal(t, macros.Zero, *res.Nutrition)
	assert.Len(t, res.Ingredients, 2)
}

func TestComputeNutrition_CacheUnavailable(t *testing.T) {
	store := storage.NewTestStoreWithError()
	logger := &recordingLogger{}
	est := &fakeEstimator{}
	e := newTestEngine(t, store, est, Options{Logger: logger})

	res := e.ComputeNutrition(context.Background(), "2 ovos, 1 banana")

	require.NotNil(t, res.Nutrition)
	assert.Equal(t, "230 kcal", res.Nutrition.Calories)
	assert.Len(t, est.calls(), 1, "lookup failure degrades to all misses")

	e.Flush()
	assert.Equal(t, 2, store.Inserts(), "every entry is attempted")
	assert.Equal(t, []string{vidasync.OutcomeClassified, vidasync.OutcomeSaveFailed}, logger.outcomes())
}

func TestComputeNutrition_SaveOutlivesRequest(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(t, store, &fakeEstimator{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	res := e.ComputeNutrition(ctx, "1 banana")
	cancel()

	require.NotNil(t, res.Nutrition)
	e.Flush()
	assert.Len(t, store.Rows(), 1, "background write is detached from the request context")
}

func TestCalculate(t *testing.T) {
	e := newTestEngine(t, storage.NewMemoryStore(), &fakeEstimator{}, Options{})

	assert.Equal(t, vidasync.Macros{Calories: "90 kcal", Protein: "1g", Carbs: "23g", Fat: "0.3g"}, e.Calculate(context.Background(), "1 banana"))
	assert.Equal(t, macros.Zero, e.Calculate(context.Background(), ""))
}
