package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"vidasync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(key, original string, calories string, valid bool) vidasync.CacheEntry {
	return vidasync.CacheEntry{
		IngredientKey:  vidasync.IngredientKey(key),
		OriginalInput:  original,
		CorrectedInput: &original,
		Macros:         vidasync.Macros{Calories: calories, Protein: "1g", Carbs: "2g", Fat: "3g"},
		IsValidFood:    valid,
	}
}

// storeContract exercises the behaviour every backend shares.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	rows, err := s.Lookup(ctx, []string{"2 ovos"})
	require.NoError(t, err)
	assert.Empty(t, rows, "empty store")

	require.NoError(t, s.Insert(ctx, entry("2 ovos", "2 Ovos", "140 kcal", true)))
	require.NoError(t, s.Insert(ctx, entry("1 banana", "1 banana", "90 kcal", true)))
	require.NoError(t, s.Insert(ctx, entry("2 ovos", "2 ovos", "150 kcal", true)))

	noCorrection := entry("100g de cadeira", "100g de cadeira", "0 kcal", false)
	noCorrection.CorrectedInput = nil
	require.NoError(t, s.Insert(ctx, noCorrection))

	rows, err = s.Lookup(ctx, []string{"2 ovos", "100g de cadeira", "missing"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, vidasync.IngredientKey("2 ovos"), rows[0].IngredientKey)
	assert.Equal(t, "140 kcal", rows[0].Calories, "oldest first")
	assert.Equal(t, "2 Ovos", *rows[0].CorrectedInput)
	assert.NotEmpty(t, rows[0].ID)
	assert.False(t, rows[0].CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now(), rows[0].CreatedAt, time.Minute)

	assert.Equal(t, "150 kcal", rows[1].Calories)

	assert.Equal(t, vidasync.IngredientKey("100g de cadeira"), rows[2].IngredientKey)
	assert.False(t, rows[2].IsValidFood)
	assert.Nil(t, rows[2].CorrectedInput)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_Seeded(t *testing.T) {
	s := NewMemoryStore(entry("1 banana", "1 banana", "90 kcal", true))

	rows, err := s.Lookup(context.Background(), []string{"1 banana"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].ID)
	assert.Equal(t, 1, s.Lookups())
}

func TestMemoryStore_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("store with error", func(t *testing.T) {
		s := NewTestStoreWithError()
		_, err := s.Lookup(ctx, []string{"x"})
		assert.Error(t, err)
		assert.Error(t, s.Insert(ctx, entry("x", "x", "1 kcal", true)))
		assert.Empty(t, s.Rows())
	})

	t.Run("per key insert failure", func(t *testing.T) {
		s := NewMemoryStore()
		boom := errors.New("boom")
		s.FailInsert("1 banana", boom)

		assert.ErrorIs(t, s.Insert(ctx, entry("1 banana", "1 banana", "90 kcal", true)), boom)
		assert.NoError(t, s.Insert(ctx, entry("2 ovos", "2 ovos", "140 kcal", true)))
		assert.Len(t, s.Rows(), 1)
		assert.Equal(t, 2, s.Inserts())
	})
}
