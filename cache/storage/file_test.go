package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"vidasync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	storeContract(t, NewFileStore(filepath.Join(t.TempDir(), "cache.jsonl")))
}

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nonexistent.jsonl"))

	rows, err := s.Lookup(context.Background(), []string{"2 ovos"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFileStore_CorruptLineIsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"ingredient_key\":\"a\"}\nnot json\n{\"ingredient_key\":\"b\"}\n"), 0o644))

	rows, err := NewFileStore(path).Lookup(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keysOf(rows))
}

func TestFileStore_TornTrailingLine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"ingredient_key\":\"a\"}\n{\"ingredient_ke"), 0o644))
	s := NewFileStore(path)

	rows, err := s.Lookup(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keysOf(rows))

	require.NoError(t, s.Insert(ctx, entry("b", "1 banana", "90 kcal", true)))

	rows, err = s.Lookup(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keysOf(rows), "the new row is not glued onto the torn fragment")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func keysOf(rows []vidasync.CacheEntry) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r.IngredientKey)
	}
	return out
}
