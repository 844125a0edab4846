package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidasync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSupabaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "https://abc.supabase.co", want: "https://abc.supabase.co/rest/v1"},
		{raw: "  abc.supabase.co//  ", want: "https://abc.supabase.co/rest/v1"},
		{raw: "http://localhost:54321/", want: "http://localhost:54321/rest/v1"},
		{raw: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeSupabaseURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPostgRESTStore_MissingKey(t *testing.T) {
	_, err := NewPostgRESTStore("abc.supabase.co", " ", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
}

func TestInFilter(t *testing.T) {
	assert.Equal(t, `in.("2 ovos","1 banana")`, inFilter([]string{"2 ovos", "1 banana"}))
	assert.Equal(t, `in.("pão \"francês\"")`, inFilter([]string{`pão "francês"`}))
}

func TestPostgRESTStore(t *testing.T) {
	var inserted []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/ingredient_cache", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))

		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "*", r.URL.Query().Get("select"))
			assert.Equal(t, `in.("2 ovos","1 banana")`, r.URL.Query().Get("ingredient_key"))
			assert.Equal(t, "created_at.asc", r.URL.Query().Get("order"))
			_, _ = w.Write([]byte(`[
				{"id": 7, "ingredient_key": "2 ovos", "original_input": "2 ovos", "corrected_input": null, "calories": "140 kcal", "protein": "12g", "carbs": "1g", "fat": "10g", "is_valid_food": true, "created_at": "2025-01-02T10:00:00.123456+00:00"},
				{"id": "b1", "ingredient_key": "1 banana", "original_input": "1 Banana", "corrected_input": "1 banana", "calories": "90 kcal", "protein": "1g", "carbs": "23g", "fat": "0.3g", "is_valid_food": true, "created_at": "2025-01-02T10:00:01"}
			]`))

		case http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			var row map[string]any
			assert.NoError(t, json.Unmarshal(b, &row))
			inserted = append(inserted, row)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("[]"))
		}
	}))
	defer srv.Close()

	s, err := NewPostgRESTStore(srv.URL+"/", "anon", srv.Client())
	require.NoError(t, err)

	rows, err := s.Lookup(context.Background(), []string{"2 ovos", "1 banana"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[0].ID)
	assert.Nil(t, rows[0].CorrectedInput)
	assert.Equal(t, 2025, rows[0].CreatedAt.Year())
	assert.Equal(t, "1 banana", *rows[1].CorrectedInput)
	assert.Equal(t, "0.3g", rows[1].Fat)
	assert.False(t, rows[1].CreatedAt.IsZero())

	require.NoError(t, s.Insert(context.Background(), vidasync.CacheEntry{
		ID:            "ignored",
		IngredientKey: "1 maçã",
		OriginalInput: "1 maçã",
		Macros:        vidasync.Macros{Calories: "52 kcal", Protein: "0.3g", Carbs: "14g", Fat: "0.2g"},
		IsValidFood:   true,
	}))
	require.Len(t, inserted, 1)
	assert.Equal(t, "1 maçã", inserted[0]["ingredient_key"])
	assert.Equal(t, true, inserted[0]["is_valid_food"])
	assert.NotContains(t, inserted[0], "id")
	assert.NotContains(t, inserted[0], "created_at")
}

func TestPostgRESTStore_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Invalid API key"}`))
	}))
	defer srv.Close()

	s, err := NewPostgRESTStore(srv.URL, "bad", srv.Client())
	require.NoError(t, err)

	_, err = s.Lookup(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")

	err = s.Insert(context.Background(), vidasync.CacheEntry{IngredientKey: "x"})
	assert.Error(t, err)
}
