package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidasync"
)

const postgrestTable = "ingredient_cache"

// PostgRESTStore talks to a Supabase project's REST API.
type PostgRESTStore struct {
	base       string
	apiKey     string
	httpClient vidasync.HTTPClient
}

// NormalizeSupabaseURL trims the project URL, drops trailing slashes, defaults the scheme to
// https and appends the REST prefix.
func NormalizeSupabaseURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	u = strings.TrimRight(u, "/")
	if u == "" {
		return "", errors.New("SUPABASE_URL is not set")
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u + "/rest/v1", nil
}

func NewPostgRESTStore(projectURL, apiKey string, httpClient vidasync.HTTPClient) (*PostgRESTStore, error) {
	base, err := NormalizeSupabaseURL(projectURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("SUPABASE_ANON_KEY is not set")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	slog.Info("CACHE: Configured Supabase base URL", "base", base)
	return &PostgRESTStore{base: base, apiKey: apiKey, httpClient: httpClient}, nil
}

type postgrestRow struct {
	ID             any     `json:"id,omitempty"`
	IngredientKey  string  `json:"ingredient_key"`
	OriginalInput  string  `json:"original_input"`
	CorrectedInput *string `json:"corrected_input"`
	Calories       string  `json:"calories"`
	Protein        string  `json:"protein"`
	Carbs          string  `json:"carbs"`
	Fat            string  `json:"fat"`
	IsValidFood    bool    `json:"is_valid_food"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// inFilter renders keys as a PostgREST in.(...) list with every value double-quoted.
func inFilter(keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		k = strings.ReplaceAll(k, `\`, `\\`)
		k = strings.ReplaceAll(k, `"`, `\"`)
		quoted[i] = `"` + k + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

func (s *PostgRESTStore) Lookup(ctx context.Context, keys []string) ([]vidasync.CacheEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("ingredient_key", inFilter(keys))
	q.Set("order", "created_at.asc")

	body, err := s.do(ctx, http.MethodGet, "/"+postgrestTable+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var rows []postgrestRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", postgrestTable, err)
	}

	out := make([]vidasync.CacheEntry, 0, len(rows))
	for _, r := range rows {
		e := vidasync.CacheEntry{
			IngredientKey:  vidasync.IngredientKey(r.IngredientKey),
			OriginalInput:  r.OriginalInput,
			CorrectedInput: r.CorrectedInput,
			Macros:         vidasync.Macros{Calories: r.Calories, Protein: r.Protein, Carbs: r.Carbs, Fat: r.Fat},
			IsValidFood:    r.IsValidFood,
		}
		if r.ID != nil {
			e.ID = fmt.Sprint(r.ID)
		}
		e.CreatedAt = parsePostgRESTTime(r.CreatedAt)
		out = append(out, e)
	}
	return out, nil
}

// Insert lets the database assign id and created_at.
func (s *PostgRESTStore) Insert(ctx context.Context, entry vidasync.CacheEntry) error {
	b, err := json.Marshal(postgrestRow{
		IngredientKey:  string(entry.IngredientKey),
		OriginalInput:  entry.OriginalInput,
		CorrectedInput: entry.CorrectedInput,
		Calories:       entry.Calories,
		Protein:        entry.Protein,
		Carbs:          entry.Carbs,
		Fat:            entry.Fat,
		IsValidFood:    entry.IsValidFood,
	})
	if err != nil {
		return fmt.Errorf("marshal %s row: %w", postgrestTable, err)
	}

	_, err = s.do(ctx, http.MethodPost, "/"+postgrestTable, b)
	return err
}

func (s *PostgRESTStore) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase %s %s: %w", method, postgrestTable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read supabase response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("supabase %s %s: %s: %s", method, postgrestTable, resp.Status, string(respBody))
	}
	return respBody, nil
}

// parsePostgRESTTime accepts timestamptz output and bare timestamps; unparseable values are zero.
func parsePostgRESTTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
