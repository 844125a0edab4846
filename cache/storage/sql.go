package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vidasync"
)

// sqliteTimeLayout is fixed width so that TEXT timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	name   string
	schema string
	insert string
	// lookup builds the SELECT for a key set.
	lookup func(keys []string) (string, []any)
	// timeArg converts created_at into what the driver stores.
	timeArg func(time.Time) any
}

const selectColumns = `id, ingredient_key, original_input, corrected_input, calories, protein, carbs, fat, is_valid_food, created_at`

// SQLStore keeps the cache in the ingredient_cache table of a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("create %s schema: %w", d.name, err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Lookup(ctx context.Context, keys []string) ([]vidasync.CacheEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query, args := s.dialect.lookup(keys)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingredient_cache: %w", err)
	}
	defer rows.Close()

	var out []vidasync.CacheEntry
	for rows.Next() {
		var (
			e         vidasync.CacheEntry
			key       string
			corrected sql.NullString
			createdAt any
		)
		if err := rows.Scan(&e.ID, &key, &e.OriginalInput, &corrected, &e.Calories, &e.Protein, &e.Carbs, &e.Fat, &e.IsValidFood, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ingredient_cache row: %w", err)
		}
		e.IngredientKey = vidasync.IngredientKey(key)
		if corrected.Valid {
			e.CorrectedInput = &corrected.String
		}
		if e.CreatedAt, err = scanTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingredient_cache rows: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Insert(ctx context.Context, entry vidasync.CacheEntry) error {
	e := stamp(entry)

	var corrected sql.NullString
	if e.CorrectedInput != nil {
		corrected = sql.NullString{String: *e.CorrectedInput, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.dialect.insert,
		e.ID, string(e.IngredientKey), e.OriginalInput, corrected,
		e.Calories, e.Protein, e.Carbs, e.Fat, e.IsValidFood, s.dialect.timeArg(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert ingredient_cache %q: %w", e.IngredientKey, err)
	}
	return nil
}

func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t.UTC(), nil
}
