package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `
    CREATE TABLE IF NOT EXISTS ingredient_cache (
        seq BIGSERIAL PRIMARY KEY,
        id UUID NOT NULL UNIQUE,
        ingredient_key TEXT NOT NULL,
        original_input TEXT NOT NULL,
        corrected_input TEXT,
        calories TEXT NOT NULL,
        protein TEXT NOT NULL,
        carbs TEXT NOT NULL,
        fat TEXT NOT NULL,
        is_valid_food BOOLEAN NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE INDEX IF NOT EXISTS idx_ingredient_cache_key ON ingredient_cache(ingredient_key);
    `,
	insert: `
        INSERT INTO ingredient_cache (id, ingredient_key, original_input, corrected_input, calories, protein, carbs, fat, is_valid_food, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `,
	lookup: func(keys []string) (string, []any) {
		return `SELECT ` + selectColumns + ` FROM ingredient_cache WHERE ingredient_key = ANY($1) ORDER BY seq`, []any{pq.Array(keys)}
	},
	timeArg: func(t time.Time) any {
		return t
	},
}

// OpenPostgres connects to dsn and makes sure the cache table exists.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s, err := newSQLStore(ctx, db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
