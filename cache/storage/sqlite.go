package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
    CREATE TABLE IF NOT EXISTS ingredient_cache (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL UNIQUE,
        ingredient_key TEXT NOT NULL,
        original_input TEXT NOT NULL,
        corrected_input TEXT,
        calories TEXT NOT NULL,
        protein TEXT NOT NULL,
        carbs TEXT NOT NULL,
        fat TEXT NOT NULL,
        is_valid_food INTEGER NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_ingredient_cache_key ON ingredient_cache(ingredient_key);
    `,
	insert: `
        INSERT INTO ingredient_cache (id, ingredient_key, original_input, corrected_input, calories, protein, carbs, fat, is_valid_food, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
	lookup: func(keys []string) (string, []any) {
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
		return `SELECT ` + selectColumns + ` FROM ingredient_cache WHERE ingredient_key IN (` + placeholders + `) ORDER BY seq`, args
	},
	timeArg: func(t time.Time) any {
		return t.UTC().Format(sqliteTimeLayout)
	},
}

// OpenSQLite opens (creating if needed) a cache database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Concurrent batch writes would otherwise hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(ctx, db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
