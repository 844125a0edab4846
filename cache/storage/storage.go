// Package storage holds the ingredient cache backends.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"vidasync"

	"github.com/google/uuid"
)

// Store is a persistent table of cache rows. Several rows may share a key.
type Store interface {
	// Lookup returns every row whose key is in keys, oldest first.
	Lookup(ctx context.Context, keys []string) ([]vidasync.CacheEntry, error)
	Insert(ctx context.Context, entry vidasync.CacheEntry) error
}

// stamp fills the fields the backend owns.
func stamp(e vidasync.CacheEntry) vidasync.CacheEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// MemoryStore keeps rows in process. It is the default backend for local runs and the fake
// used by tests, which can inject failures and count round trips.
type MemoryStore struct {
	mu         sync.Mutex
	rows       []vidasync.CacheEntry
	lookupErr  error
	insertErr  error
	insertErrs map[vidasync.IngredientKey]error
	lookups    int
	inserts    int
}

func NewMemoryStore(rows ...vidasync.CacheEntry) *MemoryStore {
	s := &MemoryStore{insertErrs: map[vidasync.IngredientKey]error{}}
	for _, r := range rows {
		s.rows = append(s.rows, stamp(r))
	}
	return s
}

// NewTestStoreWithError returns a store whose reads and writes all fail.
func NewTestStoreWithError() *MemoryStore {
	s := NewMemoryStore()
	s.lookupErr = errors.New("cache unavailable")
	s.insertErr = errors.New("cache unavailable")
	return s
}

// FailInsert makes every insert of key fail with err.
func (s *MemoryStore) FailInsert(key vidasync.IngredientKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErrs[key] = err
}

func (s *MemoryStore) Lookup(ctx context.Context, keys []string) ([]vidasync.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := make(map[vidasync.IngredientKey]struct{}, len(keys))
	for _, k := range keys {
		want[vidasync.IngredientKey(k)] = struct{}{}
	}

	var out []vidasync.CacheEntry
	for _, r := range s.rows {
		if _, ok := want[r.IngredientKey]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, entry vidasync.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	if err, ok := s.insertErrs[entry.IngredientKey]; ok {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.rows = append(s.rows, stamp(entry))
	return nil
}

// Rows returns a copy of the stored rows in insertion order.
func (s *MemoryStore) Rows() []vidasync.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vidasync.CacheEntry(nil), s.rows...)
}

// Lookups is the number of Lookup calls served so far.
func (s *MemoryStore) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// Inserts is the number of Insert calls attempted so far.
func (s *MemoryStore) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}
