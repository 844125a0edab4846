package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"vidasync"
)

// FileStore appends one JSON object per line to a local file. Lines that do not decode, such as
// a record torn by a crash mid-append, are skipped on read.
type FileStore struct {
	FilePath string
	mu       sync.Mutex
}

func NewFileStore(filePath string) *FileStore {
	return &FileStore{FilePath: filePath}
}

func (f *FileStore) Lookup(ctx context.Context, keys []string) ([]vidasync.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer file.Close()

	want := make(map[vidasync.IngredientKey]struct{}, len(keys))
	for _, k := range keys {
		want[vidasync.IngredientKey(k)] = struct{}{}
	}

	var out []vidasync.CacheEntry
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e vidasync.CacheEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			slog.Warn("CACHE: Skipping undecodable cache file line", "path", f.FilePath, "line", line, "error", err)
			continue
		}
		if _, ok := want[e.IngredientKey]; ok {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return out, nil
}

func (f *FileStore) Insert(ctx context.Context, entry vidasync.CacheEntry) error {
	b, err := json.Marshal(stamp(entry))
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.FilePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}

	line := append(b, '\n')
	torn, err := endsMidLine(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("inspect cache file: %w", err)
	}
	if torn {
		line = append([]byte{'\n'}, line...)
	}
	if _, err := file.Write(line); err != nil {
		file.Close()
		return fmt.Errorf("append cache entry: %w", err)
	}
	return file.Close()
}

// endsMidLine reports whether the file is non-empty and its last byte is not a newline.
func endsMidLine(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}
