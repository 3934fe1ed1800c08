// Package blob persists raw fetched feed payloads on disk, keyed by
// content-addressed file names. Rows in feed_files reference these keys.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// CacheKey derives the blob key for a payload fetched from url at the given
// time: cached-file-<sha256(url)>-<unix ms>.rss
func CacheKey(url string, fetchedAt time.Time) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("cached-file-%s-%d.rss", hex.EncodeToString(sum[:]), fetchedAt.UnixMilli())
}

func (s *Store) Put(key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cached file: %w", err)
	}
	return nil
}

func (s *Store) Get(key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached file: %w", err)
	}
	return data, nil
}

func (s *Store) Has(key string) bool {
	path, err := s.resolve(key)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

func (s *Store) resolve(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return "", fmt.Errorf("invalid cache key: %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
