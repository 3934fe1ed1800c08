package blob

import (
	"strings"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	fetchedAt := time.UnixMilli(1700000000000)
	key := CacheKey("https://example.com/feed.xml", fetchedAt)

	if !strings.HasPrefix(key, "cached-file-") {
		t.Errorf("Expected cached-file- prefix, got %q", key)
	}
	if !strings.HasSuffix(key, "-1700000000000.rss") {
		t.Errorf("Expected timestamp suffix, got %q", key)
	}

	// Same URL and time must be deterministic; different URLs must differ.
	if key != CacheKey("https://example.com/feed.xml", fetchedAt) {
		t.Error("CacheKey should be deterministic")
	}
	if key == CacheKey("https://example.com/other.xml", fetchedAt) {
		t.Error("Different URLs should produce different keys")
	}
}

func TestStorePutGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	key := CacheKey("https://example.com/feed.xml", time.Now())
	content := []byte("<rss></rss>")

	if store.Has(key) {
		t.Error("Key should not exist before Put")
	}
	if err := store.Put(key, content); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if !store.Has(key) {
		t.Error("Key should exist after Put")
	}

	got, err := store.Get(key)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Expected %q, got %q", content, got)
	}
}

func TestStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Put("../escape.rss", []byte("x")); err == nil {
		t.Error("Expected error for key containing path separators")
	}
	if err := store.Put("", []byte("x")); err == nil {
		t.Error("Expected error for empty key")
	}
}
