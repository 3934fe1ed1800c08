package database

import (
	"strings"
	"testing"
)

func TestBuildUpsertIgnore(t *testing.T) {
	query := buildUpsert("feed_files", []string{"sha256_hash"},
		[]string{"sha256_hash", "feed_url"}, UpsertPolicy{OnConflict: ConflictIgnore})

	want := "INSERT INTO feed_files (sha256_hash, feed_url) VALUES (?, ?) ON CONFLICT (sha256_hash) DO NOTHING"
	if query != want {
		t.Errorf("Expected %q, got %q", want, query)
	}
}

func TestBuildUpsertUpdate(t *testing.T) {
	query := buildUpsert("feeds", []string{"guid"},
		[]string{"guid", "title", "alias", "description"},
		UpsertPolicy{OnConflict: ConflictUpdate, ExcludedColumns: []string{"alias"}})

	if !strings.Contains(query, "ON CONFLICT (guid) DO UPDATE SET") {
		t.Errorf("Expected DO UPDATE clause, got %q", query)
	}
	if !strings.Contains(query, "title = excluded.title") {
		t.Errorf("Expected title assignment, got %q", query)
	}
	if !strings.Contains(query, "description = excluded.description") {
		t.Errorf("Expected description assignment, got %q", query)
	}
	if strings.Contains(query, "alias = excluded.alias") {
		t.Errorf("Excluded column must not be assigned: %q", query)
	}
	if strings.Contains(query, "guid = excluded.guid") {
		t.Errorf("Key column must not be assigned: %q", query)
	}
}

func TestBuildUpsertAllColumnsExcluded(t *testing.T) {
	query := buildUpsert("t", []string{"id"}, []string{"id", "name"},
		UpsertPolicy{OnConflict: ConflictUpdate, ExcludedColumns: []string{"name"}})

	if !strings.HasSuffix(query, "DO NOTHING") {
		t.Errorf("Expected DO NOTHING when nothing is assignable, got %q", query)
	}
}

func TestDeferredPolicy(t *testing.T) {
	deferred := ItemUpsertPolicy.Deferred()

	if deferred.OnConflict != ConflictIgnore {
		t.Error("Deferred policy should insert-or-ignore")
	}
	if ItemUpsertPolicy.OnConflict != ConflictUpdate {
		t.Error("Deferred must not mutate the base policy")
	}
}
