package database

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func testFeed(guid string) Feed {
	return Feed{
		GUID:            guid,
		InputURL:        "https://example.com",
		SourceURL:       "https://example.com/feed.xml",
		Title:           "Example Feed",
		Type:            FeedTypeBlog,
		Active:          true,
		LastUpdated:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdateFrequency: 1,
		Link:            "https://example.com",
	}
}

func testSource(feedURL, feedGUID string) FeedSource {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return FeedSource{
		FeedURL:          feedURL,
		ReferencedFeed:   feedGUID,
		ActivelyUpdating: true,
		LastUpdated:      now,
		LastFetched:      now,
		PrimarySource:    true,
	}
}

func TestFeedUpsertPreservesUserOwnedColumns(t *testing.T) {
	db := newTestDB(t)
	repo := NewFeedRepository(db)

	feed := testFeed("feed-1")
	if err := repo.Upsert(feed, FeedUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}

	if err := repo.UpdateAlias("feed-1", "My Alias"); err != nil {
		t.Fatalf("Failed to update alias: %v", err)
	}
	if err := repo.UpdateCategories("feed-1", []string{"tech", "go"}); err != nil {
		t.Fatalf("Failed to update categories: %v", err)
	}

	// Re-ingestion with fresher content must not clobber user state.
	feed.Title = "Renamed Feed"
	feed.Alias = ""
	feed.Categories = nil
	if err := repo.Upsert(feed, FeedUpsertPolicy); err != nil {
		t.Fatalf("Failed to re-upsert feed: %v", err)
	}

	got, err := repo.GetFeed("feed-1")
	if err != nil {
		t.Fatalf("Failed to get feed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected feed, got nil")
	}
	if got.Title != "Renamed Feed" {
		t.Errorf("Expected updated title, got %q", got.Title)
	}
	if got.Alias != "My Alias" {
		t.Errorf("Expected alias preserved, got %q", got.Alias)
	}
	if len(got.Categories) != 2 || got.Categories[0] != "tech" {
		t.Errorf("Expected categories preserved, got %v", got.Categories)
	}
}

func TestItemUpsertPreservesUserState(t *testing.T) {
	db := newTestDB(t)
	feeds := NewFeedRepository(db)
	items := NewItemRepository(db)

	if err := feeds.Upsert(testFeed("feed-1"), FeedUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}

	season := 2
	item := FeedItem{
		GUID:       "item-1",
		SourceFeed: "feed-1",
		Season:     &season,
		Title:      "Episode One",
	}
	if _, err := items.Upsert(item, ItemUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert item: %v", err)
	}

	finished := true
	progress := 42.5
	if err := items.UpdateItemState("item-1", &finished, &progress, nil); err != nil {
		t.Fatalf("Failed to update item state: %v", err)
	}

	item.Title = "Episode One (remastered)"
	if _, err := items.Upsert(item, ItemUpsertPolicy); err != nil {
		t.Fatalf("Failed to re-upsert item: %v", err)
	}

	got, err := items.GetItem("item-1")
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if got.Title != "Episode One (remastered)" {
		t.Errorf("Expected updated title, got %q", got.Title)
	}
	if !got.Finished {
		t.Error("Expected finished to survive re-upsert")
	}
	if got.Progress != 42.5 {
		t.Errorf("Expected progress 42.5, got %v", got.Progress)
	}
	if got.Season == nil || *got.Season != 2 {
		t.Errorf("Expected season 2, got %v", got.Season)
	}
}

func TestItemDeferredUpsertNeverOverwrites(t *testing.T) {
	db := newTestDB(t)
	feeds := NewFeedRepository(db)
	items := NewItemRepository(db)

	if err := feeds.Upsert(testFeed("feed-1"), FeedUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}

	item := FeedItem{GUID: "item-1", SourceFeed: "feed-1", Title: "Current Title"}
	inserted, err := items.Upsert(item, ItemUpsertPolicy)
	if err != nil {
		t.Fatalf("Failed to insert item: %v", err)
	}
	if !inserted {
		t.Error("Expected first upsert to report a written row")
	}

	item.Title = "Stale Archive Title"
	inserted, err = items.Upsert(item, ItemUpsertPolicy.Deferred())
	if err != nil {
		t.Fatalf("Failed to upsert with deferred policy: %v", err)
	}
	if inserted {
		t.Error("Deferred upsert of an existing row must report no write")
	}

	got, err := items.GetItem("item-1")
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if got.Title != "Current Title" {
		t.Errorf("Deferred upsert must not overwrite, got %q", got.Title)
	}
}

func TestFileUpsertIsInsertOrIgnore(t *testing.T) {
	db := newTestDB(t)
	feeds := NewFeedRepository(db)
	sources := NewSourceRepository(db)
	files := NewFileRepository(db)

	if err := feeds.Upsert(testFeed("feed-1"), FeedUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}
	if err := sources.Upsert(testSource("https://example.com/feed.xml", "feed-1"), SourceUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert source: %v", err)
	}

	file := FeedFile{
		SHA256Hash:     "abc123",
		FeedURL:        "https://example.com/feed.xml",
		ReferencedFeed: "feed-1",
		FetchedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		CachedFile:     "cached-file-abc-1.rss",
	}
	if err := files.Upsert(file, FileUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert file: %v", err)
	}

	file.CachedFile = "cached-file-abc-2.rss"
	if err := files.Upsert(file, FileUpsertPolicy); err != nil {
		t.Fatalf("Re-upsert of same hash should not error: %v", err)
	}

	got, err := files.GetFileByHash("abc123")
	if err != nil {
		t.Fatalf("Failed to get file: %v", err)
	}
	if got.CachedFile != "cached-file-abc-1.rss" {
		t.Errorf("Snapshot row must be immutable, got %q", got.CachedFile)
	}

	count, err := files.GetFileCount()
	if err != nil {
		t.Fatalf("Failed to count files: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 file, got %d", count)
	}
}

func TestGetUpdatableSourcesSkipsArchives(t *testing.T) {
	db := newTestDB(t)
	feeds := NewFeedRepository(db)
	sources := NewSourceRepository(db)

	if err := feeds.Upsert(testFeed("feed-1"), FeedUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}

	live := testSource("https://example.com/feed.xml", "feed-1")
	archived := testSource("https://web.archive.org/web/20200101000000id_/https://example.com/feed.xml", "feed-1")
	archived.Archive = true
	paused := testSource("https://example.com/old.xml", "feed-1")
	paused.ActivelyUpdating = false

	for _, s := range []FeedSource{live, archived, paused} {
		if err := sources.Upsert(s, SourceUpsertPolicy); err != nil {
			t.Fatalf("Failed to insert source: %v", err)
		}
	}

	updatable, err := sources.GetUpdatableSources("feed-1")
	if err != nil {
		t.Fatalf("Failed to get updatable sources: %v", err)
	}
	if len(updatable) != 1 || updatable[0].FeedURL != live.FeedURL {
		t.Errorf("Expected only the live source, got %v", updatable)
	}

	hasArchives, err := sources.HasArchiveSources("feed-1")
	if err != nil {
		t.Fatalf("Failed to check archive sources: %v", err)
	}
	if !hasArchives {
		t.Error("Expected archive sources to be detected")
	}
}

func TestGetItemDateRange(t *testing.T) {
	db := newTestDB(t)
	feeds := NewFeedRepository(db)
	items := NewItemRepository(db)

	if err := feeds.Upsert(testFeed("feed-1"), FeedUpsertPolicy); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}

	r, err := items.GetItemDateRange("feed-1")
	if err != nil {
		t.Fatalf("Failed to get date range: %v", err)
	}
	if r != nil {
		t.Errorf("Expected nil range for empty feed, got %v", r)
	}

	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for guid, d := range map[string]time.Time{"a": late, "b": early} {
		item := FeedItem{GUID: guid, SourceFeed: "feed-1", Date: &d}
		if _, err := items.Upsert(item, ItemUpsertPolicy); err != nil {
			t.Fatalf("Failed to insert item: %v", err)
		}
	}

	r, err = items.GetItemDateRange("feed-1")
	if err != nil {
		t.Fatalf("Failed to get date range: %v", err)
	}
	if r == nil {
		t.Fatal("Expected date range, got nil")
	}
	if !r.Earliest.Equal(early) || !r.Latest.Equal(late) {
		t.Errorf("Expected range %v..%v, got %v..%v", early, late, r.Earliest, r.Latest)
	}
}

func TestSearchIndexAndQuery(t *testing.T) {
	db := newTestDB(t)
	search := NewSearchRepository(db)

	entry := SearchEntry{
		GUID:        "feed-1",
		TableName:   "feed",
		Title:       "Gopher Weekly",
		Description: "A newsletter about burrowing rodents",
	}
	if err := search.Index(entry); err != nil {
		t.Fatalf("Failed to index entry: %v", err)
	}

	// Re-indexing replaces rather than duplicates.
	entry.Title = "Gopher Monthly"
	if err := search.Index(entry); err != nil {
		t.Fatalf("Failed to re-index entry: %v", err)
	}

	hits, err := search.Search("gopher", 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if hits[0].Title != "Gopher Monthly" {
		t.Errorf("Expected re-indexed title, got %q", hits[0].Title)
	}
}
