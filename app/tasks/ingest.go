package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmthyln/iris/app/blob"
	"github.com/tmthyln/iris/app/database"
	"github.com/tmthyln/iris/app/feed"
)

// Ingestor runs the shared ingestion flow: resolve the logical feed, the
// source URL and the unique payload, then upsert items one at a time.
type Ingestor struct {
	feeds     database.FeedRepository
	sources   database.SourceRepository
	files     database.FileRepository
	items     database.ItemRepository
	search    database.SearchRepository
	blobs     *blob.Store
	fetcher   *feed.Fetcher
	parser    *feed.Parser
	publisher *Publisher
}

func NewIngestor(feeds database.FeedRepository, sources database.SourceRepository,
	files database.FileRepository, items database.ItemRepository,
	search database.SearchRepository, blobs *blob.Store, fetcher *feed.Fetcher,
	parser *feed.Parser, publisher *Publisher) *Ingestor {
	return &Ingestor{
		feeds:     feeds,
		sources:   sources,
		files:     files,
		items:     items,
		search:    search,
		blobs:     blobs,
		fetcher:   fetcher,
		parser:    parser,
		publisher: publisher,
	}
}

// AddFeed runs first-time ingestion for a submitted URL. created reports
// whether a new source was ingested; false means the resolved source was
// already known and only refresh tasks were published.
func (in *Ingestor) AddFeed(ctx context.Context, inputURL string) (*database.Feed, bool, error) {
	result, err := in.fetcher.Fetch(ctx, inputURL)
	if err != nil {
		return nil, false, err
	}

	if existing, err := in.sources.GetSource(result.RequestURL); err != nil {
		return nil, false, err
	} else if existing != nil {
		slog.Info("Source already known, scheduling refresh", "url", result.RequestURL)

		if err := in.publisher.Publish(TopicRefreshFeed, RefreshFeedTask{FeedGUID: existing.ReferencedFeed}); err != nil {
			slog.Warn("Failed to publish refresh task", "feed", existing.ReferencedFeed, "error", err)
		}
		if err := in.publisher.Publish(TopicPlanFeedArchives, PlanFeedArchivesTask{FeedGUID: existing.ReferencedFeed}); err != nil {
			slog.Warn("Failed to publish plan-archives task", "feed", existing.ReferencedFeed, "error", err)
		}

		known, err := in.feeds.GetFeed(existing.ReferencedFeed)
		return known, false, err
	}

	channel, items, err := in.parser.Run(result.Content)
	if err != nil {
		return nil, false, fmt.Errorf("fetched document is not a feed: %w", err)
	}

	// Identical bytes seen under a different URL attach the new source to
	// the already-known feed without storing a second copy.
	existingFile, err := in.files.GetFileByHash(result.ContentHash)
	if err != nil {
		return nil, false, err
	}

	feedGUID := channel.GUID
	if existingFile != nil {
		feedGUID = existingFile.ReferencedFeed
	}

	known, err := in.feeds.GetFeed(feedGUID)
	if err != nil {
		return nil, false, err
	}

	record := feedFromChannel(channel, inputURL)
	record.GUID = feedGUID
	if err := in.feeds.Upsert(record, database.FeedUpsertPolicy); err != nil {
		return nil, false, err
	}

	source := database.FeedSource{
		FeedURL:          result.RequestURL,
		ReferencedFeed:   feedGUID,
		ActivelyUpdating: true,
		LastUpdated:      channel.LastUpdated,
		LastFetched:      result.Timestamp,
		PrimarySource:    known == nil,
	}
	if err := in.sources.Upsert(source, database.SourceUpsertPolicy); err != nil {
		return nil, false, err
	}

	if existingFile == nil {
		if err := in.storeFile(feedGUID, result.RequestURL, result); err != nil {
			return nil, false, err
		}
	}

	in.storeItems(feedGUID, items, database.ItemUpsertPolicy)
	in.indexFeed(record)

	if err := in.publisher.Publish(TopicPlanFeedArchives, PlanFeedArchivesTask{FeedGUID: feedGUID}); err != nil {
		slog.Warn("Failed to publish plan-archives task", "feed", feedGUID, "error", err)
	}

	stored, err := in.feeds.GetFeed(feedGUID)
	return stored, true, err
}

// storeFile persists the raw payload and its metadata row. Both writes are
// attempted; the first error is returned but does not stop the other write.
func (in *Ingestor) storeFile(feedGUID string, sourceURL string, result *feed.FetchResult) error {
	key := blob.CacheKey(sourceURL, result.Timestamp)

	blobErr := in.blobs.Put(key, result.Content)
	if blobErr != nil {
		slog.Error("Failed to store raw feed payload", "feed", feedGUID, "key", key, "error", blobErr)
	}

	rowErr := in.files.Upsert(database.FeedFile{
		SHA256Hash:     result.ContentHash,
		FeedURL:        sourceURL,
		ReferencedFeed: feedGUID,
		FetchedAt:      result.Timestamp,
		CachedFile:     key,
	}, database.FileUpsertPolicy)
	if rowErr != nil {
		slog.Error("Failed to store feed file row", "feed", feedGUID, "hash", result.ContentHash, "error", rowErr)
	}

	if blobErr != nil {
		return blobErr
	}
	return rowErr
}

// storeItems upserts items one by one so a single bad item cannot abort the
// rest of the batch.
func (in *Ingestor) storeItems(feedGUID string, items []feed.Item, policy database.UpsertPolicy) {
	stored := 0
	for _, item := range items {
		if item.GUID == "" {
			slog.Warn("Skipping item without identity", "feed", feedGUID, "title", item.Title)
			continue
		}

		record := itemFromParsed(feedGUID, item)
		written, err := in.items.Upsert(record, policy)
		if err != nil {
			slog.Warn("Failed to upsert item", "feed", feedGUID, "item", item.GUID, "error", err)
			continue
		}
		stored++

		// Deferred upserts leave existing rows (and their index entries)
		// alone, but a brand-new row still needs indexing.
		if written {
			in.indexItem(record)
		}
	}

	slog.Debug("Items stored", "feed", feedGUID, "count", stored, "total", len(items))
}

func (in *Ingestor) indexFeed(record database.Feed) {
	err := in.search.Index(database.SearchEntry{
		GUID:        record.GUID,
		TableName:   "feed",
		Title:       record.Title,
		Alias:       record.Alias,
		Description: record.Description,
		Author:      record.Author,
		Categories:  strings.Join(record.Categories, " "),
	})
	if err != nil {
		slog.Warn("Failed to index feed for search", "feed", record.GUID, "error", err)
	}
}

func (in *Ingestor) indexItem(record database.FeedItem) {
	err := in.search.Index(database.SearchEntry{
		GUID:        record.GUID,
		TableName:   "feed_item",
		Title:       record.Title,
		Description: record.Description,
		Content:     record.EncodedContent,
		Keywords:    strings.Join(record.Keywords, " "),
	})
	if err != nil {
		slog.Warn("Failed to index item for search", "item", record.GUID, "error", err)
	}
}

func feedFromChannel(channel *feed.Channel, inputURL string) database.Feed {
	return database.Feed{
		GUID:            channel.GUID,
		InputURL:        inputURL,
		SourceURL:       channel.SourceURL,
		Title:           channel.Title,
		Description:     channel.Description,
		Author:          channel.Author,
		Type:            channel.Type,
		Active:          true,
		ImageSrc:        channel.ImageSrc,
		ImageAlt:        channel.ImageAlt,
		LastUpdated:     channel.LastUpdated,
		UpdateFrequency: 1,
		Link:            channel.Link,
	}
}

func itemFromParsed(feedGUID string, item feed.Item) database.FeedItem {
	return database.FeedItem{
		GUID:            item.GUID,
		SourceFeed:      feedGUID,
		Season:          item.Season,
		Episode:         item.Episode,
		Title:           item.Title,
		Description:     item.Description,
		Link:            item.Link,
		Date:            item.Date,
		EnclosureURL:    item.EnclosureURL,
		EnclosureLength: item.EnclosureLength,
		EnclosureType:   item.EnclosureType,
		Duration:        item.Duration,
		EncodedContent:  item.EncodedContent,
		Keywords:        item.Keywords,
	}
}

// refreshedFeed carries fresh channel content onto an existing feed record.
// Identity and user-owned columns are excluded by the upsert policy anyway;
// they are copied here so an insert race still writes sensible values.
func refreshedFeed(existing *database.Feed, channel *feed.Channel) database.Feed {
	record := feedFromChannel(channel, existing.InputURL)
	record.GUID = existing.GUID
	record.Alias = existing.Alias
	record.Active = existing.Active
	record.Categories = existing.Categories
	record.UpdateFrequency = existing.UpdateFrequency
	return record
}
