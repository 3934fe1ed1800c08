package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tmthyln/iris/app/archive"
	"github.com/tmthyln/iris/app/database"
	"github.com/tmthyln/iris/app/feed"
)

const extractBatchSize = 10

// Orchestrator consumes the task topics. Handlers always ack: the transport
// is at-least-once and every operation is idempotent, so a failed attempt is
// logged and retried naturally on the next scheduled pass rather than
// redelivered in a loop.
type Orchestrator struct {
	*Ingestor
	extractor  *feed.ContentExtractor
	cdx        *archive.CDXClient
	httpClient *http.Client
	userAgent  string
}

func NewOrchestrator(ingestor *Ingestor, extractor *feed.ContentExtractor,
	cdx *archive.CDXClient, httpClient *http.Client, userAgent string) *Orchestrator {
	return &Orchestrator{
		Ingestor:   ingestor,
		extractor:  extractor,
		cdx:        cdx,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (o *Orchestrator) Register(router *message.Router, subscriber message.Subscriber) {
	router.AddNoPublisherHandler("refresh_feed", TopicRefreshFeed, subscriber, o.handleRefreshFeed)
	router.AddNoPublisherHandler("plan_feed_archives", TopicPlanFeedArchives, subscriber, o.handlePlanFeedArchives)
	router.AddNoPublisherHandler("fetch_archive_snapshot", TopicFetchArchiveSnapshot, subscriber, o.handleFetchArchiveSnapshot)
	router.AddNoPublisherHandler("extract_content", TopicExtractContent, subscriber, o.handleExtractContent)
}

func (o *Orchestrator) handleRefreshFeed(msg *message.Message) error {
	task, err := decodePayload[RefreshFeedTask](msg)
	if err != nil {
		slog.Error("Dropping malformed refresh task", "error", err)
		return nil
	}

	ctx := msg.Context()

	fd, err := o.feeds.GetFeed(task.FeedGUID)
	if err != nil || fd == nil {
		slog.Warn("Refresh skipped, feed not found", "feed", task.FeedGUID, "error", err)
		return nil
	}

	sources, err := o.sources.GetUpdatableSources(fd.GUID)
	if err != nil {
		slog.Error("Failed to load sources for refresh", "feed", fd.GUID, "error", err)
		return nil
	}

	for _, source := range sources {
		if err := o.refreshSource(ctx, fd, source); err != nil {
			// One broken source must not stop the remaining ones.
			slog.Warn("Source refresh failed", "feed", fd.GUID, "source", source.FeedURL, "error", err)
		}
	}

	return nil
}

func (o *Orchestrator) refreshSource(ctx context.Context, fd *database.Feed, source database.FeedSource) error {
	result, err := o.fetcher.Fetch(ctx, source.FeedURL)
	if err != nil {
		return err
	}

	source.LastFetched = result.Timestamp

	// Unchanged payload: nothing to parse or store.
	if existing, err := o.files.GetFileByHash(result.ContentHash); err != nil {
		return err
	} else if existing != nil {
		slog.Debug("Payload unchanged", "feed", fd.GUID, "source", source.FeedURL)
		return o.sources.Upsert(source, database.SourceUpsertPolicy)
	}

	channel, items, err := o.parser.Run(result.Content)
	if err != nil {
		return err
	}

	record := refreshedFeed(fd, channel)
	if err := o.feeds.Upsert(record, database.FeedUpsertPolicy); err != nil {
		return err
	}

	source.LastUpdated = channel.LastUpdated
	if err := o.sources.Upsert(source, database.SourceUpsertPolicy); err != nil {
		return err
	}

	if err := o.storeFile(fd.GUID, source.FeedURL, result); err != nil {
		return err
	}

	o.storeItems(fd.GUID, items, database.ItemUpsertPolicy)
	o.indexFeed(record)

	slog.Info("Source refreshed", "feed", fd.GUID, "source", source.FeedURL, "items", len(items))
	return nil
}

func (o *Orchestrator) handlePlanFeedArchives(msg *message.Message) error {
	task, err := decodePayload[PlanFeedArchivesTask](msg)
	if err != nil {
		slog.Error("Dropping malformed plan-archives task", "error", err)
		return nil
	}

	ctx := msg.Context()

	fd, err := o.feeds.GetFeed(task.FeedGUID)
	if err != nil || fd == nil {
		slog.Warn("Archive planning skipped, feed not found", "feed", task.FeedGUID, "error", err)
		return nil
	}

	// Replay guard: once any archive source exists the feed has been planned.
	if planned, err := o.sources.HasArchiveSources(fd.GUID); err != nil {
		slog.Error("Failed to check archive sources", "feed", fd.GUID, "error", err)
		return nil
	} else if planned {
		slog.Debug("Archive planning skipped, already planned", "feed", fd.GUID)
		return nil
	}

	sources, err := o.sources.GetSourcesForFeed(fd.GUID)
	if err != nil {
		slog.Error("Failed to load sources for planning", "feed", fd.GUID, "error", err)
		return nil
	}

	interval, err := o.estimateInterval(fd.GUID)
	if err != nil {
		slog.Error("Failed to estimate backfill interval", "feed", fd.GUID, "error", err)
		return nil
	}

	published := 0
	for _, source := range sources {
		if source.Archive {
			continue
		}

		snapshots, err := o.cdx.Snapshots(ctx, source.FeedURL)
		if err != nil {
			slog.Warn("CDX query failed", "feed", fd.GUID, "source", source.FeedURL, "error", err)
			continue
		}

		for _, snapshot := range archive.SelectSnapshots(snapshots, interval) {
			task := FetchArchiveSnapshotTask{
				FeedGUID:    fd.GUID,
				SourceURL:   source.FeedURL,
				SnapshotURL: archive.SnapshotURL(snapshot.Timestamp, snapshot.Original),
				Timestamp:   snapshot.Timestamp,
			}
			if err := o.publisher.Publish(TopicFetchArchiveSnapshot, task); err != nil {
				slog.Warn("Failed to publish snapshot task", "feed", fd.GUID, "snapshot", task.SnapshotURL, "error", err)
				continue
			}
			published++
		}
	}

	slog.Info("Archive backfill planned", "feed", fd.GUID, "interval", interval, "snapshots", published)
	return nil
}

func (o *Orchestrator) estimateInterval(feedGUID string) (time.Duration, error) {
	files, err := o.files.GetFilesForFeed(feedGUID)
	if err != nil {
		return 0, err
	}

	fetchTimes := make([]time.Time, 0, len(files))
	for _, file := range files {
		fetchTimes = append(fetchTimes, file.FetchedAt)
	}

	var itemSpan time.Duration
	if dateRange, err := o.items.GetItemDateRange(feedGUID); err != nil {
		return 0, err
	} else if dateRange != nil {
		itemSpan = dateRange.Latest.Sub(dateRange.Earliest)
	}

	return archive.EstimateInterval(fetchTimes, itemSpan), nil
}

func (o *Orchestrator) handleFetchArchiveSnapshot(msg *message.Message) error {
	task, err := decodePayload[FetchArchiveSnapshotTask](msg)
	if err != nil {
		slog.Error("Dropping malformed snapshot task", "error", err)
		return nil
	}

	ctx := msg.Context()

	fd, err := o.feeds.GetFeed(task.FeedGUID)
	if err != nil || fd == nil {
		slog.Warn("Snapshot fetch skipped, feed not found", "feed", task.FeedGUID, "error", err)
		return nil
	}

	// Snapshot URLs serve the archived bytes directly; no fallback cascade.
	body, err := o.plainGet(ctx, task.SnapshotURL)
	if err != nil {
		slog.Warn("Snapshot fetch failed", "feed", fd.GUID, "snapshot", task.SnapshotURL, "error", err)
		return nil
	}

	_, items, err := o.parser.Run(body)
	if err != nil {
		slog.Warn("Snapshot is not a parseable feed, abandoned", "feed", fd.GUID, "snapshot", task.SnapshotURL, "error", err)
		return nil
	}

	result := feed.NewSnapshotResult(task.SnapshotURL, body)

	if existing, err := o.files.GetFileByHash(result.ContentHash); err != nil {
		slog.Error("Failed to check snapshot hash", "feed", fd.GUID, "error", err)
		return nil
	} else if existing != nil {
		slog.Debug("Snapshot content already known", "feed", fd.GUID, "snapshot", task.SnapshotURL)
		return nil
	}

	if source, err := o.sources.GetSource(task.SnapshotURL); err != nil {
		slog.Error("Failed to check snapshot source", "feed", fd.GUID, "error", err)
		return nil
	} else if source == nil {
		archiveSource := database.FeedSource{
			FeedURL:          task.SnapshotURL,
			ReferencedFeed:   fd.GUID,
			ActivelyUpdating: false,
			LastUpdated:      task.Timestamp,
			LastFetched:      result.Timestamp,
			Archive:          true,
		}
		if err := o.sources.Upsert(archiveSource, database.SourceUpsertPolicy); err != nil {
			slog.Error("Failed to create archive source", "feed", fd.GUID, "snapshot", task.SnapshotURL, "error", err)
			return nil
		}
	}

	if err := o.storeFile(fd.GUID, task.SnapshotURL, result); err != nil {
		slog.Error("Failed to store snapshot payload", "feed", fd.GUID, "snapshot", task.SnapshotURL, "error", err)
		return nil
	}

	// Historical items must never clobber current rows.
	o.storeItems(fd.GUID, items, database.ItemUpsertPolicy.Deferred())

	slog.Info("Snapshot backfilled", "feed", fd.GUID, "snapshot", task.SnapshotURL, "items", len(items))
	return nil
}

func (o *Orchestrator) handleExtractContent(msg *message.Message) error {
	task, err := decodePayload[ExtractContentTask](msg)
	if err != nil {
		slog.Error("Dropping malformed extract-content task", "error", err)
		return nil
	}

	ctx := msg.Context()

	fd, err := o.feeds.GetFeed(task.FeedGUID)
	if err != nil || fd == nil || fd.Type != database.FeedTypeBlog {
		return nil
	}

	items, err := o.items.GetItemsForExtraction(fd.GUID, extractBatchSize)
	if err != nil {
		slog.Error("Failed to load items for extraction", "feed", fd.GUID, "error", err)
		return nil
	}

	for _, item := range items {
		if err := o.extractItemContent(ctx, item); err != nil {
			slog.Warn("Content extraction failed", "item", item.GUID, "url", item.Link, "error", err)
		}
	}

	return nil
}

func (o *Orchestrator) extractItemContent(ctx context.Context, item database.FeedItem) error {
	body, err := o.fetchArticle(ctx, item.Link)
	if err != nil {
		return err
	}

	content, err := o.extractor.Extract(body)
	if err != nil {
		return err
	}

	if err := o.items.UpdateEncodedContent(item.GUID, content); err != nil {
		return err
	}

	record := item
	record.EncodedContent = content
	o.indexItem(record)

	return nil
}

func (o *Orchestrator) fetchArticle(ctx context.Context, url string) ([]byte, error) {
	body, contentType, err := o.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}
	return body, nil
}

func (o *Orchestrator) plainGet(ctx context.Context, url string) ([]byte, error) {
	body, _, err := o.get(ctx, url)
	return body, err
}

func (o *Orchestrator) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
