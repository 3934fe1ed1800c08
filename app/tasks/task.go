package tasks

import (
	"time"
)

// Topic per task kind. Delivery is at-least-once; every handler tolerates
// replays.
const (
	TopicRefreshFeed          = "refresh-feed"
	TopicPlanFeedArchives     = "plan-feed-archives"
	TopicFetchArchiveSnapshot = "fetch-archive-snapshot"
	TopicExtractContent       = "extract-content"
)

type RefreshFeedTask struct {
	FeedGUID string `json:"feed_guid"`
}

type PlanFeedArchivesTask struct {
	FeedGUID string `json:"feed_guid"`
}

type FetchArchiveSnapshotTask struct {
	FeedGUID    string    `json:"feed_guid"`
	SourceURL   string    `json:"source_url"`
	SnapshotURL string    `json:"snapshot_url"`
	Timestamp   time.Time `json:"timestamp"`
}

type ExtractContentTask struct {
	FeedGUID string `json:"feed_guid"`
}
