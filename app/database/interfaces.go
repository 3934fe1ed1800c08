package database

import (
	"time"
)

type FeedRepository interface {
	GetFeed(guid string) (*Feed, error)
	GetActiveFeeds() ([]FeedSummary, error)
	Upsert(feed Feed, policy UpsertPolicy) error
	UpdateAlias(guid string, alias string) error
	UpdateCategories(guid string, categories []string) error
	GetFeedCounts() (total int, active int, err error)
}

type SourceRepository interface {
	GetSource(feedURL string) (*FeedSource, error)
	GetSourcesForFeed(feedGUID string) ([]FeedSource, error)
	GetUpdatableSources(feedGUID string) ([]FeedSource, error)
	HasArchiveSources(feedGUID string) (bool, error)
	Upsert(source FeedSource, policy UpsertPolicy) error
}

type FileRepository interface {
	GetFileByHash(sha256Hash string) (*FeedFile, error)
	GetFilesForFeed(feedGUID string) ([]FeedFile, error)
	Upsert(file FeedFile, policy UpsertPolicy) error
	GetFileCount() (int, error)
}

type ItemRepository interface {
	GetItem(guid string) (*FeedItem, error)
	GetItemsForFeed(feedGUID string, includeFinished bool, ascending bool, limit, offset int) ([]FeedItem, error)
	GetUnfinishedItems(limit, offset int) ([]FeedItem, error)
	GetBookmarkedItems(limit, offset int) ([]FeedItem, error)
	GetItemDateRange(feedGUID string) (*DateRange, error)
	GetItemsForExtraction(feedGUID string, limit int) ([]FeedItem, error)
	UpdateEncodedContent(guid string, content string) error
	UpdateItemState(guid string, finished *bool, progress *float64, bookmarked *bool) error
	Upsert(item FeedItem, policy UpsertPolicy) (inserted bool, err error)
	GetItemCount() (int, error)
}

type SearchRepository interface {
	Index(entry SearchEntry) error
	Search(query string, limit int) ([]SearchEntry, error)
}

// nullableTime converts a pointer into its sql representation.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
