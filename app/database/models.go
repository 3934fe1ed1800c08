package database

import (
	"time"
)

const (
	FeedTypePodcast = "podcast"
	FeedTypeBlog    = "blog"
)

// Feed is the logical publication identified by its channel GUID. A feed can
// be reachable through several FeedSources over its lifetime.
type Feed struct {
	GUID            string
	InputURL        string
	SourceURL       string
	Title           string
	Alias           string
	Description     string
	Author          string
	Type            string
	Ongoing         *bool
	Active          bool
	ImageSrc        string
	ImageAlt        string
	LastUpdated     time.Time
	UpdateFrequency int
	Link            string
	Categories      []string
	CreatedAt       time.Time
}

// FeedSummary is a Feed plus the derived flags the listing endpoint reports.
type FeedSummary struct {
	Feed
	HasUnread   bool
	HasArchives bool
}

// FeedSource is a concrete URL a feed's content has been fetched from,
// including Wayback snapshot URLs (Archive true).
type FeedSource struct {
	FeedURL          string
	ReferencedFeed   string
	ActivelyUpdating bool
	LastUpdated      time.Time
	LastFetched      time.Time
	Archive          bool
	PrimarySource    bool
}

// FeedFile records one unique raw payload, keyed by its content hash.
// CachedFile is the blob store key holding the raw bytes.
type FeedFile struct {
	SHA256Hash     string
	FeedURL        string
	ReferencedFeed string
	FetchedAt      time.Time
	CachedFile     string
}

// FeedItem is a normalized entry. Season and Episode are pointers because
// zero is a valid value for both.
type FeedItem struct {
	GUID            string
	SourceFeed      string
	Season          *int
	Episode         *int
	Title           string
	Description     string
	Link            string
	Date            *time.Time
	EnclosureURL    string
	EnclosureLength int64
	EnclosureType   string
	Duration        int
	EncodedContent  string
	Keywords        []string
	Finished        bool
	Progress        float64
	Bookmarked      bool
	CreatedAt       time.Time
}

// DateRange is the publication span of a feed's items.
type DateRange struct {
	Earliest time.Time
	Latest   time.Time
}

// SearchEntry mirrors one row of the text_search FTS table.
type SearchEntry struct {
	GUID        string
	TableName   string
	Title       string
	Alias       string
	Description string
	Author      string
	Content     string
	Categories  string
	Keywords    string
}
