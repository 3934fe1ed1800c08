package api

import (
	"time"

	"github.com/tmthyln/iris/app/database"
	"github.com/tmthyln/iris/app/queue"
	"github.com/tmthyln/iris/app/tasks"
)

type Handler struct {
	feeds     database.FeedRepository
	sources   database.SourceRepository
	files     database.FileRepository
	items     database.ItemRepository
	search    database.SearchRepository
	queue     *queue.Queue
	ingestor  *tasks.Ingestor
	publisher *tasks.Publisher
}

type feedResponse struct {
	GUID            string    `json:"guid"`
	SourceURL       string    `json:"source_url"`
	Title           string    `json:"title"`
	Alias           string    `json:"alias"`
	Description     string    `json:"description"`
	Author          string    `json:"author"`
	Type            string    `json:"type"`
	Ongoing         *bool     `json:"ongoing"`
	Active          bool      `json:"active"`
	ImageSrc        string    `json:"image_src"`
	ImageAlt        string    `json:"image_alt"`
	LastUpdated     time.Time `json:"last_updated"`
	UpdateFrequency int       `json:"update_frequency"`
	Link            string    `json:"link"`
	Categories      []string  `json:"categories"`
	HasUnread       *bool     `json:"has_unread,omitempty"`
	HasArchives     *bool     `json:"has_archives,omitempty"`
}

type itemResponse struct {
	GUID            string     `json:"guid"`
	SourceFeed      string     `json:"source_feed"`
	Season          *int       `json:"season"`
	Episode         *int       `json:"episode"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Link            string     `json:"link"`
	Date            *time.Time `json:"date"`
	EnclosureURL    string     `json:"enclosure_url,omitempty"`
	EnclosureLength int64      `json:"enclosure_length,omitempty"`
	EnclosureType   string     `json:"enclosure_type,omitempty"`
	Duration        int        `json:"duration"`
	Keywords        []string   `json:"keywords"`
	Finished        bool       `json:"finished"`
	Progress        float64    `json:"progress"`
	Bookmarked      bool       `json:"bookmarked"`
	EncodedContent  string     `json:"encoded_content,omitempty"`
}

func newFeedResponse(feed database.Feed) feedResponse {
	categories := feed.Categories
	if categories == nil {
		categories = []string{}
	}

	return feedResponse{
		GUID:            feed.GUID,
		SourceURL:       feed.SourceURL,
		Title:           feed.Title,
		Alias:           feed.Alias,
		Description:     feed.Description,
		Author:          feed.Author,
		Type:            feed.Type,
		Ongoing:         feed.Ongoing,
		Active:          feed.Active,
		ImageSrc:        feed.ImageSrc,
		ImageAlt:        feed.ImageAlt,
		LastUpdated:     feed.LastUpdated,
		UpdateFrequency: feed.UpdateFrequency,
		Link:            feed.Link,
		Categories:      categories,
	}
}

func newFeedSummaryResponse(summary database.FeedSummary) feedResponse {
	response := newFeedResponse(summary.Feed)
	response.HasUnread = &summary.HasUnread
	response.HasArchives = &summary.HasArchives
	return response
}

// newItemResponse renders an item; the full encoded body is only included
// on detail views.
func newItemResponse(item database.FeedItem, includeContent bool) itemResponse {
	keywords := item.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	response := itemResponse{
		GUID:            item.GUID,
		SourceFeed:      item.SourceFeed,
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
		Keywords:        keywords,
		Finished:        item.Finished,
		Progress:        item.Progress,
		Bookmarked:      item.Bookmarked,
	}

	if includeContent {
		response.EncodedContent = item.EncodedContent
	}

	return response
}

func newItemResponses(items []database.FeedItem) []itemResponse {
	responses := make([]itemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, newItemResponse(item, false))
	}
	return responses
}
