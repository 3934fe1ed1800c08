package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/extensions"

	"github.com/tmthyln/iris/app/database"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses a raw feed document into the normalized channel and item
// representations. Each logical field coalesces over an ordered list of
// candidate locations; only missing or empty values fall through.
func (p *Parser) Run(data []byte) (*Channel, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	channel := p.normalizeChannel(feed)

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, p.normalizeItem(item))
	}

	return channel, items, nil
}

func (p *Parser) normalizeChannel(feed *gofeed.Feed) *Channel {
	channel := &Channel{
		GUID: cmp.Or(
			extText(feed.Extensions, "podcast:guid"),
			feed.Custom["guid"],
			feed.Custom["id"],
			feed.Title,
		),
		SourceURL:   cmp.Or(feed.Link, feed.FeedLink, itunesNewFeedURL(feed)),
		Title:       feed.Title,
		Description: cmp.Or(feed.Description, itunesFeedSummary(feed)),
		Author:      channelAuthor(feed),
		Type:        classifyChannel(feed),
		Link:        feed.Link,
		LastUpdated: time.Now().UTC(),
	}

	if feed.Image != nil {
		channel.ImageSrc = feed.Image.URL
		channel.ImageAlt = feed.Image.Title
		if channel.Title == "" {
			channel.Title = feed.Image.Title
		}
	}
	if channel.ImageSrc == "" {
		if it := feed.ITunesExt; it != nil {
			channel.ImageSrc = it.Image
		}
	}
	if channel.ImageSrc == "" {
		channel.ImageSrc = extText(feed.Extensions, "itunes:image.@href")
	}

	if feed.PublishedParsed != nil {
		channel.LastUpdated = *feed.PublishedParsed
	} else if feed.UpdatedParsed != nil {
		channel.LastUpdated = *feed.UpdatedParsed
	}

	return channel
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	it := item.ITunesExt
	if it == nil {
		it = &ext.ITunesItemExtension{}
	}

	normalized := Item{
		GUID:    cmp.Or(item.GUID, item.Title),
		Season:  parseIntValue(item.Custom["season"], it.Season, resolveExtPath(item.Extensions, "podcast:season")),
		Episode: parseIntValue(item.Custom["episode"], it.Episode, resolveExtPath(item.Extensions, "podcast:episode")),
		Title: cmp.Or(
			item.Title,
			extText(item.Extensions, "itunes:title"),
		),
		Description: cmp.Or(item.Description, it.Summary, it.Subtitle),
		Link:        item.Link,
		Duration:    ParseDuration(it.Duration),
		// content:encoded (or atom content) is mapped by gofeed already
		EncodedContent: item.Content,
		Keywords:       SplitKeywords(it.Keywords),
	}

	if item.PublishedParsed != nil {
		normalized.Date = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		normalized.Date = item.UpdatedParsed
	}

	// RSS 2.0 allows a single enclosure per item
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		normalized.EnclosureURL = enclosure.URL
		normalized.EnclosureType = enclosure.Type
		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				normalized.EnclosureLength = length
			}
		}
	}

	return normalized
}

var (
	// Channel-level markers that identify a podcast rather than a blog.
	itunesChannelKeys  = []string{"summary", "type", "author"}
	podcastChannelKeys = []string{"guid", "locked", "person", "podping"}
)

func classifyChannel(feed *gofeed.Feed) string {
	if feed.ITunesExt != nil {
		return database.FeedTypePodcast
	}
	if extHasAny(feed.Extensions, "itunes", itunesChannelKeys...) ||
		extHasAny(feed.Extensions, "podcast", podcastChannelKeys...) {
		return database.FeedTypePodcast
	}
	return database.FeedTypeBlog
}

func channelAuthor(feed *gofeed.Feed) string {
	for _, author := range feed.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}

	if it := feed.ITunesExt; it != nil {
		if it.Author != "" {
			return it.Author
		}
		if it.Owner != nil && it.Owner.Name != "" {
			return it.Owner.Name
		}
	}

	return extText(feed.Extensions, "itunes:author", "itunes:owner.name")
}

func itunesNewFeedURL(feed *gofeed.Feed) string {
	if it := feed.ITunesExt; it != nil && it.NewFeedURL != "" {
		return it.NewFeedURL
	}
	return extText(feed.Extensions, "itunes:new-feed-url")
}

func itunesFeedSummary(feed *gofeed.Feed) string {
	if it := feed.ITunesExt; it != nil {
		return it.Summary
	}
	return extText(feed.Extensions, "itunes:summary")
}
