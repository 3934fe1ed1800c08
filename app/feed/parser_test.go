package feed

import (
	"testing"
	"time"

	"github.com/tmthyln/iris/app/database"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"1:23:45", 5025},
		{"45:30", 2730},
		{"90", 90},
		{"0", 0},
		{"", 0},
		{"abc", 0},
		{"1:2:3:4", 0},
		{" 10:00 ", 600},
	}

	for _, tt := range tests {
		if got := ParseDuration(tt.input); got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestSplitKeywords(t *testing.T) {
	got := SplitKeywords(" go , programming,, feeds ")
	want := []string{"go", "programming", "feeds"}

	if len(got) != len(want) {
		t.Fatalf("Expected %d keywords, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected keyword %q at %d, got %q", want[i], i, got[i])
		}
	}

	if SplitKeywords("") != nil {
		t.Error("Empty input should produce nil")
	}
}

const podcastXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
	xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"
	xmlns:podcast="https://podcastindex.org/namespace/1.0"
	xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
	<title>Test Podcast</title>
	<link>https://example.com</link>
	<description>A test podcast</description>
	<pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
	<itunes:author>Jane Host</itunes:author>
	<itunes:summary>Summary text</itunes:summary>
	<podcast:guid>pod-guid-123</podcast:guid>
	<itunes:image href="https://example.com/cover.jpg"/>
	<item>
		<title>Episode Zero</title>
		<guid>ep-0</guid>
		<link>https://example.com/ep0</link>
		<pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
		<itunes:season>0</itunes:season>
		<itunes:episode>0</itunes:episode>
		<itunes:duration>1:23:45</itunes:duration>
		<itunes:keywords>go, testing</itunes:keywords>
		<enclosure url="https://example.com/ep0.mp3" length="12345678" type="audio/mpeg"/>
		<content:encoded><![CDATA[<p>Show notes</p>]]></content:encoded>
	</item>
</channel>
</rss>`

func TestParsePodcastChannel(t *testing.T) {
	parser := NewParser()

	channel, items, err := parser.Run([]byte(podcastXML))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if channel.GUID != "pod-guid-123" {
		t.Errorf("Expected podcast:guid to win, got %q", channel.GUID)
	}
	if channel.Type != database.FeedTypePodcast {
		t.Errorf("Expected podcast classification, got %q", channel.Type)
	}
	if channel.Title != "Test Podcast" {
		t.Errorf("Expected title 'Test Podcast', got %q", channel.Title)
	}
	if channel.Author != "Jane Host" {
		t.Errorf("Expected author 'Jane Host', got %q", channel.Author)
	}
	if channel.ImageSrc != "https://example.com/cover.jpg" {
		t.Errorf("Expected itunes image, got %q", channel.ImageSrc)
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !channel.LastUpdated.Equal(want) {
		t.Errorf("Expected last updated %v, got %v", want, channel.LastUpdated)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	item := items[0]

	if item.GUID != "ep-0" {
		t.Errorf("Expected guid 'ep-0', got %q", item.GUID)
	}
	// Zero is a valid value for season and episode, distinct from absent.
	if item.Season == nil || *item.Season != 0 {
		t.Errorf("Expected season 0, got %v", item.Season)
	}
	if item.Episode == nil || *item.Episode != 0 {
		t.Errorf("Expected episode 0, got %v", item.Episode)
	}
	if item.Duration != 5025 {
		t.Errorf("Expected duration 5025, got %d", item.Duration)
	}
	if item.EnclosureURL != "https://example.com/ep0.mp3" {
		t.Errorf("Expected enclosure URL, got %q", item.EnclosureURL)
	}
	if item.EnclosureLength != 12345678 {
		t.Errorf("Expected enclosure length 12345678, got %d", item.EnclosureLength)
	}
	if item.EnclosureType != "audio/mpeg" {
		t.Errorf("Expected enclosure type 'audio/mpeg', got %q", item.EnclosureType)
	}
	if item.EncodedContent != "<p>Show notes</p>" {
		t.Errorf("Expected encoded content, got %q", item.EncodedContent)
	}
	if len(item.Keywords) != 2 || item.Keywords[0] != "go" || item.Keywords[1] != "testing" {
		t.Errorf("Expected keywords [go testing], got %v", item.Keywords)
	}
}

const blogXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Test Blog</title>
	<link>https://blog.example.com</link>
	<description>A test blog</description>
	<item>
		<title>First Post</title>
		<link>https://blog.example.com/first</link>
		<description>Hello</description>
	</item>
</channel>
</rss>`

func TestParseBlogChannel(t *testing.T) {
	parser := NewParser()

	channel, items, err := parser.Run([]byte(blogXML))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if channel.Type != database.FeedTypeBlog {
		t.Errorf("Expected blog classification, got %q", channel.Type)
	}
	// No podcast:guid and no explicit guid: the title is the fallback identity.
	if channel.GUID != "Test Blog" {
		t.Errorf("Expected title fallback guid, got %q", channel.GUID)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	item := items[0]

	// No guid element: the title is the fallback identity.
	if item.GUID != "First Post" {
		t.Errorf("Expected title fallback guid, got %q", item.GUID)
	}
	if item.Season != nil {
		t.Errorf("Expected absent season, got %v", *item.Season)
	}
	if item.Date != nil {
		t.Errorf("Expected absent date, got %v", item.Date)
	}
	if item.Duration != 0 {
		t.Errorf("Expected duration 0, got %d", item.Duration)
	}
}

func TestParseMalformedDocument(t *testing.T) {
	parser := NewParser()

	if _, _, err := parser.Run([]byte("not a feed at all")); err == nil {
		t.Error("Expected error for malformed document")
	}
	if _, _, err := parser.Run([]byte("<html><body>a page</body></html>")); err == nil {
		t.Error("Expected error for non-feed XML")
	}
}

func TestResolveExtPathPrefersTextOverAttributes(t *testing.T) {
	const xml = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
	<title>T</title>
	<itunes:summary>plain summary</itunes:summary>
	<item>
		<title>E</title>
		<guid isPermaLink="false">tagged-guid</guid>
	</item>
</channel>
</rss>`

	parser := NewParser()
	_, items, err := parser.Run([]byte(xml))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	// A guid element with attributes still resolves to its text content.
	if items[0].GUID != "tagged-guid" {
		t.Errorf("Expected text content 'tagged-guid', got %q", items[0].GUID)
	}
}

func TestClassifyChannelPodcastNamespaceOnly(t *testing.T) {
	const xml = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0">
<channel>
	<title>Locked Feed</title>
	<podcast:locked>yes</podcast:locked>
</channel>
</rss>`

	parser := NewParser()
	channel, _, err := parser.Run([]byte(xml))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if channel.Type != database.FeedTypePodcast {
		t.Errorf("Expected podcast classification from podcast:locked, got %q", channel.Type)
	}
}
