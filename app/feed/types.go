package feed

import (
	"time"
)

// Channel is the normalized channel-level view of a parsed feed document.
type Channel struct {
	GUID        string
	SourceURL   string
	Title       string
	Description string
	Author      string
	Type        string
	ImageSrc    string
	ImageAlt    string
	LastUpdated time.Time
	Link        string
}

// Item is one normalized entry of a parsed feed document. Season and Episode
// are pointers so that 0 stays distinguishable from absent.
type Item struct {
	GUID            string
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
}
