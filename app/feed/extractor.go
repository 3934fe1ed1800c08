package feed

import (
	"bytes"
	"fmt"

	"codeberg.org/readeck/go-readability"
)

// ContentExtractor pulls the readable article body out of a blog post's HTML
// page, for items whose feed entry carried no encoded content of its own.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Extract returns the article body as sanitized HTML. Pages readability
// cannot reduce to an article (index pages, paywalls, empty documents) are
// reported as errors so the item stays eligible for a later attempt.
func (e *ContentExtractor) Extract(page []byte) (string, error) {
	if len(page) == 0 {
		return "", fmt.Errorf("article page is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(page), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract article: %w", err)
	}
	if article.Content == "" {
		return "", fmt.Errorf("page has no extractable article body")
	}

	return article.Content, nil
}
