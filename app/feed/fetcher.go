package feed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// Accept header preferring feed documents but tolerating generic XML.
	rssAcceptHeader  = "application/rss+xml, application/rdf+xml;q=0.8, application/atom+xml;q=0.6, application/xml;q=0.4, text/xml;q=0.4"
	htmlAcceptHeader = "text/html"

	// How many discovered feed links may be followed before giving up.
	maxFeedLinkHops = 5

	doctypeSniffLen = 2000
	botSniffLen     = 5000
)

// Fetch failure reasons surfaced to callers.
const (
	ReasonBotProtected = "blocked-by-bot-protection"
	ReasonNoFeedLink   = "no-rss-link-found"
)

// FetchError is a terminal fetch outcome with a machine-readable reason.
type FetchError struct {
	Reason string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %s", e.Reason)
}

func upstreamError(status int) *FetchError {
	return &FetchError{Reason: fmt.Sprintf("upstream-error-%d", status), Status: status}
}

// FetchResult is a successfully retrieved feed payload.
type FetchResult struct {
	Content     []byte
	Timestamp   time.Time
	RequestURL  string
	ContentHash string
}

type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
	}
}

// Fetch retrieves the feed document reachable from rawURL, rewriting known
// vendor URL shapes and following feed links discovered in HTML pages.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	return f.fetch(ctx, rawURL, 0)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, hops int) (*FetchResult, error) {
	if rewritten := resolveKnownFeedURL(rawURL); rewritten != "" {
		slog.Debug("Rewriting known feed URL", "url", rawURL, "rewritten", rewritten)
		// Rewritten URLs never match a rewrite rule again, so hops is safe to keep.
		return f.fetch(ctx, rewritten, hops)
	}

	if hops > maxFeedLinkHops {
		return nil, &FetchError{Reason: ReasonNoFeedLink}
	}

	body, status, err := f.get(ctx, rawURL, rssAcceptHeader)
	if err != nil {
		return nil, err
	}

	if status == http.StatusOK {
		if !looksLikeHTML(body) {
			return newFetchResult(rawURL, body), nil
		}
		if isBotChallengePage(body) {
			return nil, &FetchError{Reason: ReasonBotProtected}
		}
		if link := extractFeedLink(rawURL, body); link != "" {
			return f.fetch(ctx, link, hops+1)
		}
	}

	// The RSS-preferring request got either a non-feed page or an error;
	// retry asking for HTML, which some servers handle differently.
	htmlBody, htmlStatus, err := f.get(ctx, rawURL, htmlAcceptHeader)
	if err == nil && htmlStatus == http.StatusOK {
		if isBotChallengePage(htmlBody) {
			return nil, &FetchError{Reason: ReasonBotProtected}
		}
		if link := extractFeedLink(rawURL, htmlBody); link != "" {
			return f.fetch(ctx, link, hops+1)
		}
	}

	if status == http.StatusOK {
		return nil, &FetchError{Reason: ReasonNoFeedLink}
	}
	return nil, upstreamError(status)
}

func (f *Fetcher) get(ctx context.Context, rawURL string, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}

// NewSnapshotResult wraps an already-retrieved payload, such as an archive
// snapshot, in the same result shape a live fetch produces.
func NewSnapshotResult(requestURL string, body []byte) *FetchResult {
	return newFetchResult(requestURL, body)
}

func newFetchResult(requestURL string, body []byte) *FetchResult {
	hash := sha256.Sum256(body)
	return &FetchResult{
		Content:     body,
		Timestamp:   time.Now().UTC(),
		RequestURL:  requestURL,
		ContentHash: hex.EncodeToString(hash[:]),
	}
}

var (
	mediumUserPattern        = regexp.MustCompile(`^https?://medium\.com/@([^/?#]+)`)
	mediumSubdomainPattern   = regexp.MustCompile(`^https?://([^./?#]+)\.medium\.com`)
	mediumPublicationPattern = regexp.MustCompile(`^https?://medium\.com/([^/?#]+)`)
)

// resolveKnownFeedURL rewrites page URLs of known vendors into their feed
// URLs. Returns "" when no rule matches. Rewritten URLs never match a rule
// again, so rewriting cannot loop.
func resolveKnownFeedURL(rawURL string) string {
	if m := mediumUserPattern.FindStringSubmatch(rawURL); m != nil {
		return "https://medium.com/feed/@" + m[1]
	}
	if m := mediumSubdomainPattern.FindStringSubmatch(rawURL); m != nil {
		return fmt.Sprintf("https://medium.com/feed/@%s", m[1])
	}
	if m := mediumPublicationPattern.FindStringSubmatch(rawURL); m != nil {
		if name := m[1]; name != "feed" && !strings.HasPrefix(name, "@") {
			return "https://medium.com/feed/" + name
		}
	}
	return ""
}

func looksLikeHTML(body []byte) bool {
	head := body
	if len(head) > doctypeSniffLen {
		head = head[:doctypeSniffLen]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<!doctype html"))
}

// isBotChallengePage recognizes Cloudflare interstitial challenge pages.
func isBotChallengePage(body []byte) bool {
	head := body
	if len(head) > botSniffLen {
		head = head[:botSniffLen]
	}
	page := strings.ToLower(string(head))

	if strings.Contains(page, "_cf_chl_opt") || strings.Contains(page, "challenge-platform") {
		return true
	}
	return strings.Contains(page, "just a moment") && strings.Contains(page, "cf-")
}

var feedLinkTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// extractFeedLink finds the first advertised feed link in an HTML document,
// resolved against the page URL.
func extractFeedLink(pageURL string, body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("head link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		linkType, _ := s.Attr("type")
		href, _ := s.Attr("href")
		if feedLinkTypes[strings.ToLower(strings.TrimSpace(linkType))] && href != "" {
			found = href
			return false
		}
		return true
	})

	if found == "" {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return found
	}
	ref, err := url.Parse(found)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
