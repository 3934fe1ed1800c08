// Package archive plans historical backfill of feeds from the Wayback
// Machine's CDX snapshot index.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCDXEndpoint = "https://web.archive.org/cdx/search/cdx"

	// How far back snapshots are considered.
	lookbackYears = 15
)

// Snapshot is one CDX index entry for a captured URL.
type Snapshot struct {
	Timestamp time.Time
	Original  string
	Digest    string
}

type CDXClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	endpoint  string
}

// NewCDXClient builds a client rate-limited to one index query per second;
// the archive throttles aggressive clients.
func NewCDXClient(client *http.Client, userAgent string) *CDXClient {
	return &CDXClient{
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		userAgent: userAgent,
		endpoint:  defaultCDXEndpoint,
	}
}

// Snapshots queries the CDX index for captures of feedURL. Results are
// pre-collapsed server-side to at most one capture per day per distinct
// payload, successful captures only.
func (c *CDXClient) Snapshots(ctx context.Context, feedURL string) ([]Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("url", feedURL)
	query.Set("matchType", "prefix")
	query.Set("output", "json")
	query.Set("fl", "timestamp,original,digest")
	query.Set("from", strconv.Itoa(time.Now().Year()-lookbackYears))
	query.Set("filter", "statuscode:200")
	query.Add("collapse", "timestamp:8")
	query.Add("collapse", "digest")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create CDX request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query CDX index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CDX index returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read CDX response: %w", err)
	}

	return parseCDXResponse(body)
}

// parseCDXResponse decodes the CDX JSON format: an array of rows, the first
// being the field-name header.
func parseCDXResponse(body []byte) ([]Snapshot, error) {
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode CDX response: %w", err)
	}

	if len(rows) <= 1 {
		return nil, nil
	}

	snapshots := make([]Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 3 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Timestamp: WaybackTime(ts),
			Original:  row[1],
			Digest:    row[2],
		})
	}

	return snapshots, nil
}

// SnapshotURL builds the raw-content URL for a capture; the id_ suffix asks
// for the archived bytes without the Wayback toolbar injected.
func SnapshotURL(timestamp time.Time, original string) string {
	return fmt.Sprintf("https://web.archive.org/web/%sid_/%s",
		timestamp.UTC().Format("20060102150405"), original)
}

// WaybackTime converts a numeric Wayback timestamp (YYYYMMDD, optionally
// followed by HHMMSS) into a UTC time. Missing time-of-day components are
// zero-filled to midnight.
func WaybackTime(ts int64) time.Time {
	digits := strconv.FormatInt(ts, 10)
	if len(digits) < 8 {
		return time.Time{}
	}
	for len(digits) < 14 {
		digits += "0"
	}

	parsed, err := time.Parse("20060102150405", digits)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
