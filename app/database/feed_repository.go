package database

import (
	"database/sql"
	"fmt"
	"strings"
)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

var feedColumns = []string{
	"guid", "input_url", "source_url", "title", "alias", "description",
	"author", "type", "ongoing", "active", "image_src", "image_alt",
	"last_updated", "update_frequency", "link", "categories",
}

func (r *feedRepository) GetFeed(guid string) (*Feed, error) {
	query := fmt.Sprintf("SELECT %s FROM feeds WHERE guid = ?", strings.Join(feedColumns, ", "))

	feed, err := scanFeed(r.db.QueryRow(query, guid))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *feedRepository) GetActiveFeeds() ([]FeedSummary, error) {
	query := fmt.Sprintf(`
		SELECT %s,
			EXISTS (SELECT 1 FROM feed_items i WHERE i.source_feed = feeds.guid AND i.finished = 0),
			EXISTS (SELECT 1 FROM feed_sources s WHERE s.referenced_feed = feeds.guid AND s.archive = 1)
		FROM feeds
		WHERE active = 1
		ORDER BY title`, strings.Join(feedColumns, ", "))

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active feeds: %w", err)
	}
	defer rows.Close()

	var feeds []FeedSummary
	for rows.Next() {
		var summary FeedSummary
		var ongoing sql.NullBool
		var categories string

		err := rows.Scan(&summary.GUID, &summary.InputURL, &summary.SourceURL,
			&summary.Title, &summary.Alias, &summary.Description, &summary.Author,
			&summary.Type, &ongoing, &summary.Active, &summary.ImageSrc,
			&summary.ImageAlt, &summary.LastUpdated, &summary.UpdateFrequency,
			&summary.Link, &categories, &summary.HasUnread, &summary.HasArchives)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}

		if ongoing.Valid {
			summary.Ongoing = &ongoing.Bool
		}
		summary.Categories = decodeList(categories)

		feeds = append(feeds, summary)
	}

	return feeds, rows.Err()
}

func (r *feedRepository) Upsert(feed Feed, policy UpsertPolicy) error {
	query := buildUpsert("feeds", []string{"guid"}, feedColumns, policy)

	_, err := r.db.Exec(query,
		feed.GUID, feed.InputURL, feed.SourceURL, feed.Title, feed.Alias,
		feed.Description, feed.Author, feed.Type, nullableBool(feed.Ongoing),
		feed.Active, feed.ImageSrc, feed.ImageAlt, feed.LastUpdated,
		feed.UpdateFrequency, feed.Link, encodeList(feed.Categories))
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

func (r *feedRepository) UpdateAlias(guid string, alias string) error {
	_, err := r.db.Exec("UPDATE feeds SET alias = ? WHERE guid = ?", alias, guid)
	if err != nil {
		return fmt.Errorf("failed to update alias: %w", err)
	}
	return nil
}

func (r *feedRepository) UpdateCategories(guid string, categories []string) error {
	_, err := r.db.Exec("UPDATE feeds SET categories = ? WHERE guid = ?", encodeList(categories), guid)
	if err != nil {
		return fmt.Errorf("failed to update categories: %w", err)
	}
	return nil
}

func (r *feedRepository) GetFeedCounts() (int, int, error) {
	var total, active int
	err := r.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(active), 0) FROM feeds").Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return total, active, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var feed Feed
	var ongoing sql.NullBool
	var categories string

	err := row.Scan(&feed.GUID, &feed.InputURL, &feed.SourceURL, &feed.Title,
		&feed.Alias, &feed.Description, &feed.Author, &feed.Type, &ongoing,
		&feed.Active, &feed.ImageSrc, &feed.ImageAlt, &feed.LastUpdated,
		&feed.UpdateFrequency, &feed.Link, &categories)
	if err != nil {
		return nil, err
	}

	if ongoing.Valid {
		feed.Ongoing = &ongoing.Bool
	}
	feed.Categories = decodeList(categories)

	return &feed, nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

// encodeList stores a string slice as a comma-separated column value.
func encodeList(values []string) string {
	return strings.Join(values, ",")
}

func decodeList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
