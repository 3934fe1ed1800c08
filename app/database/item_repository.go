package database

import (
	"database/sql"
	"fmt"
	"strings"
)

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) ItemRepository {
	return &itemRepository{db: db}
}

var itemColumns = []string{
	"guid", "source_feed", "season", "episode", "title", "description",
	"link", "date", "enclosure_url", "enclosure_length", "enclosure_type",
	"duration", "encoded_content", "keywords", "finished", "progress", "bookmarked",
}

const itemSelect = `SELECT guid, source_feed, season, episode, title, description,
	link, date, enclosure_url, enclosure_length, enclosure_type, duration,
	encoded_content, keywords, finished, progress, bookmarked FROM feed_items`

func (r *itemRepository) GetItem(guid string) (*FeedItem, error) {
	item, err := scanItem(r.db.QueryRow(itemSelect+" WHERE guid = ?", guid))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) GetItemsForFeed(feedGUID string, includeFinished bool, ascending bool, limit, offset int) ([]FeedItem, error) {
	query := itemSelect + " WHERE source_feed = ?"
	if !includeFinished {
		query += " AND finished = 0"
	}
	if ascending {
		query += " ORDER BY date ASC LIMIT ? OFFSET ?"
	} else {
		query += " ORDER BY date DESC LIMIT ? OFFSET ?"
	}

	return r.queryItems(query, feedGUID, limit, offset)
}

// GetUnfinishedItems pages over unfinished items of active feeds, newest first.
func (r *itemRepository) GetUnfinishedItems(limit, offset int) ([]FeedItem, error) {
	query := itemSelect + ` WHERE finished = 0
		AND source_feed IN (SELECT guid FROM feeds WHERE active = 1)
		ORDER BY date DESC LIMIT ? OFFSET ?`

	return r.queryItems(query, limit, offset)
}

func (r *itemRepository) GetBookmarkedItems(limit, offset int) ([]FeedItem, error) {
	return r.queryItems(itemSelect+" WHERE bookmarked = 1 ORDER BY date DESC LIMIT ? OFFSET ?", limit, offset)
}

func (r *itemRepository) GetItemDateRange(feedGUID string) (*DateRange, error) {
	var earliest, latest sql.NullTime
	err := r.db.QueryRow(
		"SELECT MIN(date), MAX(date) FROM feed_items WHERE source_feed = ? AND date IS NOT NULL",
		feedGUID).Scan(&earliest, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get item date range: %w", err)
	}

	if !earliest.Valid || !latest.Valid {
		return nil, nil
	}

	return &DateRange{Earliest: earliest.Time, Latest: latest.Time}, nil
}

// GetItemsForExtraction returns items with a link but no extracted body yet.
func (r *itemRepository) GetItemsForExtraction(feedGUID string, limit int) ([]FeedItem, error) {
	return r.queryItems(itemSelect+
		" WHERE source_feed = ? AND encoded_content = '' AND link != '' ORDER BY date DESC LIMIT ?",
		feedGUID, limit)
}

func (r *itemRepository) UpdateEncodedContent(guid string, content string) error {
	_, err := r.db.Exec("UPDATE feed_items SET encoded_content = ? WHERE guid = ?", content, guid)
	if err != nil {
		return fmt.Errorf("failed to update encoded content: %w", err)
	}
	return nil
}

// UpdateItemState patches the user-owned fields; nil means leave unchanged.
func (r *itemRepository) UpdateItemState(guid string, finished *bool, progress *float64, bookmarked *bool) error {
	var assignments []string
	var args []any

	if finished != nil {
		assignments = append(assignments, "finished = ?")
		args = append(args, *finished)
	}
	if progress != nil {
		assignments = append(assignments, "progress = ?")
		args = append(args, *progress)
	}
	if bookmarked != nil {
		assignments = append(assignments, "bookmarked = ?")
		args = append(args, *bookmarked)
	}

	if len(assignments) == 0 {
		return nil
	}

	args = append(args, guid)
	query := fmt.Sprintf("UPDATE feed_items SET %s WHERE guid = ?", strings.Join(assignments, ", "))
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update item state: %w", err)
	}
	return nil
}

// Upsert writes the item and reports whether a row was actually written:
// false means the conflict policy ignored an existing row.
func (r *itemRepository) Upsert(item FeedItem, policy UpsertPolicy) (bool, error) {
	query := buildUpsert("feed_items", []string{"guid"}, itemColumns, policy)

	result, err := r.db.Exec(query,
		item.GUID, item.SourceFeed, nullableInt(item.Season), nullableInt(item.Episode),
		item.Title, item.Description, item.Link, nullableTime(item.Date),
		item.EnclosureURL, item.EnclosureLength, item.EnclosureType, item.Duration,
		item.EncodedContent, encodeList(item.Keywords), item.Finished,
		item.Progress, item.Bookmarked)
	if err != nil {
		return false, fmt.Errorf("failed to upsert feed item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check upsert result: %w", err)
	}
	return affected > 0, nil
}

func (r *itemRepository) GetItemCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM feed_items").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feed items: %w", err)
	}
	return count, nil
}

func (r *itemRepository) queryItems(query string, args ...any) ([]FeedItem, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed items: %w", err)
	}
	defer rows.Close()

	var items []FeedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

func scanItem(row rowScanner) (*FeedItem, error) {
	var item FeedItem
	var season, episode sql.NullInt64
	var date sql.NullTime
	var keywords string

	err := row.Scan(&item.GUID, &item.SourceFeed, &season, &episode, &item.Title,
		&item.Description, &item.Link, &date, &item.EnclosureURL,
		&item.EnclosureLength, &item.EnclosureType, &item.Duration,
		&item.EncodedContent, &keywords, &item.Finished, &item.Progress,
		&item.Bookmarked)
	if err != nil {
		return nil, err
	}

	if season.Valid {
		s := int(season.Int64)
		item.Season = &s
	}
	if episode.Valid {
		e := int(episode.Int64)
		item.Episode = &e
	}
	if date.Valid {
		d := date.Time
		item.Date = &d
	}
	item.Keywords = decodeList(keywords)

	return &item, nil
}
