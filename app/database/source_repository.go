package database

import (
	"database/sql"
	"fmt"
)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

var sourceColumns = []string{
	"feed_url", "referenced_feed", "actively_updating", "last_updated",
	"last_fetched", "archive", "primary_source",
}

const sourceSelect = `SELECT feed_url, referenced_feed, actively_updating,
	last_updated, last_fetched, archive, primary_source FROM feed_sources`

func (r *sourceRepository) GetSource(feedURL string) (*FeedSource, error) {
	row := r.db.QueryRow(sourceSelect+" WHERE feed_url = ?", feedURL)

	var source FeedSource
	err := row.Scan(&source.FeedURL, &source.ReferencedFeed, &source.ActivelyUpdating,
		&source.LastUpdated, &source.LastFetched, &source.Archive, &source.PrimarySource)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed source: %w", err)
	}

	return &source, nil
}

func (r *sourceRepository) GetSourcesForFeed(feedGUID string) ([]FeedSource, error) {
	return r.querySources(sourceSelect+" WHERE referenced_feed = ? ORDER BY feed_url", feedGUID)
}

// GetUpdatableSources returns the sources a refresh should poll: actively
// updating and not archive snapshots.
func (r *sourceRepository) GetUpdatableSources(feedGUID string) ([]FeedSource, error) {
	return r.querySources(sourceSelect+
		" WHERE referenced_feed = ? AND actively_updating = 1 AND archive = 0 ORDER BY feed_url", feedGUID)
}

func (r *sourceRepository) HasArchiveSources(feedGUID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM feed_sources WHERE referenced_feed = ? AND archive = 1)",
		feedGUID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check archive sources: %w", err)
	}
	return exists, nil
}

func (r *sourceRepository) Upsert(source FeedSource, policy UpsertPolicy) error {
	query := buildUpsert("feed_sources", []string{"feed_url"}, sourceColumns, policy)

	_, err := r.db.Exec(query,
		source.FeedURL, source.ReferencedFeed, source.ActivelyUpdating,
		source.LastUpdated, source.LastFetched, source.Archive, source.PrimarySource)
	if err != nil {
		return fmt.Errorf("failed to upsert feed source: %w", err)
	}

	return nil
}

func (r *sourceRepository) querySources(query string, args ...any) ([]FeedSource, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed sources: %w", err)
	}
	defer rows.Close()

	var sources []FeedSource
	for rows.Next() {
		var source FeedSource
		err := rows.Scan(&source.FeedURL, &source.ReferencedFeed, &source.ActivelyUpdating,
			&source.LastUpdated, &source.LastFetched, &source.Archive, &source.PrimarySource)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed source: %w", err)
		}
		sources = append(sources, source)
	}

	return sources, rows.Err()
}
