package database

import (
	"database/sql"
	"fmt"
)

type fileRepository struct {
	db *DB
}

func NewFileRepository(db *DB) FileRepository {
	return &fileRepository{db: db}
}

var fileColumns = []string{
	"sha256_hash", "feed_url", "referenced_feed", "fetched_at", "cached_file",
}

const fileSelect = `SELECT sha256_hash, feed_url, referenced_feed, fetched_at,
	cached_file FROM feed_files`

func (r *fileRepository) GetFileByHash(sha256Hash string) (*FeedFile, error) {
	row := r.db.QueryRow(fileSelect+" WHERE sha256_hash = ?", sha256Hash)

	var file FeedFile
	err := row.Scan(&file.SHA256Hash, &file.FeedURL, &file.ReferencedFeed,
		&file.FetchedAt, &file.CachedFile)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed file: %w", err)
	}

	return &file, nil
}

func (r *fileRepository) GetFilesForFeed(feedGUID string) ([]FeedFile, error) {
	rows, err := r.db.Query(fileSelect+" WHERE referenced_feed = ? ORDER BY fetched_at", feedGUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed files: %w", err)
	}
	defer rows.Close()

	var files []FeedFile
	for rows.Next() {
		var file FeedFile
		err := rows.Scan(&file.SHA256Hash, &file.FeedURL, &file.ReferencedFeed,
			&file.FetchedAt, &file.CachedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed file: %w", err)
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

func (r *fileRepository) Upsert(file FeedFile, policy UpsertPolicy) error {
	query := buildUpsert("feed_files", []string{"sha256_hash"}, fileColumns, policy)

	_, err := r.db.Exec(query,
		file.SHA256Hash, file.FeedURL, file.ReferencedFeed, file.FetchedAt, file.CachedFile)
	if err != nil {
		return fmt.Errorf("failed to upsert feed file: %w", err)
	}

	return nil
}

func (r *fileRepository) GetFileCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM feed_files").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feed files: %w", err)
	}
	return count, nil
}
