package database

import (
	"fmt"
)

type searchRepository struct {
	db *DB
}

func NewSearchRepository(db *DB) SearchRepository {
	return &searchRepository{db: db}
}

// Index replaces the search row for an entity. fts5 has no ON CONFLICT
// support, so upsert is a manual delete plus insert.
func (r *searchRepository) Index(entry SearchEntry) error {
	_, err := r.db.Exec("DELETE FROM text_search WHERE guid = ? AND table_name = ?",
		entry.GUID, entry.TableName)
	if err != nil {
		return fmt.Errorf("failed to clear search entry: %w", err)
	}

	_, err = r.db.Exec(`INSERT INTO text_search
		(guid, table_name, title, alias, description, author, content, categories, keywords)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.GUID, entry.TableName, entry.Title, entry.Alias, entry.Description,
		entry.Author, entry.Content, entry.Categories, entry.Keywords)
	if err != nil {
		return fmt.Errorf("failed to index search entry: %w", err)
	}

	return nil
}

func (r *searchRepository) Search(query string, limit int) ([]SearchEntry, error) {
	rows, err := r.db.Query(`SELECT guid, table_name, title, alias, description,
		author, content, categories, keywords
		FROM text_search WHERE text_search MATCH ? ORDER BY rank LIMIT ?`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var entries []SearchEntry
	for rows.Next() {
		var entry SearchEntry
		err := rows.Scan(&entry.GUID, &entry.TableName, &entry.Title, &entry.Alias,
			&entry.Description, &entry.Author, &entry.Content, &entry.Categories,
			&entry.Keywords)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
