// Package queue maintains the ordered playback queue. All operations are
// serialized through one mutex; ordinals are contiguous from 0 after every
// mutation.
package queue

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tmthyln/iris/app/database"
)

type Queue struct {
	db *database.DB
	mu sync.Mutex
}

func New(db *database.DB) *Queue {
	return &Queue{db: db}
}

// Items returns the queued item GUIDs in play order.
func (q *Queue) Items() ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items()
}

// Enqueue appends the item unless it is already queued. Returns the
// resulting queue.
func (q *Queue) Enqueue(guid string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.items()
	if err != nil {
		return nil, err
	}
	if slices.Contains(current, guid) {
		return current, nil
	}

	// Non-compacting removals leave ordinal gaps, so the next ordinal
	// comes from the highest one in use rather than the queue length.
	var next int
	if err := q.db.QueryRow("SELECT COALESCE(MAX(queue_order), -1) + 1 FROM queue_items").Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to find next queue position: %w", err)
	}

	_, err = q.db.Exec("INSERT INTO queue_items (queue_order, feed_item_guid) VALUES (?, ?)",
		next, guid)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue item: %w", err)
	}

	return append(current, guid), nil
}

// Insert places the item at the given position, moving it if already queued.
// Out-of-range positions clamp to the ends.
func (q *Queue) Insert(guid string, index int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.items()
	if err != nil {
		return nil, err
	}

	if i := slices.Index(current, guid); i >= 0 {
		current = slices.Delete(current, i, i+1)
	}

	if index < 0 {
		index = 0
	}
	if index > len(current) {
		index = len(current)
	}
	current = slices.Insert(current, index, guid)

	if err := q.rewrite(current); err != nil {
		return nil, err
	}
	return current, nil
}

// Remove deletes the item. With compact true the remaining ordinals are
// renumbered; otherwise the hole is left in place.
func (q *Queue) Remove(guid string, compact bool) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.db.Exec("DELETE FROM queue_items WHERE feed_item_guid = ?", guid); err != nil {
		return nil, fmt.Errorf("failed to remove queue item: %w", err)
	}

	current, err := q.items()
	if err != nil {
		return nil, err
	}

	if compact {
		if err := q.rewrite(current); err != nil {
			return nil, err
		}
	}
	return current, nil
}

// Clear empties the queue. With keepFirst true the head item stays at
// position 0.
func (q *Queue) Clear(keepFirst bool) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var keep []string
	if keepFirst {
		current, err := q.items()
		if err != nil {
			return nil, err
		}
		if len(current) > 0 {
			keep = current[:1]
		}
	}

	if err := q.rewrite(keep); err != nil {
		return nil, err
	}
	return keep, nil
}

// Length reports the current queue size.
func (q *Queue) Length() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM queue_items").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return count, nil
}

// items reads the queue in order; callers hold the mutex.
func (q *Queue) items() ([]string, error) {
	rows, err := q.db.Query("SELECT feed_item_guid FROM queue_items ORDER BY queue_order")
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	defer rows.Close()

	var guids []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		guids = append(guids, guid)
	}

	return guids, rows.Err()
}

// rewrite replaces the whole table with the given order inside one
// transaction, renumbering ordinals from 0.
func (q *Queue) rewrite(guids []string) error {
	tx, err := q.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin queue rewrite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM queue_items"); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	for i, guid := range guids {
		_, err := tx.Exec("INSERT INTO queue_items (queue_order, feed_item_guid) VALUES (?, ?)", i, guid)
		if err != nil {
			return fmt.Errorf("failed to write queue item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue rewrite: %w", err)
	}
	return nil
}
