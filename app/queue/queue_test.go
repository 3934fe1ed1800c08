package queue

import (
	"path/filepath"
	"testing"

	"github.com/tmthyln/iris/app/database"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return New(db)
}

func assertQueue(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected queue %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected queue %v, got %v", want, got)
		}
	}
}

func assertContiguous(t *testing.T, q *Queue) {
	t.Helper()

	rows, err := q.db.Query("SELECT queue_order FROM queue_items ORDER BY queue_order")
	if err != nil {
		t.Fatalf("Failed to read ordinals: %v", err)
	}
	defer rows.Close()

	next := 0
	for rows.Next() {
		var ord int
		if err := rows.Scan(&ord); err != nil {
			t.Fatalf("Failed to scan ordinal: %v", err)
		}
		if ord != next {
			t.Errorf("Expected ordinal %d, got %d", next, ord)
		}
		next++
	}
}

func TestEnqueueAppendsAndDeduplicates(t *testing.T) {
	q := newTestQueue(t)

	if _, err := q.Enqueue("a"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if _, err := q.Enqueue("b"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	got, err := q.Enqueue("a")
	if err != nil {
		t.Fatalf("Failed to re-enqueue: %v", err)
	}
	assertQueue(t, got, "a", "b")
	assertContiguous(t, q)
}

func TestInsertMovesExistingItem(t *testing.T) {
	q := newTestQueue(t)
	for _, guid := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(guid); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	got, err := q.Insert("c", 0)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	assertQueue(t, got, "c", "a", "b")
	assertContiguous(t, q)
}

func TestInsertClampsIndex(t *testing.T) {
	q := newTestQueue(t)
	for _, guid := range []string{"a", "b"} {
		if _, err := q.Enqueue(guid); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	got, err := q.Insert("x", 99)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	assertQueue(t, got, "a", "b", "x")

	got, err = q.Insert("y", -5)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	assertQueue(t, got, "y", "a", "b", "x")
	assertContiguous(t, q)
}

func TestRemoveWithCompaction(t *testing.T) {
	q := newTestQueue(t)
	for _, guid := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(guid); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	got, err := q.Remove("b", true)
	if err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}
	assertQueue(t, got, "a", "c")
	assertContiguous(t, q)

	// Removing an unknown guid is a no-op.
	got, err = q.Remove("nope", true)
	if err != nil {
		t.Fatalf("Remove of unknown guid should not error: %v", err)
	}
	assertQueue(t, got, "a", "c")
}

func TestEnqueueAfterNonCompactingRemove(t *testing.T) {
	q := newTestQueue(t)
	for _, guid := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(guid); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	// Leave a hole at ordinal 1.
	got, err := q.Remove("b", false)
	if err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}
	assertQueue(t, got, "a", "c")

	got, err = q.Enqueue("d")
	if err != nil {
		t.Fatalf("Failed to enqueue into a queue with gaps: %v", err)
	}
	assertQueue(t, got, "a", "c", "d")
}

func TestClear(t *testing.T) {
	q := newTestQueue(t)
	for _, guid := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(guid); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	got, err := q.Clear(true)
	if err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	assertQueue(t, got, "a")
	assertContiguous(t, q)

	got, err = q.Clear(false)
	if err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	assertQueue(t, got)

	length, err := q.Length()
	if err != nil {
		t.Fatalf("Failed to get length: %v", err)
	}
	if length != 0 {
		t.Errorf("Expected empty queue, got %d", length)
	}
}
