package database

import (
	"fmt"
	"slices"
	"strings"
)

type ConflictMode int

const (
	// ConflictIgnore leaves the existing row untouched.
	ConflictIgnore ConflictMode = iota
	// ConflictUpdate overwrites the existing row except for excluded columns.
	ConflictUpdate
)

// UpsertPolicy controls what an Upsert does when the row already exists.
// ExcludedColumns are never overwritten on conflict; key columns are always
// excluded implicitly.
type UpsertPolicy struct {
	OnConflict      ConflictMode
	ExcludedColumns []string
}

// Deferred returns the insert-or-ignore variant of the policy, used when
// replaying historical content that must never clobber current rows.
func (p UpsertPolicy) Deferred() UpsertPolicy {
	return UpsertPolicy{OnConflict: ConflictIgnore}
}

// Per-entity policies. Excluded columns are either identity (set once at
// insert) or user-owned state that re-ingestion must not overwrite.
var (
	FeedUpsertPolicy = UpsertPolicy{
		OnConflict:      ConflictUpdate,
		ExcludedColumns: []string{"guid", "input_url", "alias", "active", "categories"},
	}
	SourceUpsertPolicy = UpsertPolicy{
		OnConflict:      ConflictUpdate,
		ExcludedColumns: []string{"feed_url"},
	}
	FileUpsertPolicy = UpsertPolicy{
		OnConflict: ConflictIgnore,
	}
	ItemUpsertPolicy = UpsertPolicy{
		OnConflict:      ConflictUpdate,
		ExcludedColumns: []string{"guid", "source_feed", "finished", "progress", "bookmarked"},
	}
)

// buildUpsert assembles an INSERT ... ON CONFLICT statement with one
// placeholder per column. sqlite requires an explicit conflict target for
// DO UPDATE, so the key columns are passed alongside the policy.
func buildUpsert(table string, keyColumns []string, columns []string, policy UpsertPolicy) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		table, strings.Join(columns, ", "), placeholders, strings.Join(keyColumns, ", "))

	if policy.OnConflict == ConflictIgnore {
		b.WriteString(" DO NOTHING")
		return b.String()
	}

	var assignments []string
	for _, col := range columns {
		if slices.Contains(keyColumns, col) || slices.Contains(policy.ExcludedColumns, col) {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	if len(assignments) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}

	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(assignments, ", "))
	return b.String()
}
