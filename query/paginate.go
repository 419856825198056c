package query

import (
	"iter"
	"slices"
)

// DefaultLimit is the page size used when no positive limit is given.
const DefaultLimit = 100

// Cursor describes the boundaries and size of a requested page.
type Cursor[K comparable] struct {
	// After skips through and including the item with this key.
	After *K
	// Before keeps only the items strictly preceding the item with this key.
	Before *K
	// Limit is the maximum number of items. Values <= 0 use DefaultLimit.
	Limit int
}

// PageInfo describes the position of a page within the full sequence.
type PageInfo[K comparable] struct {
	StartCursor     K    `json:"startCursor"`
	EndCursor       K    `json:"endCursor"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Page is one page of an ordered sequence.
type Page[T any, K comparable] struct {
	Items    []T         `json:"items"`
	PageInfo PageInfo[K] `json:"pageInfo"`
}

// Paginate returns one page of the already ordered sequence.
//
// The sequence is consumed in a single pass and is never indexed or counted.
// When both After and Before are given, After is applied first and Before is
// applied within the remainder.
func Paginate[T any, K comparable](seq iter.Seq[T], key func(T) K, cursor Cursor[K]) Page[T, K] {
	limit := cursor.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var info PageInfo[K]
	var items []T

	skipping := cursor.After != nil
	if skipping {
		info.HasPreviousPage = true
	}
	if cursor.Before != nil {
		// the window keeps the closing limit+1 items seen so far
		var window []T
		found := false
		for v := range seq {
			if skipping {
				skipping = key(v) != *cursor.After
				continue
			}
			if key(v) == *cursor.Before {
				found = true
				break
			}
			window = append(window, v)
			if len(window) > limit+1 {
				window = window[1:]
			}
		}
		if len(window) > limit {
			info.HasPreviousPage = true
			window = window[1:]
		}
		items = window
		info.HasNextPage = found
	} else {
		for v := range seq {
			if skipping {
				skipping = key(v) != *cursor.After
				continue
			}
			if len(items) == limit {
				info.HasNextPage = true
				break
			}
			items = append(items, v)
		}
	}

	if len(items) > 0 {
		info.StartCursor = key(items[0])
		info.EndCursor = key(items[len(items)-1])
	}
	return Page[T, K]{Items: slices.Clip(items), PageInfo: info}
}

// PaginateSlice is like Paginate for an ordered slice.
func PaginateSlice[T any, K comparable](items []T, key func(T) K, cursor Cursor[K]) Page[T, K] {
	return Paginate(slices.Values(items), key, cursor)
}
