package paging

import "strings"

const DefaultSize = 10

type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	Total      int
}

func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}

// Paginate returns the 1-based page of items. Out-of-range pages are clamped
// and an empty list still has one page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultSize
	}
	totalPages := (len(items) + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	start := (page - 1) * size
	end := min(start+size, len(items))
	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		TotalPages: totalPages,
		Total:      len(items),
	}
}

// Match reports whether query is a case-insensitive substring of any field.
// An empty query matches everything.
func Match(query string, fields ...string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
