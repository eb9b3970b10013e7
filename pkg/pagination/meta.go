package pagination

import "math"

// Meta is the pagination block of a page envelope.
type Meta struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
	Limit       int  `json:"limit"`
	Offset      int  `json:"offset"`
}

// Compute derives page metadata from the catalog total, page size and offset.
// A non-positive limit yields a meta with zero pages.
func Compute(total, limit, offset int) Meta {
	if offset < 0 {
		offset = 0
	}
	meta := Meta{Limit: limit, Offset: offset}
	if limit <= 0 {
		return meta
	}
	if total < 0 {
		total = 0
	}

	meta.CurrentPage = offset / limit
	if meta.CurrentPage < math.MaxInt {
		meta.CurrentPage++
	}
	meta.TotalPages = total / limit
	if total%limit != 0 {
		meta.TotalPages++
	}
	meta.HasNext = meta.CurrentPage < meta.TotalPages
	meta.HasPrevious = meta.CurrentPage > 1

	return meta
}

// OffsetForPage converts a 1-based page number to an offset. Pages below 1
// are treated as page 1. Pages whose offset would overflow an int map to the
// last representable page boundary.
func OffsetForPage(page, limit int) int {
	if page < 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return (math.MaxInt / limit) * limit
	}
	return (page - 1) * limit
}
