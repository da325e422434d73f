package shared

import (
	"math"
	"net/url"
	"strconv"
)

// MaxPerPage caps the page size a caller may request.
const MaxPerPage = 200

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PaginationFromQuery reads page and per_page. ok is false when neither is
// present.
func PaginationFromQuery(q url.Values, total int) (p Pagination, ok bool) {
	rawPage, rawPer := q.Get("page"), q.Get("per_page")
	if rawPage == "" && rawPer == "" {
		return Pagination{}, false
	}
	page, _ := strconv.Atoi(rawPage)
	perPage, _ := strconv.Atoi(rawPer)
	return NewPagination(page, perPage, total), true
}

// Bounds returns the slice bounds of the current page.
func (p Pagination) Bounds() (start, end int) {
	start = (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end = start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}
