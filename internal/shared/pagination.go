package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = clampPage(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageFromRequest reads page/per_page, also accepting skip/limit.
func PageFromRequest(r *http.Request) Pagination {
	q := r.URL.Query()
	perPage := atoiOr(q.Get("per_page"), 0)
	if perPage == 0 {
		perPage = atoiOr(q.Get("limit"), defaultPerPage)
	}
	page := atoiOr(q.Get("page"), 0)
	if page == 0 {
		_, pp := clampPage(1, perPage)
		page = atoiOr(q.Get("skip"), 0)/pp + 1
	}
	page, perPage = clampPage(page, perPage)
	return Pagination{Page: page, PerPage: perPage}
}

func clampPage(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return page, perPage
}

func atoiOr(raw string, def int) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
