package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings. When
// Paged is false the caller wants the whole collection.
type Params struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Offset  int  `json:"-"`
	Paged   bool `json:"-"`
}

// DefaultParams returns the first page with the default page size.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: defaultPerPage, Paged: true}
}

// Unpaged returns params that select every row.
func Unpaged() Params {
	return Params{}
}

// Limit returns the row limit for a query, or 0 for no limit.
func (p Params) Limit() int {
	if !p.Paged {
		return 0
	}
	return p.PerPage
}

// FromRequest extracts page and per_page from the query string, always
// returning paged params.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if perPage := q.Get("per_page"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= maxPerPage {
			p.PerPage = v
		}
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// OptionalFromRequest behaves like FromRequest when the client sent page or
// per_page, and returns Unpaged otherwise.
func OptionalFromRequest(r *http.Request) Params {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("per_page") {
		return Unpaged()
	}
	return FromRequest(r)
}

// Meta describes the position of a page within the full collection.
type Meta struct {
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewMeta computes page metadata. It returns nil for unpaged params so the
// field can be omitted from responses.
func NewMeta(totalCount int, params Params) *Meta {
	if !params.Paged || params.PerPage <= 0 {
		return nil
	}

	totalPages := totalCount / params.PerPage
	if totalCount%params.PerPage > 0 {
		totalPages++
	}

	return &Meta{
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
