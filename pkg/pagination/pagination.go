package pagination

import (
	"net/http"
	"strconv"
)

// Defaults used by the header search.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params holds paging parameters read from a query string.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// DefaultParams returns the first page with the default page size.
func DefaultParams() Params {
	return Params{Page: DefaultPage, PageSize: DefaultPageSize}
}

// Offset is the zero-based index of the first element on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Normalize replaces out-of-range values with the defaults.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		p.PageSize = DefaultPageSize
	}
	return p
}

// FromRequest reads `page` and `pageSize` (or `pageNumber`, as the storefront
// client sends it) from the request's query string.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	p := Params{
		Page:     atoi(q.Get("page")),
		PageSize: atoi(q.Get("pageSize")),
	}
	if p.Page == 0 {
		p.Page = atoi(q.Get("pageNumber"))
	}
	return p.Normalize()
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
