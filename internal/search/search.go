// Package search implements the header's product search: backends that talk to
// the product catalogue and a per-connection debouncer.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/pkg/pagination"
)

// Sort options accepted by the product catalogue.
const (
	SortLatest    = "latest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// Query is a product search request. Zero values fall back to the defaults
// applied by Normalize.
type Query struct {
	Query       string           `json:"q" validate:"max=200"`
	Category    string           `json:"category,omitempty" validate:"max=100"`
	SubCategory string           `json:"subCategory,omitempty" validate:"max=100"`
	MinPrice    *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice    *decimal.Decimal `json:"maxPrice,omitempty"`
	Page        int              `json:"page"`
	PageSize    int              `json:"pageSize"`
	Sort        string           `json:"sort" validate:"omitempty,oneof=latest price_asc price_desc"`
	Country     string           `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
}

// NewQuery returns a query for text with the header defaults.
func NewQuery(text string) Query {
	return Query{Query: text}.Normalize()
}

// Normalize trims the text and fills in paging and sort defaults.
func (q Query) Normalize() Query {
	q.Query = strings.TrimSpace(q.Query)
	p := pagination.Params{Page: q.Page, PageSize: q.PageSize}.Normalize()
	q.Page, q.PageSize = p.Page, p.PageSize
	if q.Sort == "" {
		q.Sort = SortLatest
	}
	return q
}

// Blank reports whether the query has no text to search for.
func (q Query) Blank() bool {
	return strings.TrimSpace(q.Query) == ""
}

// Product is one search hit as shown in the header dropdown.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category,omitempty"`
	SubCategory string          `json:"subCategory,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	Images      []string        `json:"images,omitempty"`
}

// Result is the outcome of a search. Failed is set when the backend could not
// be reached; Items is then empty.
type Result struct {
	Query  string    `json:"query"`
	Items  []Product `json:"items"`
	Total  int       `json:"total"`
	Failed bool      `json:"error,omitempty"`
}

// EmptyResult returns a result with no hits for query.
func EmptyResult(query string) Result {
	return Result{Query: query, Items: []Product{}}
}

// Backend executes normalized, non-blank queries against a product catalogue.
type Backend interface {
	Search(ctx context.Context, q Query) (Result, error)
	Name() string
}

// Searcher fronts a Backend with the rules shared by every caller.
type Searcher struct {
	backend Backend
	logger  *slog.Logger
}

// NewSearcher creates a Searcher over backend.
func NewSearcher(backend Backend, logger *slog.Logger) *Searcher {
	return &Searcher{backend: backend, logger: logger}
}

// Search normalizes q and runs it. A blank query returns an empty result
// without calling the backend.
func (s *Searcher) Search(ctx context.Context, q Query) (Result, error) {
	q = q.Normalize()
	if q.Blank() {
		return EmptyResult(q.Query), nil
	}

	start := time.Now()
	res, err := s.backend.Search(ctx, q)
	searchDuration.WithLabelValues(s.backend.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			searchFailures.WithLabelValues(s.backend.Name()).Inc()
		}
		return Result{}, err
	}
	if res.Items == nil {
		res.Items = []Product{}
	}
	res.Query = q.Query

	s.logger.DebugContext(ctx, "product search",
		slog.String("backend", s.backend.Name()),
		slog.String("query", q.Query),
		slog.Int("hits", len(res.Items)),
	)
	return res, nil
}
