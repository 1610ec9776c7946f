package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/search"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

// SearchHandler serves the header product search.
type SearchHandler struct {
	searcher *search.Searcher
	logger   *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(searcher *search.Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// Search handles GET /api/v1/search. Backend failures answer 200 with an
// empty, flagged result.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.searcher.Search(r.Context(), q)
	if err != nil {
		h.logger.WarnContext(r.Context(), "product search failed",
			slog.String("query", q.Query),
			slog.String("error", err.Error()),
		)
		res = search.EmptyResult(q.Query)
		res.Failed = true
	}
	httputil.WriteData(w, res)
}

func parseSearchQuery(r *http.Request) (search.Query, error) {
	v := r.URL.Query()
	p := pagination.FromRequest(r)
	q := search.Query{
		Query:       v.Get("q"),
		Category:    v.Get("category"),
		SubCategory: v.Get("subCategory"),
		Page:        p.Page,
		PageSize:    p.PageSize,
		Sort:        v.Get("sort"),
		Country:     v.Get("country"),
	}
	if q.Query == "" {
		q.Query = v.Get("query")
	}

	var err error
	if q.MinPrice, err = parseAmount(v.Get("minPrice")); err != nil {
		return search.Query{}, err
	}
	if q.MaxPrice, err = parseAmount(v.Get("maxPrice")); err != nil {
		return search.Query{}, err
	}
	return q.Normalize(), nil
}

func parseAmount(s string) (*decimal.Decimal, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &d, nil
}
