package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/pkg/httpclient"
)

const apiServiceName = "product-api"

// apiResponse is the envelope returned by the product catalogue.
type apiResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Items      []Product `json:"items"`
		TotalCount int       `json:"totalCount"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}

// APIBackend searches through the product catalogue's filter endpoint.
type APIBackend struct {
	client  httpclient.HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewAPIBackend creates a backend calling {baseURL}/products/filter.
func NewAPIBackend(client httpclient.HTTPDoer, baseURL string, logger *slog.Logger) *APIBackend {
	return &APIBackend{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Name implements Backend.
func (b *APIBackend) Name() string { return "api" }

// Search implements Backend. A response without success is treated as no hits.
func (b *APIBackend) Search(ctx context.Context, q Query) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/products/filter?"+encodeQuery(q).Encode(), http.NoBody)
	if err != nil {
		return Result{}, fmt.Errorf("create product filter request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("call %s: %w", apiServiceName, err)
	}

	var body apiResponse
	if err := httpclient.DecodeJSON(resp, apiServiceName, &body); err != nil {
		return Result{}, err
	}

	if !body.Success || body.Data == nil {
		b.logger.WarnContext(ctx, "product search returned no data",
			slog.String("query", q.Query),
			slog.String("message", body.Message),
		)
		return EmptyResult(q.Query), nil
	}

	total := body.Data.TotalCount
	if total == 0 {
		total = len(body.Data.Items)
	}
	return Result{Query: q.Query, Items: body.Data.Items, Total: total}, nil
}

// encodeQuery builds the filter parameters the catalogue expects. Empty
// filters are sent as empty values.
func encodeQuery(q Query) url.Values {
	v := url.Values{}
	v.Set("q", q.Query)
	v.Set("category", q.Category)
	v.Set("subCategory", q.SubCategory)
	if q.MinPrice != nil {
		v.Set("minPrice", q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		v.Set("maxPrice", q.MaxPrice.String())
	}
	v.Set("pageNumber", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	v.Set("sort", q.Sort)
	if q.Country != "" {
		v.Set("country", q.Country)
	}
	return v
}
