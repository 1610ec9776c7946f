package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/shopspring/decimal"
)

// DefaultIndexName is the products index read when none is configured.
const DefaultIndexName = "products"

// esDocument is the indexed product shape.
type esDocument struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Images      []string        `json:"images"`
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string     `json:"_id"`
			Source esDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// ElasticsearchBackend queries the products index directly.
type ElasticsearchBackend struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// NewElasticsearchBackend creates a read-only backend over the products index.
// The index is owned by the catalogue; it is not created here.
func NewElasticsearchBackend(esURL, indexName string, logger *slog.Logger) (*ElasticsearchBackend, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return &ElasticsearchBackend{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}, nil
}

// Name implements Backend.
func (b *ElasticsearchBackend) Name() string { return "elasticsearch" }

// Ping checks whether the Elasticsearch cluster is reachable.
func (b *ElasticsearchBackend) Ping(ctx context.Context) error {
	res, err := b.client.Ping(b.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// Search implements Backend.
func (b *ElasticsearchBackend) Search(ctx context.Context, q Query) (Result, error) {
	data, err := json.Marshal(buildSearchQuery(q))
	if err != nil {
		return Result{}, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := b.client.Search(
		b.client.Search.WithIndex(b.indexName),
		b.client.Search.WithBody(bytes.NewReader(data)),
		b.client.Search.WithContext(ctx),
	)
	if err != nil {
		return Result{}, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
			return Result{}, fmt.Errorf("elasticsearch search: %s: %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return Result{}, fmt.Errorf("elasticsearch search: unexpected status %s", res.Status())
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return Result{}, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	items := make([]Product, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		doc := hit.Source
		id := doc.ID
		if id == "" {
			id = hit.ID
		}
		items = append(items, Product{
			ID:          id,
			Name:        doc.Name,
			Category:    doc.Category,
			SubCategory: doc.SubCategory,
			Price:       doc.Price,
			Currency:    doc.Currency,
			Images:      doc.Images,
		})
	}

	b.logger.DebugContext(ctx, "elasticsearch search",
		slog.String("query", q.Query),
		slog.Int("hits", len(items)),
	)

	return Result{Query: q.Query, Items: items, Total: esResp.Hits.Total.Value}, nil
}

// buildSearchQuery constructs the query DSL for q.
func buildSearchQuery(q Query) map[string]any {
	filters := []any{}
	if q.Category != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"category": q.Category}})
	}
	if q.SubCategory != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"sub_category": q.SubCategory}})
	}
	if q.Country != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"countries": q.Country}})
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		r := map[string]any{}
		if q.MinPrice != nil {
			r["gte"] = q.MinPrice.InexactFloat64()
		}
		if q.MaxPrice != nil {
			r["lte"] = q.MaxPrice.InexactFloat64()
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": r}})
	}

	boolQuery := map[string]any{
		"must": []any{map[string]any{
			"multi_match": map[string]any{
				"query":         q.Query,
				"fields":        []string{"name^3", "category", "sub_category"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}},
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"from":  (q.Page - 1) * q.PageSize,
		"size":  q.PageSize,
		"sort":  buildSort(q.Sort),
	}
}

func buildSort(sort string) []any {
	switch sort {
	case SortPriceAsc:
		return []any{map[string]any{"price": "asc"}}
	case SortPriceDesc:
		return []any{map[string]any{"price": "desc"}}
	default:
		return []any{map[string]any{"created_at": "desc"}, map[string]any{"_score": "desc"}}
	}
}
