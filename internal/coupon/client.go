// Package coupon reads the coupons a shopper can apply to the current cart.
package coupon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "coupon-api"

// Coupon is an offer returned by the coupon collaborator.
type Coupon struct {
	ID             string           `json:"id,omitempty"`
	Code           string           `json:"code"`
	Description    string           `json:"description,omitempty"`
	DiscountType   string           `json:"discountType,omitempty"`
	DiscountValue  decimal.Decimal  `json:"discountValue"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount,omitempty"`
	ValidUntil     string           `json:"validUntil,omitempty"`
}

// Offers is the list shown next to the cart totals. Available is false when
// the collaborator could not be asked.
type Offers struct {
	Coupons   []Coupon `json:"coupons"`
	Available bool     `json:"available"`
}

// Unavailable is returned whenever coupons cannot be fetched.
func Unavailable() Offers {
	return Offers{Coupons: []Coupon{}, Available: false}
}

// Client calls {baseURL}/coupons/active-for-me.
type Client struct {
	client  httpclient.HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a coupon client.
func NewClient(client httpclient.HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ActiveForMe returns the coupons valid for an order of orderAmount. The
// caller's Authorization header value is forwarded unchanged. Failures are
// logged and reported as Unavailable, never as an error.
func (c *Client) ActiveForMe(ctx context.Context, orderAmount decimal.Decimal, authorization string) Offers {
	coupons, err := c.fetch(ctx, orderAmount, authorization)
	if err != nil {
		c.logger.WarnContext(ctx, "coupons unavailable",
			slog.String("order_amount", orderAmount.String()),
			slog.String("error", err.Error()),
		)
		return Unavailable()
	}
	return Offers{Coupons: coupons, Available: true}
}

func (c *Client) fetch(ctx context.Context, orderAmount decimal.Decimal, authorization string) ([]Coupon, error) {
	u := c.baseURL + "/coupons/active-for-me?" + url.Values{"orderAmount": {orderAmount.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create coupons request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", serviceName, err)
	}

	var raw json.RawMessage
	if err := httpclient.DecodeJSON(resp, serviceName, &raw); err != nil {
		return nil, err
	}
	return decodeCoupons(raw)
}

// decodeCoupons accepts a bare list or a {success, data} envelope.
func decodeCoupons(raw json.RawMessage) ([]Coupon, error) {
	coupons := []Coupon{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &coupons); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", serviceName, err)
		}
		return coupons, nil
	}

	var envelope struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, fmt.Errorf("%s: %s", serviceName, envelope.Message)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return coupons, nil
	}
	if err := json.Unmarshal(envelope.Data, &coupons); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	return coupons, nil
}
