package coupon

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	l := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	return NewClient(httpclient.New(cfg), srv.URL+"/api", l)
}

func TestActiveForMe_ForwardsAmountAndAuthorization(t *testing.T) {
	var gotPath, gotAmount, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAmount = r.URL.Query().Get("orderAmount")
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"success":true,"data":[{"code":"WELCOME10","discountType":"percent","discountValue":10}]}`)
	})

	offers := c.ActiveForMe(context.Background(), decimal.NewFromInt(999), "Bearer abc")

	assert.Equal(t, "/api/coupons/active-for-me", gotPath)
	assert.Equal(t, "999", gotAmount)
	assert.Equal(t, "Bearer abc", gotAuth)

	assert.True(t, offers.Available)
	require.Len(t, offers.Coupons, 1)
	assert.Equal(t, "WELCOME10", offers.Coupons[0].Code)
	assert.True(t, decimal.NewFromInt(10).Equal(offers.Coupons[0].DiscountValue))
}

func TestActiveForMe_BareList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"code":"A","discountValue":50},{"code":"B","discountValue":5.5}]`)
	})

	offers := c.ActiveForMe(context.Background(), decimal.Zero, "")
	assert.True(t, offers.Available)
	assert.Len(t, offers.Coupons, 2)
}

func TestActiveForMe_EmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":null}`)
	})

	offers := c.ActiveForMe(context.Background(), decimal.NewFromInt(10), "")
	assert.True(t, offers.Available)
	assert.NotNil(t, offers.Coupons)
	assert.Empty(t, offers.Coupons)
}

func TestActiveForMe_FailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"token expired"}`)
		}},
		{"unsuccessful envelope", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"success":false,"message":"nope"}`)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			offers := c.ActiveForMe(context.Background(), decimal.NewFromInt(100), "Bearer x")
			assert.Equal(t, Unavailable(), offers)
		})
	}
}

func TestActiveForMe_Unreachable(t *testing.T) {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	l := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	c := NewClient(httpclient.New(cfg), "http://127.0.0.1:1", l)

	offers := c.ActiveForMe(context.Background(), decimal.NewFromInt(100), "")
	assert.False(t, offers.Available)
	assert.Empty(t, offers.Coupons)
}
