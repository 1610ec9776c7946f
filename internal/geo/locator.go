// Package geo detects the shopper's market from their IP address and keeps
// the confirmed country selection.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "geo-api"

// ErrUnroutableAddress is returned for addresses a public lookup cannot place.
var ErrUnroutableAddress = errors.New("address cannot be geolocated")

// lookupResponse is the ipapi-compatible payload.
type lookupResponse struct {
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// Locator resolves IP addresses to ISO country codes through an
// ipapi-compatible service. Concurrent lookups of the same address share one
// request.
type Locator struct {
	client  httpclient.HTTPDoer
	baseURL string
	logger  *slog.Logger
	group   singleflight.Group
}

// NewLocator creates a Locator calling {baseURL}/{ip}/json/.
func NewLocator(client httpclient.HTTPDoer, baseURL string, logger *slog.Logger) *Locator {
	return &Locator{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Lookup returns the upper-case country code of ip.
func (l *Locator) Lookup(ctx context.Context, ip string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", fmt.Errorf("parse client address %q: %w", ip, ErrUnroutableAddress)
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return "", fmt.Errorf("client address %s: %w", addr, ErrUnroutableAddress)
	}

	key := addr.String()
	v, err, shared := l.group.Do(key, func() (any, error) {
		return l.lookup(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return "", err
	}
	if shared {
		l.logger.DebugContext(ctx, "shared geolocation lookup", slog.String("ip", key))
	}
	return v.(string), nil
}

func (l *Locator) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+ip+"/json/", http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create geolocation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", serviceName, err)
	}

	var body lookupResponse
	if err := httpclient.DecodeJSON(resp, serviceName, &body); err != nil {
		return "", err
	}
	if body.Error {
		return "", fmt.Errorf("%s: %s", serviceName, body.Reason)
	}
	if body.CountryCode == "" {
		return "", fmt.Errorf("%s: empty country code", serviceName)
	}
	return strings.ToUpper(body.CountryCode), nil
}
