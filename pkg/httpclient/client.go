package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var outboundRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_collaborator_retries_total",
	Help: "Retried requests to collaborator services, by host.",
}, []string{"host"})

// HTTPDoer is the request executor used by the storefront's collaborator
// clients. Both *Client and *CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns defaults tuned for calls made while a shopper waits.
func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    time.Second,
		MaxConnsPerHost: 100,
	}
}

// Client wraps http.Client with retries for idempotent requests, pooled
// connections and trace-context propagation.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a Client.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
}

// Do executes req with the caller's trace context. GET and HEAD requests are
// retried on network errors, 429 and 5xx responses other than 501. The wait
// between attempts doubles from RetryWaitMin up to RetryWaitMax; a Retry-After
// header in seconds takes precedence within the same cap.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	budget := c.config.MaxRetries
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		budget = 0
	}

	var wait time.Duration
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			outboundRetries.WithLabelValues(req.URL.Host).Inc()
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < budget && isRetryableError(err) {
				wait = c.backoff(attempt, "")
				continue
			}
			return nil, fmt.Errorf("%s %s: %d attempt(s): %w", req.Method, req.URL.Host, attempt+1, err)
		}
		if attempt < budget && retryableStatus(resp.StatusCode) {
			wait = c.backoff(attempt, resp.Header.Get("Retry-After"))
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
}

func (c *Client) backoff(attempt int, retryAfter string) time.Duration {
	wait := c.config.RetryWaitMin << attempt
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		wait = time.Duration(secs) * time.Second
	}
	return min(wait, c.config.RetryWaitMax)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code != http.StatusNotImplemented)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// DecodeJSON decodes a successful response body into dst and closes it.
// Non-2xx responses are converted with ParseResponseError.
func DecodeJSON(resp *http.Response, serviceName string, dst any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	return nil
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
