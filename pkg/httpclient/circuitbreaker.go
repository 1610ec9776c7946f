package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the collaborator in metrics, logs and health checks.
	Name string
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been observed.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig returns defaults for a circuit breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_collaborator_breaker_state",
			Help: "Circuit breaker state per collaborator (0=closed, 1=half-open, 2=open)",
		},
		[]string{"collaborator"},
	)

	breakerRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_collaborator_breaker_rejected_total",
			Help: "Collaborator calls rejected without being sent because the breaker was open",
		},
		[]string{"collaborator"},
	)
)

// ErrCircuitOpen matches calls rejected by an open or saturated half-open
// breaker.
var ErrCircuitOpen = gobreaker.ErrOpenState

// CircuitBreakerClient wraps an HTTPDoer with circuit breaker protection.
// Rejected calls fail fast with an error matching both ErrCircuitOpen and
// apperrors.ErrServiceUnavail.
type CircuitBreakerClient struct {
	client  HTTPDoer
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
	name    string
}

// NewCircuitBreakerClient wraps client with a circuit breaker.
func NewCircuitBreakerClient(client HTTPDoer, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// A shopper navigating away says nothing about the collaborator's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("collaborator circuit breaker changed state",
				slog.String("collaborator", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:  logger,
		name:    cfg.Name,
	}
}

// Name returns the collaborator name.
func (c *CircuitBreakerClient) Name() string {
	return c.name
}

// Do executes req through the circuit breaker. 5xx responses count as
// failures and are returned as errors with the body drained.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%s server error %d: %s", c.name, resp.StatusCode, string(body))
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		breakerRejected.WithLabelValues(c.name).Inc()
		return nil, fmt.Errorf("%s: %w: %w", c.name, apperrors.ErrServiceUnavail, ErrCircuitOpen)
	}
	return resp, err
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}

// Checker reports the collaborator as down while its breaker is open, for
// use as an optional readiness check.
func (c *CircuitBreakerClient) Checker() func(context.Context) error {
	return func(context.Context) error {
		if c.breaker.State() == gobreaker.StateOpen {
			return fmt.Errorf("%s: circuit open", c.name)
		}
		return nil
	}
}

// Get performs a GET request through the circuit breaker.
func (c *CircuitBreakerClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}
