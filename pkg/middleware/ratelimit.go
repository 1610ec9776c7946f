package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/utafrali/storefront/pkg/httputil"
)

var httpRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests refused with 429, by route pattern.",
}, []string{"route"})

type bucket struct {
	limiter *rate.Limiter
	touched time.Time
}

// clientBuckets holds one token bucket per client address. Buckets untouched
// for idle are dropped by sweep.
type clientBuckets struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

func newClientBuckets(rps float64, burst int, idle time.Duration) *clientBuckets {
	return &clientBuckets{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

func (c *clientBuckets) limiter(client string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.buckets[client]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[client] = b
	}
	b.touched = c.now()
	return b.limiter
}

func (c *clientBuckets) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.idle)
	for client, b := range c.buckets {
		if b.touched.Before(cutoff) {
			delete(c.buckets, client)
		}
	}
}

func (c *clientBuckets) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

func (c *clientBuckets) sweepEvery(ctx context.Context, d time.Duration) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RateLimit allows each client IP rps requests per second with the given
// burst. Refused requests get 429 and a Retry-After of whole seconds until the
// next token. Idle buckets are swept until ctx is done.
func RateLimit(ctx context.Context, rps float64, burst int, l *slog.Logger) func(http.Handler) http.Handler {
	const idle = 3 * time.Minute
	buckets := newClientBuckets(rps, burst, idle)
	go buckets.sweepEvery(ctx, idle)
	return rateLimit(buckets, l)
}

func rateLimit(buckets *clientBuckets, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientIP(r)
			res := buckets.limiter(client).Reserve()
			delay := res.Delay()
			if res.OK() && delay == 0 {
				next.ServeHTTP(w, r)
				return
			}
			res.Cancel()

			retryAfter := 1
			if res.OK() {
				retryAfter = max(1, int(math.Ceil(delay.Seconds())))
			}
			httpRateLimited.WithLabelValues(routePattern(r)).Inc()
			l.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("client_ip", client),
				slog.String("path", r.URL.Path),
				slog.Int("retry_after_s", retryAfter),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
			})
		})
	}
}

// ClientIP returns the first parseable X-Forwarded-For entry, else X-Real-IP,
// else the host of the connection's remote address.
func ClientIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.Unmap().String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
