package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "storefront"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests served, by route pattern and status code.",
	}, []string{"service", "method", "route", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to serve a request. Upgraded connections are not observed.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"service", "method", "route"})

	httpResponseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Size of response bodies.",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 7),
	}, []string{"service", "route"})

	httpRequestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently being served, open websockets included.",
	}, []string{"service"})

	httpPanicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "panics_recovered_total",
		Help:      "Handler panics answered with a 500 by the recovery middleware.",
	})
)

// PrometheusMetrics records request counts, latency and response sizes
// labelled by chi route pattern, so path parameters do not explode the
// label space.
func PrometheusMetrics(serviceName string) func(next http.Handler) http.Handler {
	inFlight := httpRequestsInFlight.WithLabelValues(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inFlight.Inc()
			defer inFlight.Dec()

			began := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			httpRequestsTotal.WithLabelValues(serviceName, r.Method, route, strconv.Itoa(sw.statusCode)).Inc()
			if sw.statusCode == http.StatusSwitchingProtocols {
				return
			}
			httpRequestDuration.WithLabelValues(serviceName, r.Method, route).Observe(time.Since(began).Seconds())
			httpResponseBytes.WithLabelValues(serviceName, route).Observe(float64(sw.bytes))
		})
	}
}
