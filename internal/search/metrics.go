package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_search_duration_seconds",
			Help:    "Duration of product search backend calls.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend"},
	)

	searchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_search_failures_total",
			Help: "Total number of failed product search backend calls.",
		},
		[]string{"backend"},
	)

	searchSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_search_superseded_total",
			Help: "Total number of debounced searches dropped in favour of a newer query.",
		},
	)
)
