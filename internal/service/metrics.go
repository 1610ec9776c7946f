package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	cartLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_load_failures_total",
			Help: "Total number of cart documents that could not be loaded.",
		},
		[]string{"reason"},
	)

	cartGrandTotal = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_cart_grand_total",
			Help:    "Grand total of carts after a mutation, in the cart currency.",
			Buckets: prometheus.ExponentialBuckets(100, 2.5, 10),
		},
		[]string{"currency"},
	)

	cartMixedCurrency = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cart_mixed_currency_total",
			Help: "Total number of totals computed over lines in more than one currency.",
		},
	)
)

// Mutation outcomes.
const (
	outcomeApplied = "applied"
	outcomeNoop    = "noop"
	outcomeFailed  = "failed"
)
