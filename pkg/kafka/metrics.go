package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Events handed to Kafka, by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	publishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "events",
		Name:      "publish_duration_seconds",
		Help:      "Time spent in WriteMessages per event.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"topic"})
)

func observePublish(topic, eventType string, began time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	publishedEvents.WithLabelValues(topic, eventType, outcome).Inc()
	publishLatency.WithLabelValues(topic).Observe(time.Since(began).Seconds())
}
