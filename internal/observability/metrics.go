package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	webhookEventsTotal    *prometheus.CounterVec
	syncEventsTotal       *prometheus.CounterVec
	fanoutFailuresTotal   *prometheus.CounterVec
	badgeRecomputedTotal  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the sync engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		webhookEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_webhook_events_total",
			Help: "Inbound webhook events by classification outcome.",
		}, []string{"outcome"})

		syncEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_events_processed_total",
			Help: "Follow-up and thread events processed by result.",
		}, []string{"kind", "result"})

		fanoutFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_fanout_branch_failures_total",
			Help: "Per-member fan-out writes that failed and were left to redelivery.",
		}, []string{"kind"})

		badgeRecomputedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_badge_recomputations_total",
			Help: "Badge values recomputed and pushed.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			webhookEventsTotal,
			syncEventsTotal,
			fanoutFailuresTotal,
			badgeRecomputedTotal,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// WebhookEvents exposes the counter for webhook classification outcomes.
func WebhookEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return webhookEventsTotal
}

// SyncEvents exposes the counter for processed sync events.
func SyncEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return syncEventsTotal
}

// FanoutFailures exposes the counter for failed fan-out branches.
func FanoutFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return fanoutFailuresTotal
}

// BadgeRecomputations exposes the counter for recomputed badges.
func BadgeRecomputations() prometheus.Counter {
	RegisterMetrics()
	return badgeRecomputedTotal
}
