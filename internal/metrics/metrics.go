package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotelbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Booking admission attempts by outcome.",
		},
		[]string{"outcome"},
	)

	admissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Time spent holding a room admission transaction.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	oversold = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversold_total",
			Help:      "Rooms observed with more overlapping bookings than quantity.",
		},
		[]string{"source"},
	)

	searchCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Hotel search cache lookups by result.",
		},
		[]string{"result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbox task executions by task type and status.",
		},
		[]string{"task_type", "status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, admissions, admissionDuration, oversold, searchCache, notifications)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func ObserveAdmission(outcome string, took time.Duration) {
	admissions.WithLabelValues(outcome).Inc()
	admissionDuration.Observe(took.Seconds())
}

// IncOversold records an oversold room seen by admission or by a read path.
func IncOversold(source string) {
	oversold.WithLabelValues(source).Inc()
}

func IncSearchCache(hit bool) {
	if hit {
		searchCache.WithLabelValues("hit").Inc()
		return
	}
	searchCache.WithLabelValues("miss").Inc()
}

func IncNotification(taskType, status string) {
	notifications.WithLabelValues(taskType, status).Inc()
}
