package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Order lifecycle
	OrderTransitions *prometheus.CounterVec
	Downloads        *prometheus.CounterVec

	// Reviews
	ReviewsCreated        prometheus.Counter
	RatingRefreshFailures *prometheus.CounterVec

	// Event publishing
	EventPublishTotal *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process-wide metrics, registering them with the
// default registry on first use.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devshop_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devshop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devshop_order_transitions_total",
			Help: "Order state transitions by target state",
		}, []string{"transition"}),

		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devshop_downloads_total",
			Help: "Template download attempts by outcome",
		}, []string{"outcome"}),

		ReviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devshop_reviews_created_total",
			Help: "Reviews created",
		}),

		RatingRefreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devshop_rating_refresh_failures_total",
			Help: "Failed rating recomputations by target",
		}, []string{"target"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devshop_event_publish_total",
			Help: "Domain events published by type and status",
		}, []string{"event_type", "status"}),
	}

	m.HTTPRequestTotal = registerOrGet(m.HTTPRequestTotal).(*prometheus.CounterVec)
	m.HTTPRequestDuration = registerOrGet(m.HTTPRequestDuration).(*prometheus.HistogramVec)
	m.OrderTransitions = registerOrGet(m.OrderTransitions).(*prometheus.CounterVec)
	m.Downloads = registerOrGet(m.Downloads).(*prometheus.CounterVec)
	m.ReviewsCreated = registerOrGet(m.ReviewsCreated).(prometheus.Counter)
	m.RatingRefreshFailures = registerOrGet(m.RatingRefreshFailures).(*prometheus.CounterVec)
	m.EventPublishTotal = registerOrGet(m.EventPublishTotal).(*prometheus.CounterVec)

	globalMetrics = m
	return m
}

// registerOrGet registers c, returning the already registered collector when
// an identical one exists.
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
