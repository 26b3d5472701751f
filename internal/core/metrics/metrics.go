package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_transitions_total",
			Help: "Approval transitions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	HoursComputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hours_compute_duration_seconds",
			Help:    "Time spent computing hours for a record.",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005},
		},
		[]string{"kind"},
	)

	ReportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_aggregate_duration_seconds",
			Help:    "Aggregation latency by scope kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	ReportCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_cache_requests_total",
			Help: "Report cache lookups by result.",
		},
		[]string{"result"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Webhook notifications by outcome.",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// Init registers every collector in the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPInFlight,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			TransitionsTotal,
			HoursComputeDuration,
			ReportDuration,
			ReportCacheTotal,
			NotificationsTotal,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
