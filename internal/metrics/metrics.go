package metrics

import (
	"regexp"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, route, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, route, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LogsIngestedTotal counts log records accepted by POST /logs/.
	LogsIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "logsink_logs_ingested_total",
			Help: "Total number of log records ingested",
		},
	)

	// LogsStored is the number of rows in the logs table, refreshed by the scheduler.
	LogsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logsink_logs_stored",
			Help: "Number of log records currently stored",
		},
	)

	// AuthFailuresTotal counts rejected credential exchanges and token checks by reason.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsink_auth_failures_total",
			Help: "Total number of authentication failures by reason",
		},
		[]string{"reason"},
	)
)

var numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)

func init() {
	prometheus.MustRegister(RequestDuration, RequestTotal, LogsIngestedTotal, LogsStored, AuthFailuresTotal)
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /logs/123 -> /logs/{id}.
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncLogsIngested increments the ingested-records counter.
func IncLogsIngested() {
	LogsIngestedTotal.Inc()
}

// SetLogsStored sets the stored-records gauge.
func SetLogsStored(n int64) {
	LogsStored.Set(float64(n))
}

// IncAuthFailure increments the auth failure counter for reason
// (bad_credentials, bad_token, unknown_subject, forbidden).
func IncAuthFailure(reason string) {
	AuthFailuresTotal.WithLabelValues(reason).Inc()
}
