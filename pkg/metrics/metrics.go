// Package metrics provides Prometheus metrics for the offload engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3offload_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "s3offload_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Object storage metrics
	s3OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3offload_s3_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "provider", "status"},
	)

	s3OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "s3offload_s3_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "provider"},
	)

	uploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "s3offload_uploaded_bytes_total",
			Help: "Total bytes uploaded to object storage",
		},
	)

	// Engine metrics
	syncFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3offload_sync_files_total",
			Help: "Files processed by the sync engine by action and outcome",
		},
		[]string{"action", "status"},
	)

	discoveryObjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3offload_discovery_objects_total",
			Help: "Objects seen by bucket discovery by outcome",
		},
		[]string{"outcome"},
	)

	signedURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3offload_signed_urls_total",
			Help: "Presigned URL generations for private buckets",
		},
		[]string{"status"},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordS3Operation(operation, provider string, duration time.Duration, success bool) {
	s3OperationsTotal.WithLabelValues(operation, provider, statusLabel(success)).Inc()
	s3OperationDuration.WithLabelValues(operation, provider).Observe(duration.Seconds())
}

func RecordUpload(bytes int64) {
	if bytes > 0 {
		uploadedBytes.Add(float64(bytes))
	}
}

func RecordSyncFile(action string, success bool) {
	syncFilesTotal.WithLabelValues(action, statusLabel(success)).Inc()
}

// RecordDiscovery adds the tallies of one discovery run.
func RecordDiscovery(imported, skipped, failed int) {
	discoveryObjectsTotal.WithLabelValues("imported").Add(float64(imported))
	discoveryObjectsTotal.WithLabelValues("skipped").Add(float64(skipped))
	discoveryObjectsTotal.WithLabelValues("failed").Add(float64(failed))
}

func RecordSignedURL(success bool) {
	signedURLsTotal.WithLabelValues(statusLabel(success)).Inc()
}
