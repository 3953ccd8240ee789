// Package metrics registers the Prometheus collectors for the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsCompleted *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	MappingScore  *prometheus.HistogramVec
	TrialRestarts prometheus.Counter

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	EventsPublished   prometheus.Counter
	EventPublishFails prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		JobsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qplace_jobs_submitted_total",
			Help: "Total number of placement jobs accepted",
		}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qplace_jobs_completed_total",
			Help: "Total number of placement jobs finished, by terminal status",
		}, []string{"status"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qplace_job_duration_seconds",
			Help:    "Wall clock duration of placement jobs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"strategy"}),
		MappingScore: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qplace_mapping_cross_pairs",
			Help:    "Cross controller feedback pair count of completed mappings",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"strategy"}),
		TrialRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qplace_trial_restarts_total",
			Help: "Total number of mapper search trials across all jobs",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qplace_result_cache_hits_total",
			Help: "Placement results served from the cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qplace_result_cache_misses_total",
			Help: "Placement requests that missed the cache",
		}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qplace_events_published_total",
			Help: "Job lifecycle events published to the event stream",
		}),
		EventPublishFails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qplace_event_publish_failures_total",
			Help: "Job lifecycle events that failed to publish",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qplace_http_requests_total",
			Help: "HTTP requests served, by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qplace_http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveJob records one finished job.
func (m *Metrics) ObserveJob(strategy, status string, score int, elapsed time.Duration) {
	m.JobsCompleted.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if status == "completed" {
		m.MappingScore.WithLabelValues(strategy).Observe(float64(score))
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
