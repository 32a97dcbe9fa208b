package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wipetrace"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path"},
	)

	EmailAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_attempts_total",
			Help:      "Email transport attempts by provider and outcome.",
		},
		[]string{"provider", "status"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletion_request_transitions_total",
			Help:      "Deletion request status changes.",
		},
		[]string{"from", "to"},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Batch job runs by job and outcome.",
		},
		[]string{"job", "status"},
	)

	JobItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_items_total",
			Help:      "Items handled by batch jobs.",
		},
		[]string{"job", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Batch job duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"job"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_webhook_events_total",
			Help:      "Provider webhook events by type and whether a log matched.",
		},
		[]string{"event", "matched"},
	)
)

func ObserveHTTP(method, path, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func ObserveEmail(provider, status string) {
	EmailAttempts.WithLabelValues(provider, status).Inc()
}

// ObserveTransition counts a status change. from is empty for creation.
func ObserveTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	StatusTransitions.WithLabelValues(from, to).Inc()
}

func ObserveJob(job, status string, d time.Duration) {
	JobRuns.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func AddJobItems(job string, success, failure, skipped int) {
	JobItems.WithLabelValues(job, "success").Add(float64(success))
	JobItems.WithLabelValues(job, "failure").Add(float64(failure))
	JobItems.WithLabelValues(job, "skipped").Add(float64(skipped))
}

func ObserveWebhook(event string, matched bool) {
	m := "false"
	if matched {
		m = "true"
	}
	WebhookEvents.WithLabelValues(event, m).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
