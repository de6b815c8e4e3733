package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors on a private registry.
type Registry struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	issuesCreated   *prometheus.CounterVec
	issuesResolved  prometheus.Counter
	webhookFailures prometheus.Counter
}

func New() *Registry {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	issuesCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issues_created_total",
		Help: "Issues reported, by issue type",
	}, []string{"issue_type"})

	issuesResolved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "issues_resolved_total",
		Help: "Issues moved from open to resolved",
	})

	webhookFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_delivery_failures_total",
		Help: "Issue events that could not be delivered to the webhook",
	})

	registry.MustRegister(requestDuration, requestTotal, issuesCreated, issuesResolved, webhookFailures)

	return &Registry{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		issuesCreated:   issuesCreated,
		issuesResolved:  issuesResolved,
		webhookFailures: webhookFailures,
	}
}

func (r *Registry) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	r.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	r.requestTotal.WithLabelValues(method, path, code).Inc()
}

func (r *Registry) IssueCreated(issueType string) {
	r.issuesCreated.WithLabelValues(issueType).Inc()
}

func (r *Registry) IssueResolved() {
	r.issuesResolved.Inc()
}

func (r *Registry) WebhookFailed() {
	r.webhookFailures.Inc()
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
