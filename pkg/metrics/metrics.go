package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hutch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Workspace metrics
	WorkspaceOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_workspace_operations_total",
			Help: "Total number of workspace lifecycle operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// Billing metrics
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_webhook_events_total",
			Help: "Total number of payment webhook deliveries by event type and result",
		},
		[]string{"event_type", "result"},
	)

	// Proxy metrics
	ProxyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_proxy_requests_total",
			Help: "Total number of proxied workspace requests by status class",
		},
		[]string{"status"},
	)

	// Engine metrics
	EngineOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_engine_operations_total",
			Help: "Total number of container engine calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	// Inventory gauges, refreshed by the Collector
	WorkspacesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hutch_workspaces_total",
			Help: "Number of workspaces by state",
		},
		[]string{"state"},
	)

	SubscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hutch_subscriptions_total",
			Help: "Number of subscriptions by state",
		},
		[]string{"state"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(WorkspaceOperationsTotal)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(ProxyRequestsTotal)
	prometheus.MustRegister(EngineOperationsTotal)
	prometheus.MustRegister(WorkspacesTotal)
	prometheus.MustRegister(SubscriptionsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
