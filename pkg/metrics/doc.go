// Package metrics exposes Prometheus collectors for the control plane.
//
// Collectors are package-level variables registered once at init. The
// HTTP middleware drives the request counters and latency histogram;
// the workspace and webhook handlers count their operations by outcome.
// The Collector polls the store on an interval and refreshes the
// workspace and subscription inventory gauges.
//
// # Usage
//
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/workspaces", "200").Inc()
//
//	timer := metrics.NewTimer()
//	defer timer.ObserveDurationVec(metrics.HTTPRequestDuration, "GET", "/api/workspaces")
//
//	collector := metrics.NewCollector(store)
//	collector.Start()
//	defer collector.Stop()
//
//	mux.Handle("/metrics", metrics.Handler())
//
// # Integration Points
//
//   - pkg/api: request middleware, /metrics route, operation counters
//   - pkg/storage: inventory counts behind the Collector gauges
package metrics
