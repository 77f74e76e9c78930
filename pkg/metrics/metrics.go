// Package metrics builds the Prometheus registry of the portfolio cache and
// exposes it over HTTP.
//
// Metrics are defined next to the code that records them and registered on
// the registry passed to their constructors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics of reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - portfolio_cache_operations_total{operation} (Counter): hit, miss, set,
//     delete and error counts
//
// HTTP Metrics (pkg/middleware):
//   - portfolio_http_request_duration_seconds{method, route, status} (Histogram)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - portfolio_rate_limit_blocks_total{scope} (Counter): Requests rejected with 429
//   - portfolio_rate_limit_errors_total (Counter): Checks that failed open
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(portfolio_cache_operations_total{operation="hit"}[5m])) /
//   sum(rate(portfolio_cache_operations_total{operation=~"hit|miss"}[5m]))
//
//   # Cache Error Rate
//   rate(portfolio_cache_operations_total{operation="error"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(portfolio_http_request_duration_seconds_bucket[5m]))
