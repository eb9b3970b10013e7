// Package metrics exposes the process-wide Prometheus registry.
//
// Metrics are defined with promauto in the packages that record them
// (api, catalog, cache, client, pagination) and land in the default
// registry. This package serves them and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer is the gatherer served by Handler. promauto registers every
// catalog metric with the matching default registerer.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the Prometheus exposition format for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Inbound HTTP (internal/api):
//   - catalog_requests_total{route, status} (Counter): Requests by chi route pattern and status
//   - catalog_request_duration_seconds{route} (Histogram): Request latency by route
//
// Page assembly (pkg/catalog):
//   - catalog_pages_served_total{outcome} (Counter): Pages by outcome (ok, list_error, detail_error, error)
//   - catalog_page_duration_seconds (Histogram): Time to assemble one page
//   - catalog_items_filtered_total (Counter): Items dropped by the name filter
//
// Detail fan-out (pkg/pagination):
//   - catalog_fanout_inflight (Gauge): Detail fetches currently running
//   - catalog_fanout_batch_duration_seconds{outcome} (Histogram): Batch duration by outcome
//
// Upstream requests (pkg/client):
//   - catalog_upstream_requests_total{status} (Counter): Upstream calls by status, cache_hit or network_error
//   - catalog_upstream_request_duration_seconds (Histogram): Upstream call latency
//   - catalog_upstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - catalog_upstream_retries_total{error_class} (Counter): Retry attempts
//   - catalog_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff before each retry
//   - catalog_upstream_retry_exhausted_total{error_class} (Counter): Calls that ran out of attempts
//
// Response cache (pkg/cache):
//   - catalog_cache_hits_total{layer} (Counter): Hits by layer (redis, memory)
//   - catalog_cache_misses_total{layer} (Counter): Misses by layer
//   - catalog_cache_bytes_written_total{layer} (Counter): Bytes stored
//   - catalog_cache_entries{layer} (Gauge): Entries held by the memory layer
//   - catalog_304_responses_total (Counter): 304 Not Modified answers
//   - catalog_conditional_requests_total (Counter): Conditional requests sent
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache hit rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Failed pages
//   sum(rate(catalog_pages_served_total{outcome!="ok"}[5m]))
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(catalog_page_duration_seconds_bucket[5m]))
//
//   # Peak fan-out
//   max_over_time(catalog_fanout_inflight[5m])
