// Package metrics provides the central Prometheus registry reference for
// badgesmith. All metrics are defined in their owning packages (credential,
// dispatch, cache) to maintain modularity and avoid circular dependencies.
//
// This package documents the full metric inventory.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by badgesmith. All
// metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Credential Pool Metrics (pkg/credential):
//   - upstream_credential_quota_remaining{credential} (Gauge): Last observed remaining quota per credential
//   - upstream_credential_pool_exhausted_total{scope} (Counter): Acquire calls that found no usable credential
//   - upstream_credentials_disabled_total (Counter): Credentials permanently disabled after auth rejection
//   - upstream_secondary_rate_limits_total (Counter): Secondary rate limit responses observed
//
// Dispatch Metrics (pkg/dispatch):
//   - dispatch_requests_total{surface, status} (Counter): Upstream calls by surface and HTTP status
//   - dispatch_request_duration_seconds{surface} (Histogram): Upstream call duration by surface
//   - dispatch_failures_total{kind} (Counter): Classified failures by kind
//   - dispatch_retries_total{kind} (Counter): Retry attempts by failure kind
//   - dispatch_retry_backoff_seconds (Histogram): Backoff duration slept before retries
//   - dispatch_retry_exhausted_total (Counter): Calls that exhausted the retry budget
//
// Badge Cache Metrics (pkg/cache):
//   - badge_cache_hits_total (Counter): Cache hits
//   - badge_cache_misses_total (Counter): Cache misses
//   - badge_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(badge_cache_hits_total[5m])) /
//   (sum(rate(badge_cache_hits_total[5m])) + sum(rate(badge_cache_misses_total[5m])))
//
//   # Quota Headroom Across the Pool
//   sum(upstream_credential_quota_remaining)
//
//   # Failure Rate by Kind
//   rate(dispatch_failures_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(dispatch_request_duration_seconds_bucket[5m]))
//
//   # Pool Exhaustion
//   rate(upstream_credential_pool_exhausted_total[5m])
