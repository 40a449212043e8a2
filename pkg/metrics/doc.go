/*
Package metrics provides Prometheus metrics collection and exposition for LocalZure.

The metrics package defines and registers all LocalZure metrics using the
Prometheus client library, providing observability into state backend
throughput, Key Vault operation outcomes, OAuth token issuance, snapshot
size/duration, and HTTP facade latency. Metrics are exposed via an HTTP
endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  State: op counters + duration by namespace │          │
	│  │  Key Vault: op outcomes, vault/secret gauges│          │
	│  │  OAuth: tokens issued by audience, errors    │          │
	│  │  Snapshot: size and create/restore duration  │          │
	│  │  API: request count, duration by route       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: vault count, secret count, deleted secret count
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: state ops total, tokens issued total
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Examples: state op duration, snapshot size/duration, API latency
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

Collector:
  - Polls a caller-supplied func() HealthSnapshot every 15s and
    publishes the result as gauges, the periodic poll-and-set pattern
    this package has always used for point-in-time counts. The source
    is a callback rather than a concrete engine type so this package
    never needs to import pkg/keyvault (which imports pkg/state, which
    imports this package for Instrumented's op counters).

# Metrics Catalog

State Backend Metrics:

localzure_state_ops_total{op, namespace, result}:
  - Type: Counter
  - Description: Total state backend operations by op, namespace and result ("ok"/"error")
  - Example: localzure_state_ops_total{op="get",namespace="keyvault",result="ok"} 482

localzure_state_op_duration_seconds{op, namespace}:
  - Type: Histogram
  - Description: State backend operation duration in seconds

Key Vault Metrics:

localzure_keyvault_ops_total{vault, op, outcome}:
  - Type: Counter
  - Description: Total Key Vault operations by vault, operation and outcome
  - Example: localzure_keyvault_ops_total{vault="my-vault",op="SetSecret",outcome="ok"} 12

localzure_keyvault_vaults_total / localzure_keyvault_secrets_total / localzure_keyvault_deleted_secrets_total:
  - Type: Gauge
  - Description: Aggregate engine counters, refreshed by Collector

OAuth Metrics:

localzure_oauth_tokens_issued_total{audience}:
  - Type: Counter
  - Description: Total access tokens issued, by resolved audience

localzure_oauth_token_errors_total{code}:
  - Type: Counter
  - Description: Total rejected token requests, by RFC 6749 error code

Snapshot Metrics:

localzure_snapshot_size_bytes:
  - Type: Histogram
  - Description: Size in bytes of created snapshot files

localzure_snapshot_duration_seconds{op}:
  - Type: Histogram
  - Description: Time to create or restore a snapshot, by op ("create"/"restore")

API Metrics:

localzure_api_requests_total{method, route, status}:
  - Type: Counter
  - Description: Total HTTP facade requests by method, route and status

localzure_api_request_duration_seconds{route}:
  - Type: Histogram
  - Description: HTTP facade request duration in seconds, by route

# Usage

	import "github.com/oladejiayo/localzure-sub003/pkg/metrics"

	metrics.StateOpsTotal.WithLabelValues("set", "keyvault", "ok").Inc()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.APIRequestDuration, "/{vault}/secrets/{name}")

	http.Handle("/metrics", metrics.Handler())

# Integration Points

This package integrates with:

  - pkg/state: Instrumented wraps any Backend with op/namespace/result counters
  - pkg/keyvault: instruments SetSecret/GetSecret/DeleteSecret/... outcomes
    from pkg/httpapi; cmd/localzure supplies Collector's gauge callback
    from engine.Health() so this package has no direct keyvault import
  - pkg/oauth: instruments token issuance and rejection
  - pkg/snapshot: instruments Create/Restore size and duration
  - pkg/httpapi: instruments every route's request count and latency
  - Prometheus: scrapes /metrics

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so metrics are available before main()

Label Discipline:
  - Labels are bounded (op name, namespace, outcome, audience, route) —
    never a secret name or client ID, which would be unbounded cardinality

Timer Pattern:
  - Create timer at operation start, ObserveDuration(Vec) at the end

# See Also

  - pkg/keyvault for the engine whose Health() feeds Collector
  - pkg/state for the Instrumented Backend decorator
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
