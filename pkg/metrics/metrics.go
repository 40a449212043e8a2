package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// State backend metrics
	StateOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localzure_state_ops_total",
			Help: "Total number of state backend operations by operation, namespace and result",
		},
		[]string{"op", "namespace", "result"},
	)

	StateOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localzure_state_op_duration_seconds",
			Help:    "State backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "namespace"},
	)

	// Key Vault metrics
	KeyVaultOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localzure_keyvault_ops_total",
			Help: "Total number of Key Vault operations by vault, operation and outcome",
		},
		[]string{"vault", "op", "outcome"},
	)

	KeyVaultVaultsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localzure_keyvault_vaults_total",
			Help: "Total number of vaults that have ever held a secret",
		},
	)

	KeyVaultSecretsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localzure_keyvault_secrets_total",
			Help: "Total number of live secrets across all vaults (soft-deleted secrets are not counted)",
		},
	)

	KeyVaultDeletedSecretsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localzure_keyvault_deleted_secrets_total",
			Help: "Total number of soft-deleted secrets awaiting recovery or purge",
		},
	)

	// OAuth metrics
	OAuthTokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localzure_oauth_tokens_issued_total",
			Help: "Total number of OAuth access tokens issued, by audience",
		},
		[]string{"audience"},
	)

	OAuthTokenErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localzure_oauth_token_errors_total",
			Help: "Total number of rejected OAuth token requests, by error code",
		},
		[]string{"code"},
	)

	// Snapshot metrics
	SnapshotSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "localzure_snapshot_size_bytes",
			Help:    "Size in bytes of created snapshot files",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	SnapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localzure_snapshot_duration_seconds",
			Help:    "Time taken to create or restore a snapshot, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// HTTP facade metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localzure_api_requests_total",
			Help: "Total number of HTTP facade requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localzure_api_request_duration_seconds",
			Help:    "HTTP facade request duration in seconds, by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(StateOpsTotal)
	prometheus.MustRegister(StateOpDuration)
	prometheus.MustRegister(KeyVaultOpsTotal)
	prometheus.MustRegister(KeyVaultVaultsTotal)
	prometheus.MustRegister(KeyVaultSecretsTotal)
	prometheus.MustRegister(KeyVaultDeletedSecretsTotal)
	prometheus.MustRegister(OAuthTokensIssuedTotal)
	prometheus.MustRegister(OAuthTokenErrorsTotal)
	prometheus.MustRegister(SnapshotSizeBytes)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
