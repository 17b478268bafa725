package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignInAttempts tracks interactive sign-in attempts by result
	SignInAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taura_sign_in_attempts_total",
			Help: "Total number of interactive sign-in attempts by result (success/failure)",
		},
		[]string{"result", "reason"},
	)

	// TokenRefreshes tracks refresh grant operations
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taura_token_refreshes_total",
			Help: "Total number of token refresh operations by result",
		},
		[]string{"result", "reason"},
	)

	// TokenRefreshDuration tracks refresh grant duration
	TokenRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taura_token_refresh_duration_seconds",
			Help:    "Duration of token refresh operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	// FilesScanned tracks media files discovered by the scanner
	FilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taura_files_scanned_total",
			Help: "Total number of media files discovered by the scanner",
		},
	)

	// ScanDuration tracks full scan duration per root
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taura_scan_duration_seconds",
			Help:    "Duration of filesystem scans",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// SyncBatches tracks sync batches sent to the backend by result
	SyncBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taura_sync_batches_total",
			Help: "Total number of sync batches sent to the backend by result",
		},
		[]string{"result"},
	)

	// ItemsUpserted tracks items the backend reported as upserted
	ItemsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taura_items_upserted_total",
			Help: "Total number of media items the backend reported as upserted",
		},
	)
)

// RecordSignInSuccess records a successful sign-in
func RecordSignInSuccess() {
	SignInAttempts.WithLabelValues("success", "").Inc()
}

// RecordSignInFailure records a failed sign-in with reason
func RecordSignInFailure(reason string) {
	SignInAttempts.WithLabelValues("failure", reason).Inc()
}

// RecordRefreshSuccess records a successful token refresh
func RecordRefreshSuccess() {
	TokenRefreshes.WithLabelValues("success", "").Inc()
}

// RecordRefreshFailure records a failed token refresh with reason
func RecordRefreshFailure(reason string) {
	TokenRefreshes.WithLabelValues("failure", reason).Inc()
}

// RecordSyncBatch records a sync batch by result
func RecordSyncBatch(result string) {
	SyncBatches.WithLabelValues(result).Inc()
}
