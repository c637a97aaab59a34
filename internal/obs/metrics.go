// Package obs holds the observability ambient stack: Prometheus metrics,
// tiered health checks, and a circuit breaker usable by any component that
// performs fallible I/O.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and histogram the storage and index stack
// reports. Fields are exported so collections and the engine can be
// constructed with a shared instance rather than each owning its own
// registry.
type Metrics struct {
	VectorInserts prometheus.Counter
	VectorDeletes prometheus.Counter
	SearchQueries prometheus.Counter
	SearchErrors  prometheus.Counter
	SearchLatency prometheus.Histogram

	WALAppends     prometheus.Counter
	WALFlushes     prometheus.Counter
	WALCorruptions prometheus.Counter
	WALBytes       prometheus.Counter

	SnapshotsTaken    prometheus.Counter
	SnapshotFailures  prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Histogram

	RecoveryRuns        prometheus.Counter
	RecoveryEntries     prometheus.Counter
	RecoverySkipped     prometheus.Counter
	RecoveryDuration    prometheus.Histogram
	CircuitBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns a fresh Metrics instance against the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		VectorInserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_vector_inserts_total",
			Help: "Total vector insertions across all collections",
		}),
		VectorDeletes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_vector_deletes_total",
			Help: "Total vector deletions across all collections",
		}),
		SearchQueries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_search_queries_total",
			Help: "Total search queries served",
		}),
		SearchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_search_errors_total",
			Help: "Total search queries that returned an error",
		}),
		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "latticedb_search_latency_seconds",
			Help:    "Search request latency",
			Buckets: prometheus.DefBuckets,
		}),
		WALAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_wal_appends_total",
			Help: "Total write-ahead log entries appended",
		}),
		WALFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_wal_flushes_total",
			Help: "Total write-ahead log fsyncs performed",
		}),
		WALCorruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_wal_corruptions_total",
			Help: "Total write-ahead log records skipped due to corruption during replay",
		}),
		WALBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_wal_bytes_written_total",
			Help: "Total bytes written to write-ahead logs",
		}),
		SnapshotsTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_snapshots_total",
			Help: "Total snapshots completed successfully",
		}),
		SnapshotFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_snapshot_failures_total",
			Help: "Total snapshot attempts that failed",
		}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "latticedb_snapshot_duration_seconds",
			Help:    "Time taken to complete a snapshot",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		SnapshotSizeBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "latticedb_snapshot_size_bytes",
			Help:    "Size of completed snapshot archives",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		}),
		RecoveryRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_recovery_runs_total",
			Help: "Total recovery passes performed at startup",
		}),
		RecoveryEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_recovery_entries_replayed_total",
			Help: "Total write-ahead log entries replayed during recovery",
		}),
		RecoverySkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_recovery_entries_skipped_total",
			Help: "Total write-ahead log entries skipped during recovery due to corruption",
		}),
		RecoveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "latticedb_recovery_duration_seconds",
			Help:    "Time taken to complete recovery at startup",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		CircuitBreakerTrips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_circuit_breaker_trips_total",
			Help: "Total times a circuit breaker transitioned to open",
		}),
	}
}
