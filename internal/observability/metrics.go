// Package observability holds the service-wide prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "runlog"

var (
	snapshotSavedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "last_snapshot_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent snapshot written to the remote store.",
	})

	entriesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "entries",
		Help:      "Number of entries in the most recently written snapshot, by collection.",
	}, []string{"collection"})

	storeOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Latency of snapshot store operations.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"driver", "op"})

	cacheFallbackCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "local_cache_fallbacks_total",
		Help:      "Reads answered by the local cache because the remote store failed.",
	})

	submitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "submits_total",
		Help:      "Snapshot submissions by outcome.",
	}, []string{"outcome"})

	retentionDroppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retention",
		Name:      "entries_dropped_total",
		Help:      "Entries removed by the retention sweep.",
	})

	unverifiedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "unverified_requests_total",
		Help:      "Requests served without a valid data key or bearer token.",
	})
)

func init() {
	prometheus.MustRegister(snapshotSavedGauge, entriesGauge, storeOpDuration, cacheFallbackCounter, submitCounter, retentionDroppedCounter, unverifiedCounter)
}

// RecordSnapshotSaved updates the persistence watermark and entry gauges.
func RecordSnapshotSaved(ts time.Time, activities, weights int) {
	if !ts.IsZero() {
		snapshotSavedGauge.Set(float64(ts.Unix()))
	}
	entriesGauge.WithLabelValues("activity").Set(float64(activities))
	entriesGauge.WithLabelValues("weight").Set(float64(weights))
}

// ObserveStoreOp records the latency since start. Use with defer.
func ObserveStoreOp(driver, op string, start time.Time) {
	storeOpDuration.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
}

// RecordCacheFallback counts a read served from the local cache.
func RecordCacheFallback() {
	cacheFallbackCounter.Inc()
}

// RecordSubmit counts a submission outcome: ok, invalid or error.
func RecordSubmit(outcome string) {
	submitCounter.WithLabelValues(outcome).Inc()
}

// RecordRetention counts entries dropped by a sweep.
func RecordRetention(dropped int) {
	if dropped > 0 {
		retentionDroppedCounter.Add(float64(dropped))
	}
}

// RecordUnverified counts a request without valid credentials.
func RecordUnverified() {
	unverifiedCounter.Inc()
}
