// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_appends_total",
		Help: "Total number of fragments written to the update log",
	})

	appendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_append_failures_total",
		Help: "Total number of failed fragment writes (including short-circuited ones)",
	})

	appendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkwell_store_append_latency_seconds",
		Help:    "Fragment write latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	deferredFragments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_store_deferred_fragments",
		Help: "Fragments held in memory awaiting a successful write",
	})

	droppedFragments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_dropped_fragments_total",
		Help: "Deferred fragments dropped after exhausting their retries",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_retries_total",
		Help: "Total number of deferred fragment write attempts",
	})

	loadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_loads_total",
		Help: "Total number of document replays from the update log",
	})

	compactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_compactions_total",
		Help: "Total number of document compactions",
	})

	fragmentsCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_fragments_compacted_total",
		Help: "Fragments removed by compaction",
	})

	gcRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_store_gc_runs_total",
		Help: "Total number of BadgerDB value log GC runs",
	})

	gcLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkwell_store_gc_latency_seconds",
		Help:    "BadgerDB value log GC latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_store_breaker_state",
		Help: "Write circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)
