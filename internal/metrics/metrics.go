// Package metrics exposes the poll loop's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollTicks counts scheduler ticks by outcome: polled, hard_stop,
	// no_eligible.
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockwatch_poll_ticks_total",
		Help: "Poll loop ticks by outcome.",
	}, []string{"outcome"})

	// QuotesMerged counts symbols updated by a merge.
	QuotesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_quotes_merged_total",
		Help: "Quotes merged into live state.",
	})

	// FetchMisses counts symbols requested but absent from a batch result.
	FetchMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_fetch_misses_total",
		Help: "Symbols missing from a batch quote fetch.",
	})

	// AlertsFired counts fired alert rules by type.
	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockwatch_alerts_fired_total",
		Help: "Alert rules fired.",
	}, []string{"type"})

	// SnapshotFailures counts failed daily snapshot writes.
	SnapshotFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_snapshot_failures_total",
		Help: "Failed daily snapshot writes.",
	})

	// TrackedSymbols is the current watchlist size.
	TrackedSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stockwatch_tracked_symbols",
		Help: "Symbols currently tracked.",
	})

	// StaleResults counts fetch results discarded after shutdown.
	StaleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_stale_results_total",
		Help: "Fetch results discarded because the poller was closed.",
	})
)
