// Package metrics defines the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Push channel metrics
var (
	PushSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_subscribers",
			Help: "Open push connections across all boards",
		},
	)

	PushEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_events_total",
			Help: "Push events broadcast, by event type",
		},
		[]string{"type"},
	)

	PushKeepalivesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_keepalives_total",
			Help: "Keepalive sweeps written to open push connections",
		},
	)

	PushSlowEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_slow_evictions_total",
			Help: "Subscribers evicted because their frame buffer was full",
		},
	)
)

// Scheduler metrics
var (
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweep_runs_total",
			Help: "Scheduler sweep executions, by sweep",
		},
		[]string{"sweep"},
	)

	SweepResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweep_resets_total",
			Help: "Rows corrected by scheduler sweeps, by sweep",
		},
		[]string{"sweep"},
	)
)

// Push client metrics
var (
	ClientReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_client_reconnects_total",
			Help: "Reconnect attempts scheduled after a dropped push stream",
		},
	)
)

// Rank recomputation metrics
var (
	RankRecomputesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rank_recomputes_total",
			Help: "Debounced feed rank recomputations executed",
		},
	)

	RankTriggersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rank_triggers_total",
			Help: "Diet mutations that armed or reset the rank debounce",
		},
	)
)
