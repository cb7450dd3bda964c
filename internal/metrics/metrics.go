// Package metrics exposes Prometheus instrumentation for the custody
// subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WalletsCreated counts successful wallet generations.
	WalletsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "custody_wallets_created_total",
		Help: "Number of wallets created.",
	})

	// PipelineStageDuration observes per-stage latency of the
	// transaction pipeline.
	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "custody_pipeline_stage_duration_seconds",
		Help:    "Duration of transaction pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// PipelineAborts counts pipeline runs aborted per stage.
	PipelineAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_pipeline_aborts_total",
		Help: "Number of pipeline runs aborted, by stage.",
	}, []string{"stage"})

	// TransactionsBroadcast counts transactions submitted to a chain.
	TransactionsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_transactions_broadcast_total",
		Help: "Number of transactions broadcast, by chain family.",
	}, []string{"chain_family"})

	// PolicyViolations counts policy check failures by policy type.
	PolicyViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_policy_violations_total",
		Help: "Number of policy violations, by policy type.",
	}, []string{"policy_type"})

	// RecoveryEvents counts recovery state transitions.
	RecoveryEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_recovery_events_total",
		Help: "Number of recovery events, by kind.",
	}, []string{"event"})

	// PriceCacheLookups counts price cache hits and misses.
	PriceCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_price_cache_lookups_total",
		Help: "Number of price cache lookups, by outcome.",
	}, []string{"outcome"})

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_http_requests_total",
		Help: "Number of HTTP requests, by route and status.",
	}, []string{"route", "status"})
)
