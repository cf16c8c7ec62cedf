// Package metrics holds the Prometheus collectors of the dispatch pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notify",
		Name:      "dispatch_results_total",
		Help:      "Per-subscription dispatch outcomes by final state.",
	}, []string{"state"})

	Batches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notify",
		Name:      "batches_total",
		Help:      "Dispatch batches by result.",
	}, []string{"result"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "notify",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of a dispatch batch, minting included.",
		Buckets:   prometheus.DefBuckets,
	})

	TokenMintFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notify",
		Name:      "token_mint_failures_total",
		Help:      "Bearer token mint attempts that failed.",
	})

	NonCanonicalEndpoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notify",
		Name:      "noncanonical_endpoints_total",
		Help:      "Endpoints that did not match the provider URL shape and were sent as raw tokens.",
	})

	ReconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notify",
		Name:      "reconcile_failures_total",
		Help:      "Stale subscription deletes that failed.",
	})
)
