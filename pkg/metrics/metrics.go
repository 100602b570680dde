// Package metrics exposes Prometheus collectors for the ingest and
// reconciliation paths. Collectors are package-level and registered with the
// default registry; the HTTP server serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EmailsIngested counts emails accepted by the ingest endpoint, by outcome.
var EmailsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgermail",
	Name:      "emails_ingested_total",
	Help:      "Emails received on the ingest endpoint, labelled by outcome.",
}, []string{"outcome"})

// ActionsCreated counts pending actions inserted, by producing processor.
var ActionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgermail",
	Name:      "actions_created_total",
	Help:      "Pending actions inserted into the backlog, labelled by source.",
}, []string{"source"})

// ReconcilePasses counts reconciliation passes, by result.
var ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgermail",
	Name:      "reconcile_passes_total",
	Help:      "Reconciliation passes executed, labelled by result.",
}, []string{"result"})

// ActionsApplied counts actions whose mutation was applied successfully.
var ActionsApplied = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledgermail",
	Name:      "actions_applied_total",
	Help:      "Pending actions matched, mutated, and evicted from the backlog.",
})

// ActionsUnmatched counts per-pass actions that found no eligible transaction.
var ActionsUnmatched = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledgermail",
	Name:      "actions_unmatched_total",
	Help:      "Actions skipped in a pass because no eligible transaction matched.",
})

// MutationFailures counts ledger mutation calls that returned an error.
var MutationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledgermail",
	Name:      "mutation_failures_total",
	Help:      "Ledger mutation calls that failed; the action is retried next pass.",
})

// BacklogDepth tracks the backlog size observed at the start of each pass.
var BacklogDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ledgermail",
	Name:      "backlog_depth",
	Help:      "Pending actions loaded at the start of the latest pass.",
})
