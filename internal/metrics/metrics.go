// Package metrics registers prometheus instrumentation for the alerting core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RuleEvaluations counts individual rule evaluations by severity.
	RuleEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dcdash",
		Subsystem: "alerting",
		Name:      "rule_evaluations_total",
		Help:      "Number of alert rule evaluations performed.",
	}, []string{"severity"})

	// RuleEvaluationFailures counts evaluations that produced an error result.
	RuleEvaluationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dcdash",
		Subsystem: "alerting",
		Name:      "rule_evaluation_failures_total",
		Help:      "Number of alert rule evaluations that failed.",
	}, []string{"reason"})

	// EvaluationRoundDuration observes the wall time of a full evaluation round.
	EvaluationRoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dcdash",
		Subsystem: "alerting",
		Name:      "evaluation_round_seconds",
		Help:      "Duration of full evaluation rounds across all enabled rules.",
		Buckets:   prometheus.DefBuckets,
	})

	// SnapshotLoads counts table snapshot loads by table and outcome.
	SnapshotLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dcdash",
		Subsystem: "ingest",
		Name:      "snapshot_loads_total",
		Help:      "Number of table snapshot load attempts.",
	}, []string{"table", "outcome"})

	// SnapshotRows reports the row count of the most recent snapshot per table.
	SnapshotRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dcdash",
		Subsystem: "ingest",
		Name:      "snapshot_rows",
		Help:      "Rows in the most recently loaded snapshot per table.",
	}, []string{"table"})
)

// Outcome labels for SnapshotLoads.
const (
	OutcomeLoaded  = "loaded"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)
