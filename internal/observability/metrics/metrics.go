// Package metrics provides Prometheus metrics for the delivery engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session_id or event_id labels: candidate sessions are unbounded and
// would explode cardinality.
var (
	// CandidateActionTotal counts recorded candidate events by kind.
	CandidateActionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itemdelivery_candidate_action_total",
		Help: "Total number of recorded candidate events, by kind.",
	}, []string{"kind"})

	// GuardDenialTotal counts privilege denials by reason code.
	GuardDenialTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itemdelivery_guard_denial_total",
		Help: "Total number of privilege denials, by reason code.",
	}, []string{"code"})

	// EvaluatorFailureTotal counts item evaluator failures.
	EvaluatorFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "itemdelivery_evaluator_failure_total",
		Help: "Total number of item evaluator failures.",
	})

	// SessionsStartedTotal counts created candidate sessions.
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "itemdelivery_sessions_started_total",
		Help: "Total number of candidate sessions created.",
	})
)
