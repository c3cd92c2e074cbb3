// Package telemetry wires the ambient prometheus/client_golang stack (the
// teacher has no metrics layer; this module exposes a handful of
// component-level counters and histograms).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sparql-agent-go/pkg/types"
)

// Metrics groups every counter/histogram the components emit into.
type Metrics struct {
	ProbeLatency       *prometheus.HistogramVec
	ProbeResult        *prometheus.CounterVec
	RetryAttempts      *prometheus.CounterVec
	OrchestratorRuns   *prometheus.CounterVec
	ExecutionLatency   *prometheus.HistogramVec
	ValidationIssues   *prometheus.CounterVec
	CapabilityCacheHit *prometheus.CounterVec
}

// New registers every metric against the given registerer. Pass
// prometheus.DefaultRegisterer in production, or a fresh
// prometheus.NewRegistry() per test to avoid collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProbeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sparql_agent",
			Subsystem: "discovery",
			Name:      "probe_latency_seconds",
			Help:      "Latency of connectivity probes against an endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),

		ProbeResult: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparql_agent",
			Subsystem: "discovery",
			Name:      "probe_results_total",
			Help:      "Count of connectivity probe results by classification.",
		}, []string{"endpoint", "status"}),

		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparql_agent",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Count of retry-loop attempts by loop phase and outcome.",
		}, []string{"phase", "outcome"}),

		OrchestratorRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparql_agent",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Count of orchestrator runs by terminal outcome.",
		}, []string{"outcome"}),

		ExecutionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sparql_agent",
			Subsystem: "execution",
			Name:      "query_latency_seconds",
			Help:      "Latency of SPARQL query execution against an endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),

		ValidationIssues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparql_agent",
			Subsystem: "validator",
			Name:      "issues_total",
			Help:      "Count of validation issues found by severity and rule id.",
		}, []string{"severity", "rule_id"}),

		CapabilityCacheHit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparql_agent",
			Subsystem: "discovery",
			Name:      "capability_cache_total",
			Help:      "Count of capability cache lookups by hit/miss/stale.",
		}, []string{"result"}),
	}
}

// RecordValidation increments ValidationIssues once per issue in a report.
func (m *Metrics) RecordValidation(report *types.ValidationReport) {
	if report == nil {
		return
	}
	for _, issue := range report.Issues {
		m.ValidationIssues.WithLabelValues(string(issue.Severity), issue.RuleID).Inc()
	}
}
