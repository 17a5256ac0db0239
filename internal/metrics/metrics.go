// Package metrics exposes Prometheus collectors for the orchestrator,
// dispatcher and cache registry, scraped at GET /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OrchestratorSteps counts orchestrator loop iterations, labeled by
	// mode (streaming/collect) and outcome (final, tool_call, max_tokens,
	// error).
	OrchestratorSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vico_orchestrator_steps_total",
		Help: "Orchestrator loop iterations by mode and outcome.",
	}, []string{"mode", "outcome"})

	// ToolDispatches counts tool dispatch invocations by tool name and
	// outcome (ok, error).
	ToolDispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vico_tool_dispatches_total",
		Help: "Tool dispatcher invocations by tool name and outcome.",
	}, []string{"tool", "outcome"})

	// SubagentRuns counts sub-agent runner invocations.
	SubagentRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vico_subagent_runs_total",
		Help: "Sub-agent runner invocations by outcome.",
	}, []string{"outcome"})

	// CacheHits counts cache registry acquisitions by resulting state.
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vico_cache_acquisitions_total",
		Help: "Cache registry acquisitions by resulting state.",
	}, []string{"state"})

	// CacheInvalidations counts memory-cache invalidation sweeps, driven
	// off the cache.invalidated event.
	CacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vico_cache_invalidations_total",
		Help: "Memory-cache invalidation sweeps.",
	})

	// GenerationLatency measures end-to-end orchestrator request duration.
	GenerationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vico_generation_latency_seconds",
		Help:    "Orchestrator request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

// Register adds all collectors to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(OrchestratorSteps, ToolDispatches, SubagentRuns, CacheHits, CacheInvalidations, GenerationLatency)
}
