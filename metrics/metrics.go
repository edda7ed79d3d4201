// Package metrics exposes the engine's counters and gauges as Prometheus
// collectors, in the shape of vecgo's examples/observability
// PrometheusObserver and couchbase/query's accounting package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the engine's collectors. Checkpoints,
// NonIsolatedSegments, RetryAttempts and IndexAlreadyExists are updated
// by the engine; DocsEmitted, DocsFiltered and PermitWaitSeconds are
// registered but no operator updates them. A single Registry is normally
// shared across every execution in a process.
type Registry struct {
	DocsEmitted        *prometheus.CounterVec
	DocsFiltered       *prometheus.CounterVec
	PermitWaitSeconds  prometheus.Histogram
	Checkpoints        prometheus.Counter
	NonIsolatedSegments prometheus.Counter
	RetryAttempts      prometheus.Counter
	IndexAlreadyExists prometheus.Counter
}

// NewRegistry builds a Registry and registers every collector with reg.
// Pass prometheus.NewRegistry() in tests to avoid touching the default
// global registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		DocsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docengine_documents_emitted_total",
			Help: "Documents emitted by an operator, labeled by operator kind.",
		}, []string{"operator"}),
		DocsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docengine_documents_filtered_total",
			Help: "Documents dropped by a filtering operator, labeled by operator kind.",
		}, []string{"operator"}),
		PermitWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docengine_permit_wait_seconds",
			Help:    "Time spent waiting to acquire a flow-control permit.",
			Buckets: prometheus.DefBuckets,
		}),
		Checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docengine_checkpoints_total",
			Help: "Number of stopAndCheckpoint invocations.",
		}),
		NonIsolatedSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docengine_nonisolated_segments_total",
			Help: "Number of non-isolated execution segments (transactions) opened.",
		}),
		RetryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docengine_retry_attempts_total",
			Help: "Number of transaction retry attempts across RetryPlan and non-isolated RW segments.",
		}),
		IndexAlreadyExists: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docengine_index_already_exists_total",
			Help: "Number of IndexInsertPlan calls that observed an index_already_exists condition (see spec Open Question on legacy behavior).",
		}),
	}
	reg.MustRegister(
		r.DocsEmitted, r.DocsFiltered, r.PermitWaitSeconds,
		r.Checkpoints, r.NonIsolatedSegments, r.RetryAttempts, r.IndexAlreadyExists,
	)
	return r
}

// noop is a Registry with unregistered, unshared collectors, safe to use
// when the caller does not care about metrics (e.g. unit tests).
func Noop() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
